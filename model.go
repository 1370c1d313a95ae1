package imagesort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultLoadTimeout bounds a single model load.
const DefaultLoadTimeout = 2 * time.Minute

// Model is a loaded image-classification model.
type Model interface {
	// Predict runs inference on a preprocessed tensor and returns one score
	// per label.
	Predict(ctx context.Context, input Tensor) ([]float32, error)
	// Labels returns the class names, indexed like Predict's output.
	Labels() []string
}

// LoadFunc fetches and initializes a model.
type LoadFunc func(ctx context.Context) (Model, error)

// ProviderOption configures a ModelProvider.
type ProviderOption func(*ModelProvider)

// WithLoadTimeout overrides DefaultLoadTimeout. Zero or negative disables it.
func WithLoadTimeout(d time.Duration) ProviderOption {
	return func(p *ModelProvider) { p.loadTimeout = d }
}

// WithLoadObserver registers a callback run after every load attempt.
func WithLoadObserver(fn func(err error, took time.Duration)) ProviderOption {
	return func(p *ModelProvider) { p.onLoad = fn }
}

// ModelProvider lazily loads a Model once and shares it.
//
// Concurrent Get calls while no model is cached share one in-flight load:
// the first caller starts it, everyone waits on the same future and sees
// the same model or the same error. A failed load is forgotten so a later
// Get may try again.
type ModelProvider struct {
	load        LoadFunc
	loadTimeout time.Duration
	onLoad      func(err error, took time.Duration)

	mu      sync.Mutex
	model   Model
	pending *modelFuture
	loads   int
}

type modelFuture struct {
	done  chan struct{}
	model Model
	err   error
}

// NewModelProvider returns a provider that calls load on first use.
func NewModelProvider(load LoadFunc, opts ...ProviderOption) *ModelProvider {
	p := &ModelProvider{
		load:        load,
		loadTimeout: DefaultLoadTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// StaticModel returns a provider that always yields m.
func StaticModel(m Model) *ModelProvider {
	return &ModelProvider{model: m}
}

// Get returns the cached model, loading it if needed. Errors wrap
// ErrModelUnavailable. A caller whose ctx ends stops waiting; the load
// itself keeps running for the others.
func (p *ModelProvider) Get(ctx context.Context) (Model, error) {
	p.mu.Lock()
	if p.model != nil {
		m := p.model
		p.mu.Unlock()
		return m, nil
	}
	if p.load == nil {
		p.mu.Unlock()
		return nil, wrapError(ErrModelUnavailable, "get model", errors.New("no loader configured"))
	}
	f := p.pending
	if f == nil {
		f = &modelFuture{done: make(chan struct{})}
		p.pending = f
		p.loads++
		go p.run(f)
	}
	p.mu.Unlock()

	select {
	case <-f.done:
		if f.err != nil {
			return nil, f.err
		}
		return f.model, nil
	case <-ctx.Done():
		return nil, wrapError(ErrModelUnavailable, "wait for model", ctx.Err())
	}
}

func (p *ModelProvider) run(f *modelFuture) {
	start := time.Now()

	ctx := context.Background()
	if p.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.loadTimeout)
		defer cancel()
	}

	m, err := p.safeLoad(ctx)
	if err == nil && m == nil {
		err = errors.New("loader returned nil model")
	}
	if err != nil {
		err = wrapError(ErrModelUnavailable, "load model", err)
		m = nil
	}

	p.mu.Lock()
	if err == nil {
		p.model = m
	}
	p.pending = nil
	p.mu.Unlock()

	f.model, f.err = m, err
	close(f.done)

	took := time.Since(start)
	if err != nil {
		slog.Warn("imagesort: model load failed", "error", err.Error(), "took", took)
	} else {
		slog.Info("imagesort: model loaded", "labels", len(m.Labels()), "took", took)
	}
	if p.onLoad != nil {
		p.onLoad(err, took)
	}
}

// safeLoad turns a panicking loader into an error so waiters are never
// left hanging on an unclosed future.
func (p *ModelProvider) safeLoad(ctx context.Context) (m Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	return p.load(ctx)
}

// Ready reports whether a model is cached.
func (p *ModelProvider) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model != nil
}

// Loads returns how many underlying load attempts were started.
func (p *ModelProvider) Loads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}
