package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/valkey-io/valkey-go"

	imagesort "github.com/anatolykoptev/go-imagesort"
	"github.com/anatolykoptev/go-imagesort/internal/config"
	"github.com/anatolykoptev/go-imagesort/internal/metrics"
	"github.com/anatolykoptev/go-imagesort/kvstore"
	"github.com/anatolykoptev/go-imagesort/onnxmodel"
)

// app holds the wired components behind every command.
type app struct {
	analyzer *imagesort.Analyzer
	models   *imagesort.ModelProvider
	history  *imagesort.History

	closers []func() error
}

// newApp builds storage, cache, model provider and analyzer from c.
// m may be nil.
func newApp(ctx context.Context, c config.Config, m *metrics.Metrics) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var vk valkey.Client
	if c.History.Backend == "valkey" || c.Cache.Backend == "valkey" {
		vk, err = kvstore.DialValkey(ctx, kvstore.ValkeyOptions{
			Address:  c.Valkey.Address,
			Password: c.Valkey.Password,
			DB:       c.Valkey.DB,
			TLS:      c.Valkey.TLS,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { vk.Close(); return nil })
	}

	kv, err := a.openHistoryStore(c, vk)
	if err != nil {
		return nil, err
	}
	a.history = imagesort.NewHistory(kv, imagesort.WithHistoryKey(c.History.Key))

	var cache imagesort.Cache
	switch c.Cache.Backend {
	case "memory":
		cache = kvstore.NewMemoryCache(c.Analysis.CacheTTL, 2*c.Analysis.CacheTTL)
	case "valkey":
		cache = kvstore.NewValkeyCache(vk, c.Analysis.CacheTTL)
	}

	input := imagesort.PreprocessOpts{
		Size:   c.Model.InputSize,
		Layout: imagesort.TensorLayout(strings.ToLower(c.Model.Layout)),
	}

	if c.Model.Enabled {
		opts := []imagesort.ProviderOption{imagesort.WithLoadTimeout(c.Model.LoadTimeout)}
		if m != nil {
			opts = append(opts, imagesort.WithLoadObserver(m.ObserveModelLoad))
		}
		a.models = imagesort.NewModelProvider(onnxmodel.Loader(onnxmodel.Options{
			Dir:         c.Model.Dir,
			HubRepo:     c.Model.HubRepo,
			ONNXFile:    c.Model.ONNXFile,
			LabelsFile:  c.Model.LabelsFile,
			LibraryPath: c.Model.ORTLibrary,
			InputName:   c.Model.InputName,
			OutputName:  c.Model.OutputName,
			Input:       input,
		}), opts...)
	}

	ic := imagesort.Config{
		Models:         a.models,
		Cache:          cache,
		MaxUploadBytes: c.Server.MaxUploadBytes,
		TopN:           c.Analysis.TopN,
		FallbackDelay:  c.Analysis.FallbackDelay,
		Preprocess:     input,
		OnPanic: func(tag string, r any) {
			slog.Error("imagesort: recovered panic", "tag", tag, "panic", r)
		},
	}
	if m != nil {
		ic.OnAnalysis = m.ObserveAnalysis
	}
	a.analyzer = imagesort.NewAnalyzer(ic)
	return a, nil
}

func (a *app) openHistoryStore(c config.Config, vk valkey.Client) (imagesort.KV, error) {
	switch c.History.Backend {
	case "memory":
		return kvstore.NewMemoryStore(), nil
	case "valkey":
		return kvstore.NewValkeyStore(vk), nil
	case "sqlite":
		if err := os.MkdirAll(c.History.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		s, err := kvstore.OpenSQLite(filepath.Join(c.History.Path, "history.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case "file":
		return kvstore.NewFileStore(c.History.Path)
	default:
		return nil, fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
}

// preload starts the model load in the background so the first request
// does not pay for it.
func (a *app) preload() {
	if a.models == nil {
		return
	}
	go func() {
		if _, err := a.models.Get(context.Background()); err != nil {
			slog.Warn("imagesort: model preload failed, fallback stays active", "error", err.Error())
		}
	}()
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
