package imagesort

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
)

// mockCache is an in-memory Cache holding AnalysisResult values as-is.
type mockCache struct {
	mu   sync.Mutex
	data map[string]AnalysisResult
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string]AnalysisResult{}} }

func (c *mockCache) Key(prefix, value string) string { return prefix + ":" + value }

func (c *mockCache) Get(_ context.Context, key string, dest any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false
	}
	p, ok := dest.(*AnalysisResult)
	if !ok {
		return false
	}
	*p = v
	return true
}

func (c *mockCache) Set(_ context.Context, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := value.(AnalysisResult); ok {
		c.data[key] = v
		c.sets++
	}
}

func dogModel() *fakeModel {
	return &fakeModel{
		labels: []string{"golden retriever", "tennis ball", "lakeside", "quux", "quuz"},
		scores: []float32{0.7, 0.1, 0.1, 0.05, 0.05},
	}
}

func gradientPNG(increasing bool) []byte {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			v := uint8(x * 4)
			if !increasing {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return makePNG(0, 0, img)
}

func TestAnalyzeWithModel(t *testing.T) {
	t.Parallel()

	var events []AnalysisEvent
	m := dogModel()
	a := NewAnalyzer(Config{
		Models:     StaticModel(m),
		OnAnalysis: func(ev AnalysisEvent) { events = append(events, ev) },
	})

	res, err := a.Analyze(context.Background(), Upload{Name: "IMG_1.png", Data: makePNG(20, 20, nil)})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.SuggestedClassification != CategoryLiving || res.Source != SourceModel {
		t.Errorf("got %+v, want living from model", res)
	}
	if res.Confidence <= 0.85 || res.Confidence > MaxConfidence {
		t.Errorf("confidence = %v out of range", res.Confidence)
	}
	if len(res.Labels) != 5 || res.Labels[0].Label != "golden retriever" {
		t.Errorf("labels = %+v", res.Labels)
	}
	if len(events) != 1 || events[0].ModelError != nil || events[0].Source != SourceModel {
		t.Errorf("events = %+v", events)
	}
}

func TestAnalyzeWithoutModelUsesFileName(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{FallbackDelay: -1})
	res, err := a.Analyze(context.Background(), Upload{Name: "my_dog.png", MIMEType: "image/png", Data: makePNG(10, 10, nil)})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.SuggestedClassification != CategoryLiving {
		t.Errorf("category = %q, want living", res.SuggestedClassification)
	}
	if res.Confidence < 0.85 || res.Confidence > 0.95 {
		t.Errorf("confidence = %v, want within [0.85, 0.95]", res.Confidence)
	}
	if !res.IsGuess() {
		t.Error("expected fallback guess")
	}
}

func TestAnalyzeDecodeError(t *testing.T) {
	t.Parallel()

	m := dogModel()
	a := NewAnalyzer(Config{Models: StaticModel(m), FallbackDelay: -1})

	_, err := a.Analyze(context.Background(), Upload{Name: "my_dog.png", Data: []byte("not an image")})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if m.calls.Load() != 0 {
		t.Error("model called for undecodable upload")
	}
}

func TestAnalyzeModelFailureFallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		models *ModelProvider
	}{
		{name: "inference error", models: StaticModel(&fakeModel{err: errors.New("cuda oom")})},
		{name: "inference panic", models: StaticModel(&fakeModel{panics: true})},
		{name: "empty output", models: StaticModel(&fakeModel{})},
		{name: "load error", models: NewModelProvider(func(context.Context) (Model, error) {
			return nil, errors.New("no weights")
		})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var ev AnalysisEvent
			var panicked bool
			a := NewAnalyzer(Config{
				Models:        tc.models,
				FallbackDelay: -1,
				OnAnalysis:    func(e AnalysisEvent) { ev = e },
				OnPanic:       func(string, any) { panicked = true },
			})

			res, err := a.Analyze(context.Background(), Upload{Name: "mountain_photo.png", Data: makePNG(10, 10, nil)})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if res.SuggestedClassification != CategoryNatural || res.Source != SourceFallback {
				t.Errorf("got %+v, want natural fallback", res)
			}
			if ev.ModelError == nil {
				t.Error("event lacks the model error")
			}
			if tc.name == "inference panic" && !panicked {
				t.Error("OnPanic not called")
			}
		})
	}
}

func TestAnalyzeFailsOnlyWhenFallbackFails(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, Upload{Name: "my_dog.png", Data: makePNG(10, 10, nil)})
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("err = %v, want ErrAnalysisFailed", err)
	}
	if !errors.Is(err, ErrModelUnavailable) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want both causes joined", err)
	}
}

func TestAnalyzeCachesModelResults(t *testing.T) {
	t.Parallel()

	m := dogModel()
	cache := newMockCache()
	a := NewAnalyzer(Config{Models: StaticModel(m), Cache: cache})

	first, err := a.Analyze(context.Background(), Upload{Name: "a.png", Data: gradientPNG(true)})
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Analyze(context.Background(), Upload{Name: "b.png", Data: gradientPNG(true)})
	if err != nil {
		t.Fatal(err)
	}

	if first.Source != SourceModel || second.Source != SourceCache {
		t.Errorf("sources = %q, %q; want model, cache", first.Source, second.Source)
	}
	if second.SuggestedClassification != first.SuggestedClassification || second.Confidence != first.Confidence {
		t.Errorf("cached result %+v differs from %+v", second, first)
	}
	if n := m.calls.Load(); n != 1 {
		t.Errorf("Predict called %d times, want 1", n)
	}

	if _, err := a.Analyze(context.Background(), Upload{Name: "c.png", Data: gradientPNG(false)}); err != nil {
		t.Fatal(err)
	}
	if n := m.calls.Load(); n != 2 {
		t.Errorf("different image: Predict called %d times, want 2", n)
	}
}

func TestAnalyzeBreakerStopsCallingFailingModel(t *testing.T) {
	t.Parallel()

	m := &fakeModel{err: errors.New("device lost")}
	a := NewAnalyzer(Config{
		Models:        StaticModel(m),
		FallbackDelay: -1,
		Breaker:       BreakerConfig{MinRequests: 2, FailureRatio: 0.5},
	})

	for range 5 {
		res, err := a.Analyze(context.Background(), Upload{Name: "lake.png", Data: makePNG(10, 10, nil)})
		if err != nil {
			t.Fatal(err)
		}
		if res.Source != SourceFallback {
			t.Fatalf("source = %q, want fallback", res.Source)
		}
	}
	if n := m.calls.Load(); n != 2 {
		t.Errorf("Predict called %d times, want 2 before the breaker opened", n)
	}
}

func TestAnalyzeBreakerDisabled(t *testing.T) {
	t.Parallel()

	m := &fakeModel{err: errors.New("device lost")}
	a := NewAnalyzer(Config{
		Models:        StaticModel(m),
		FallbackDelay: -1,
		Breaker:       BreakerConfig{Disabled: true},
	})

	for range 6 {
		if _, err := a.Analyze(context.Background(), Upload{Name: "lake.png", Data: makePNG(10, 10, nil)}); err != nil {
			t.Fatal(err)
		}
	}
	if n := m.calls.Load(); n != 6 {
		t.Errorf("Predict called %d times, want 6", n)
	}
}

func TestAnalyzeConcurrent(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{Models: StaticModel(dogModel()), Cache: newMockCache()})
	data := makePNG(16, 16, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Analyze(context.Background(), Upload{Name: "x.png", Data: data})
			if err == nil && res.SuggestedClassification != CategoryLiving {
				err = errors.New("wrong category " + string(res.SuggestedClassification))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}
