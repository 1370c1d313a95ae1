package imagesort

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/sony/gobreaker/v2"
)

// errCallerGone marks model-path failures caused by the caller's ctx.
var errCallerGone = errors.New("caller context done")

// Analyzer sorts uploaded images into categories. It is safe for
// concurrent use.
type Analyzer struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[AnalysisResult]
	dedup   *dedupIndex
}

// NewAnalyzer applies defaults to cfg and returns an Analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	cfg.defaults()
	return &Analyzer{
		cfg:     cfg,
		breaker: newModelBreaker(cfg.Breaker),
		dedup:   &dedupIndex{},
	}
}

// ModelReady reports whether the model is loaded.
func (a *Analyzer) ModelReady() bool {
	return a.cfg.Models != nil && a.cfg.Models.Ready()
}

// Analyze decodes the upload and classifies it with the model. If the
// model path fails for any reason the heuristic fallback answers instead,
// so the only errors are ErrDecode (not an image) and ErrAnalysisFailed
// (fallback failed too, which only happens when ctx ends).
func (a *Analyzer) Analyze(ctx context.Context, u Upload) (AnalysisResult, error) {
	img, err := DecodeUpload(u)
	if err != nil {
		return AnalysisResult{}, err
	}
	return a.AnalyzeImage(ctx, u, img)
}

// AnalyzeImage is Analyze for callers that already decoded u into img.
// u still feeds the fallback heuristic (name, type, metadata).
func (a *Analyzer) AnalyzeImage(ctx context.Context, u Upload, img image.Image) (AnalysisResult, error) {
	start := time.Now()

	res, modelErr := a.analyzeWithModel(ctx, img)
	if modelErr == nil {
		a.emit(u, res, time.Since(start), nil)
		return res, nil
	}

	slog.Debug("imagesort: model path failed, using fallback", "name", u.Name, "error", modelErr.Error())

	res, err := a.FallbackAnalyze(ctx, u)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyze %s: %w: %w", u.Name, ErrAnalysisFailed, errors.Join(modelErr, err))
	}
	a.emit(u, res, time.Since(start), modelErr)
	return res, nil
}

// analyzeWithModel runs the model path, consulting the perceptual cache
// first. Panics are recovered and reported as errors.
func (a *Analyzer) analyzeWithModel(ctx context.Context, img image.Image) (res AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			if a.cfg.OnPanic != nil {
				a.cfg.OnPanic("analyze", r)
			}
			err = wrapError(ErrModelUnavailable, "analyze", fmt.Errorf("panic: %v", r))
		}
	}()

	if a.cfg.Models == nil {
		return AnalysisResult{}, wrapError(ErrModelUnavailable, "analyze", errors.New("no model configured"))
	}

	cacheKey := ""
	if a.cfg.Cache != nil {
		if k, ok := a.dedup.key(img); ok {
			cacheKey = a.cfg.Cache.Key("analysis", k)
			var cached AnalysisResult
			if a.cfg.Cache.Get(ctx, cacheKey, &cached) && cached.SuggestedClassification.Valid() {
				cached.Source = SourceCache
				return cached, nil
			}
		}
	}

	run := func() (AnalysisResult, error) {
		r, err := a.classify(ctx, img)
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return r, err
	}
	if a.breaker != nil {
		res, err = a.breaker.Execute(run)
		if isBreakerOpen(err) {
			err = wrapError(ErrModelUnavailable, "analyze", err)
		}
	} else {
		res, err = run()
	}
	if err != nil {
		return AnalysisResult{}, err
	}

	if cacheKey != "" {
		a.cfg.Cache.Set(ctx, cacheKey, res)
	}
	return res, nil
}

// classify is the uncached model path: load, preprocess, infer, map.
func (a *Analyzer) classify(ctx context.Context, img image.Image) (AnalysisResult, error) {
	model, err := a.cfg.Models.Get(ctx)
	if err != nil {
		return AnalysisResult{}, err
	}

	input := Preprocess(img, a.cfg.Preprocess)

	scores, err := model.Predict(ctx, input)
	if err != nil {
		return AnalysisResult{}, wrapError(ErrModelUnavailable, "predict", err)
	}
	if len(scores) == 0 {
		return AnalysisResult{}, wrapError(ErrModelUnavailable, "predict", errors.New("empty model output"))
	}

	m := MapToCategory(scores, model.Labels(), a.cfg.TopN)
	slog.Debug("imagesort: model result", "category", m.Category, "confidence", m.Confidence, "labels", m.Labels)

	return AnalysisResult{
		SuggestedClassification: m.Category,
		Confidence:              m.Confidence,
		Features:                slices.Clone(m.Features),
		RawScores:               m.RawScores,
		Labels:                  m.Labels,
		Source:                  SourceModel,
	}, nil
}

func (a *Analyzer) emit(u Upload, res AnalysisResult, took time.Duration, modelErr error) {
	if a.cfg.OnAnalysis == nil {
		return
	}
	a.cfg.OnAnalysis(AnalysisEvent{
		Name:       u.Name,
		Category:   res.SuggestedClassification,
		Confidence: res.Confidence,
		Source:     res.Source,
		Duration:   took,
		ModelError: modelErr,
	})
}
