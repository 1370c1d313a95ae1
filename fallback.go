package imagesort

import (
	"context"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"
)

const (
	// fallbackScale is the confidence added per keyword hit in a file name.
	fallbackScale = 0.05
	// fallbackCeiling keeps heuristic guesses below model-level certainty.
	fallbackCeiling = 0.95
	// mimeConfidence is reported for the JPEG-means-photo-of-life rule.
	mimeConfidence = 0.65
	// guessConfidenceMin and guessConfidenceSpan bound the random pick.
	guessConfidenceMin  = 0.55
	guessConfidenceSpan = 0.05
)

// guessWeights are the cumulative-probability weights of the random pick.
var guessWeights = []struct {
	Category Category
	Weight   float64
}{
	{CategoryManufactured, 0.40},
	{CategoryLiving, 0.30},
	{CategoryNatural, 0.30},
}

// FallbackAnalyze guesses a category without the model: keywords in the
// file name first, the JPEG rule second, then keywords in embedded
// metadata text, and a weighted random pick last. The result is always a
// best-effort guess (Source = SourceFallback).
//
// The configured FallbackDelay is applied first; ctx cancellation during
// the delay is the only error.
func (a *Analyzer) FallbackAnalyze(ctx context.Context, u Upload) (AnalysisResult, error) {
	if err := sleepCtx(ctx, a.cfg.FallbackDelay); err != nil {
		return AnalysisResult{}, err
	}

	name := strings.ToLower(path.Base(strings.ReplaceAll(u.Name, "\\", "/")))
	if res, ok := a.fromText(name, "file name"); ok {
		return res, nil
	}

	if isJPEG(normalizeMIME(u.MIMEType, u.Data)) {
		return AnalysisResult{
			SuggestedClassification: CategoryLiving,
			Confidence:              mimeConfidence,
			Features: []string{
				"JPEG photographs usually show people or animals",
				"Best-effort guess without the model",
			},
			Source: SourceFallback,
		}, nil
	}

	if text := ExtractImageMetadata(u.Data).Text(); text != "" {
		if res, ok := a.fromText(text, "embedded metadata"); ok {
			return res, nil
		}
	}

	return a.randomGuess(), nil
}

// fromText scores text against KeywordSets. Ties between the best
// categories are broken by the random source.
func (a *Analyzer) fromText(text, origin string) (AnalysisResult, bool) {
	hits := keywordHits(text, KeywordSets)

	bestHits := 0
	var tied []Category
	for _, c := range Categories {
		switch {
		case hits[c] > bestHits:
			bestHits = hits[c]
			tied = []Category{c}
		case hits[c] == bestHits && bestHits > 0:
			tied = append(tied, c)
		}
	}
	if bestHits == 0 {
		return AnalysisResult{}, false
	}

	winner := tied[0]
	if len(tied) > 1 {
		i := int(a.cfg.Rand.Float64() * float64(len(tied)))
		winner = tied[min(i, len(tied)-1)]
	}

	raw := make(map[Category]float64, len(Categories))
	for _, c := range Categories {
		raw[c] = float64(hits[c])
	}

	features := []string{
		"Keywords found in the " + origin + ": " + strings.Join(matchedKeywords(text, winner), ", "),
		"Best-effort guess without the model",
	}
	slog.Debug("imagesort: fallback keyword match", "origin", origin, "category", winner, "hits", bestHits)

	return AnalysisResult{
		SuggestedClassification: winner,
		Confidence:              math.Min(baseConfidence[winner]+float64(bestHits)*fallbackScale, fallbackCeiling),
		Features:                features,
		RawScores:               raw,
		Source:                  SourceFallback,
	}, true
}

// randomGuess picks a category with guessWeights and a low confidence in
// [0.55, 0.60].
func (a *Analyzer) randomGuess() AnalysisResult {
	r := a.cfg.Rand.Float64()
	pick := guessWeights[len(guessWeights)-1].Category
	acc := 0.0
	for _, w := range guessWeights {
		acc += w.Weight
		if r < acc {
			pick = w.Category
			break
		}
	}

	conf := guessConfidenceMin + a.cfg.Rand.Float64()*guessConfidenceSpan

	return AnalysisResult{
		SuggestedClassification: pick,
		Confidence:              conf,
		Features: []string{
			"No hint in the file name or type",
			"Random best-effort guess, low confidence",
		},
		Source: SourceFallback,
	}
}

func isJPEG(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return true
	default:
		return false
	}
}

// sleepCtx waits d or until ctx ends. d <= 0 returns immediately.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
