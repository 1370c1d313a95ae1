package imagesort

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MaxConfidence is the ceiling for any reported confidence.
const MaxConfidence = 0.98

// DefaultConfidence is reported when nothing matched and the mapper
// defaults to CategoryNatural.
const DefaultConfidence = 0.65

// confidenceScale converts an accumulated keyword score into confidence.
const confidenceScale = 0.10

// baseConfidence is the starting confidence per category. Living keyword
// matches are treated as the strongest signal.
var baseConfidence = map[Category]float64{
	CategoryLiving:       0.85,
	CategoryManufactured: 0.80,
	CategoryNatural:      0.75,
}

var primaryFeatures = map[Category][]string{
	CategoryLiving: {
		"Organic shapes and textures detected",
		"Model labels describe a living being",
		"Signs of life such as fur, feathers, skin or leaves",
	},
	CategoryManufactured: {
		"Regular geometric shapes detected",
		"Model labels describe a human-made object",
		"Materials typical of manufacturing",
	},
	CategoryNatural: {
		"Natural landscape elements detected",
		"Model labels describe a natural element",
		"No signs of human construction",
	},
}

var topLabelFeatures = map[Category][]string{
	CategoryLiving: {
		"Most likely label resembles a living being",
		"Decision based on the top label only",
	},
	CategoryManufactured: {
		"Most likely label resembles a human-made object",
		"Decision based on the top label only",
	},
	CategoryNatural: {
		"Most likely label resembles a natural element",
		"Decision based on the top label only",
	},
}

var defaultFeatures = []string{
	"No known keyword in the model labels",
	"Defaulted to natural element",
}

// Mapping is the category mapper's verdict.
type Mapping struct {
	Category   Category
	Confidence float64
	Features   []string
	RawScores  map[Category]float64
	Labels     []Prediction // candidates the decision was based on, best first
}

// MapToCategory selects the topN highest scores, pairs them with labels and
// maps them to a category. Missing labels are named "class_<index>".
func MapToCategory(scores []float32, labels []string, topN int) Mapping {
	return MapPredictions(TopPredictions(scores, labels, topN))
}

// TopPredictions returns the topN (label, score) pairs ordered by
// descending score. Ties keep index order.
func TopPredictions(scores []float32, labels []string, topN int) []Prediction {
	if topN <= 0 {
		topN = DefaultTopN
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if len(idx) > topN {
		idx = idx[:topN]
	}

	preds := make([]Prediction, 0, len(idx))
	for _, i := range idx {
		label := fmt.Sprintf("class_%d", i)
		if i < len(labels) && labels[i] != "" {
			label = labels[i]
		}
		preds = append(preds, Prediction{Label: label, Score: float64(scores[i])})
	}
	return preds
}

// MapPredictions maps already selected candidates (best first) to a category.
//
// Every label adds its score to each category once per matching keyword.
// The strictly highest category wins, ties go to the earlier entry of
// Categories. When every score is zero only the first label is checked
// against TopLabelKeywords; if that misses too the result is
// CategoryNatural at DefaultConfidence.
func MapPredictions(preds []Prediction) Mapping {
	raw := make(map[Category]float64, len(Categories))
	for _, c := range Categories {
		raw[c] = 0
	}
	for _, p := range preds {
		lower := strings.ToLower(p.Label)
		for _, c := range Categories {
			for _, kw := range KeywordSets[c] {
				if strings.Contains(lower, kw) {
					raw[c] += p.Score
				}
			}
		}
	}

	best, bestScore := bestCategory(raw)
	if bestScore > 0 {
		return Mapping{
			Category:   best,
			Confidence: confidenceFor(best, bestScore),
			Features:   primaryFeatures[best],
			RawScores:  raw,
			Labels:     preds,
		}
	}

	if len(preds) > 0 {
		top := preds[0]
		hits := keywordHits(strings.ToLower(top.Label), TopLabelKeywords)
		for _, c := range Categories {
			if hits[c] > 0 {
				return Mapping{
					Category:   c,
					Confidence: confidenceFor(c, top.Score),
					Features:   topLabelFeatures[c],
					RawScores:  raw,
					Labels:     preds,
				}
			}
		}
	}

	return Mapping{
		Category:   CategoryNatural,
		Confidence: DefaultConfidence,
		Features:   defaultFeatures,
		RawScores:  raw,
		Labels:     preds,
	}
}

// bestCategory returns the category with the strictly highest score,
// falling back to tie-break order.
func bestCategory(raw map[Category]float64) (Category, float64) {
	best := Categories[0]
	bestScore := raw[best]
	for _, c := range Categories[1:] {
		if raw[c] > bestScore {
			best, bestScore = c, raw[c]
		}
	}
	return best, bestScore
}

func confidenceFor(c Category, score float64) float64 {
	if score < 0 || math.IsNaN(score) {
		score = 0
	}
	return math.Min(baseConfidence[c]+score*confidenceScale, MaxConfidence)
}
