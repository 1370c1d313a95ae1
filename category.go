package imagesort

import (
	"fmt"
	"strings"
)

// Category is one of the three pedagogical classes an image is sorted into.
type Category string

const (
	CategoryLiving       Category = "living"       // people, animals, plants
	CategoryManufactured Category = "manufactured" // anything built by humans
	CategoryNatural      Category = "natural"      // landscapes, minerals, weather
)

// Categories lists every category in tie-break order: the first one wins
// when scores are equal.
var Categories = []Category{CategoryLiving, CategoryManufactured, CategoryNatural}

// Valid reports whether c is one of the three known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLiving, CategoryManufactured, CategoryNatural:
		return true
	default:
		return false
	}
}

// ParseCategory normalizes s (case and surrounding space) into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
	}
	return c, nil
}

// AnalysisSource tells which path produced an AnalysisResult.
type AnalysisSource string

const (
	SourceModel    AnalysisSource = "model"    // pretrained model + category mapper
	SourceCache    AnalysisSource = "cache"    // earlier model result for a perceptually identical image
	SourceFallback AnalysisSource = "fallback" // file-name / MIME heuristic, best-effort guess
)

// Prediction is one model label with its probability.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AnalysisResult is the outcome of one analysis call. It is never mutated
// after it is returned.
type AnalysisResult struct {
	SuggestedClassification Category             `json:"suggestedClassification"`
	Confidence              float64              `json:"confidence"`
	Features                []string             `json:"features"`
	RawScores               map[Category]float64 `json:"rawScores,omitempty"`
	Labels                  []Prediction         `json:"labels,omitempty"`
	Source                  AnalysisSource       `json:"source"`
}

// IsGuess reports whether the result came from the heuristic fallback and
// should be presented as a best-effort guess.
func (r AnalysisResult) IsGuess() bool {
	return r.Source == SourceFallback
}
