package imagesort

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestMapToCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		scores   []float32
		labels   []string
		wantCat  Category
		wantConf float64
	}{
		{
			name:     "living wins",
			scores:   []float32{0.8, 0.1, 0.05},
			labels:   []string{"golden retriever", "tennis ball", "lakeside"},
			wantCat:  CategoryLiving,
			wantConf: 0.85 + 0.8*0.10,
		},
		{
			name:     "manufactured wins",
			scores:   []float32{0.05, 0.7},
			labels:   []string{"tabby", "sports car"},
			wantCat:  CategoryManufactured,
			wantConf: 0.80 + 0.7*0.10,
		},
		{
			name:     "natural wins",
			scores:   []float32{0.6, 0.2},
			labels:   []string{"volcano", "alp"},
			wantCat:  CategoryNatural,
			wantConf: 0.75 + 0.8*0.10,
		},
		{
			name:     "tie goes to living",
			scores:   []float32{0.5, 0.5},
			labels:   []string{"dog", "car"},
			wantCat:  CategoryLiving,
			wantConf: 0.85 + 0.5*0.10,
		},
		{
			name:     "tie between manufactured and natural goes to manufactured",
			scores:   []float32{0.4, 0.4},
			labels:   []string{"valley", "laptop"},
			wantCat:  CategoryManufactured,
			wantConf: 0.80 + 0.4*0.10,
		},
		{
			name:     "confidence capped",
			scores:   []float32{1, 1, 1, 1, 1},
			labels:   []string{"dog", "puppy", "terrier", "hound", "dog sled"},
			wantCat:  CategoryLiving,
			wantConf: MaxConfidence,
		},
		{
			name:     "no keyword defaults to natural",
			scores:   []float32{0.9, 0.05},
			labels:   []string{"xylophonist", "quux"},
			wantCat:  CategoryNatural,
			wantConf: DefaultConfidence,
		},
		{
			name:     "top label generic word",
			scores:   []float32{0.4, 0.3},
			labels:   []string{"animal", "quux"},
			wantCat:  CategoryLiving,
			wantConf: 0.85 + 0.4*0.10,
		},
		{
			name:     "only top label checked",
			scores:   []float32{0.4, 0.3},
			labels:   []string{"quux", "vehicle"},
			wantCat:  CategoryNatural,
			wantConf: DefaultConfidence,
		},
		{
			name:     "empty scores",
			scores:   nil,
			labels:   nil,
			wantCat:  CategoryNatural,
			wantConf: DefaultConfidence,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := MapToCategory(tc.scores, tc.labels, DefaultTopN)
			if m.Category != tc.wantCat {
				t.Errorf("Category = %q, want %q (raw %v)", m.Category, tc.wantCat, m.RawScores)
			}
			if !approx(m.Confidence, tc.wantConf) {
				t.Errorf("Confidence = %v, want %v", m.Confidence, tc.wantConf)
			}
			if len(m.Features) == 0 {
				t.Error("Features empty")
			}
		})
	}
}

func TestMapToCategoryConfidenceNeverExceedsMax(t *testing.T) {
	t.Parallel()

	for _, c := range Categories {
		labels := make([]string, 0, DefaultTopN)
		scores := make([]float32, 0, DefaultTopN)
		for _, kw := range KeywordSets[c][:DefaultTopN] {
			labels = append(labels, kw)
			scores = append(scores, 1)
		}
		m := MapToCategory(scores, labels, DefaultTopN)
		if m.Category != c {
			t.Errorf("%s keywords mapped to %q", c, m.Category)
		}
		if m.Confidence > MaxConfidence {
			t.Errorf("%s: confidence %v > %v", c, m.Confidence, MaxConfidence)
		}
	}
}

func TestMapToCategoryOnlyTopNCount(t *testing.T) {
	t.Parallel()

	// The living label is sixth and must be ignored with topN=5.
	scores := []float32{0.10, 0.09, 0.08, 0.07, 0.06, 0.05}
	labels := []string{"valley", "q1", "q2", "q3", "q4", "dog"}

	m := MapToCategory(scores, labels, 5)
	if m.Category != CategoryNatural {
		t.Errorf("Category = %q, want natural", m.Category)
	}
	if len(m.Labels) != 5 {
		t.Errorf("len(Labels) = %d, want 5", len(m.Labels))
	}
}

func TestTopPredictions(t *testing.T) {
	t.Parallel()

	preds := TopPredictions([]float32{0.1, 0.7, 0.2, 0.7}, []string{"a", "b"}, 3)

	want := []Prediction{
		{Label: "b", Score: float64(float32(0.7))},
		{Label: "class_3", Score: float64(float32(0.7))},
		{Label: "class_2", Score: float64(float32(0.2))},
	}
	if len(preds) != len(want) {
		t.Fatalf("len = %d, want %d", len(preds), len(want))
	}
	for i := range want {
		if preds[i] != want[i] {
			t.Errorf("preds[%d] = %+v, want %+v", i, preds[i], want[i])
		}
	}
}

func TestConfidenceForIgnoresInvalidScores(t *testing.T) {
	t.Parallel()

	if got := confidenceFor(CategoryNatural, math.NaN()); got != 0.75 {
		t.Errorf("NaN: got %v, want 0.75", got)
	}
	if got := confidenceFor(CategoryManufactured, -3); got != 0.80 {
		t.Errorf("negative: got %v, want 0.80", got)
	}
}
