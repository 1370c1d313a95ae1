package imagesort

import (
	"context"
	"errors"
	"testing"
	"time"
)

// seqRand returns vals in order, cycling.
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

func TestFallbackAnalyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		upload   Upload
		rand     []float64
		wantCat  Category
		wantConf float64
	}{
		{
			name:     "natural from file name",
			upload:   Upload{Name: "mountain_photo.jpg", MIMEType: "image/jpeg"},
			wantCat:  CategoryNatural,
			wantConf: 0.80,
		},
		{
			name:     "living from file name",
			upload:   Upload{Name: "my_dog.png", MIMEType: "image/png"},
			wantCat:  CategoryLiving,
			wantConf: 0.90,
		},
		{
			name:     "two hits raise confidence",
			upload:   Upload{Name: "red_car_and_bus.webp", MIMEType: "image/webp"},
			wantCat:  CategoryManufactured,
			wantConf: 0.90,
		},
		{
			name:     "directories ignored",
			upload:   Upload{Name: `C:\dogs\IMG_0042.gif`, MIMEType: "image/gif"},
			rand:     []float64{0.1, 0.0},
			wantCat:  CategoryManufactured,
			wantConf: 0.55,
		},
		{
			name:     "jpeg without hints means living",
			upload:   Upload{Name: "IMG_0042.JPG", MIMEType: "image/jpeg"},
			wantCat:  CategoryLiving,
			wantConf: mimeConfidence,
		},
		{
			name: "jpeg rule wins over embedded metadata",
			upload: Upload{
				Name: "IMG_0042.jpg", MIMEType: "image/jpeg",
				Data: jpegWithEXIF("Sunset over the mountain"),
			},
			wantCat:  CategoryLiving,
			wantConf: mimeConfidence,
		},
		{
			name: "embedded metadata replaces random pick",
			upload: Upload{
				Name: "scan_0042.png", MIMEType: "image/png",
				Data: pngWithEXIF("Sunset over the mountain"),
			},
			rand:     []float64{0.1, 0.0},
			wantCat:  CategoryNatural,
			wantConf: 0.85,
		},
		{
			name:     "random pick manufactured",
			upload:   Upload{Name: "x.dat", MIMEType: "image/png"},
			rand:     []float64{0.39, 0.5},
			wantCat:  CategoryManufactured,
			wantConf: 0.575,
		},
		{
			name:     "random pick living",
			upload:   Upload{Name: "x.dat", MIMEType: "image/png"},
			rand:     []float64{0.5, 1 - 1e-9},
			wantCat:  CategoryLiving,
			wantConf: 0.60,
		},
		{
			name:     "random pick natural",
			upload:   Upload{Name: "x.dat", MIMEType: "image/png"},
			rand:     []float64{0.95, 0},
			wantCat:  CategoryNatural,
			wantConf: 0.55,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Config{FallbackDelay: -1}
			if tc.rand != nil {
				cfg.Rand = &seqRand{vals: tc.rand}
			}
			a := NewAnalyzer(cfg)

			res, err := a.FallbackAnalyze(context.Background(), tc.upload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.SuggestedClassification != tc.wantCat {
				t.Errorf("category = %q, want %q", res.SuggestedClassification, tc.wantCat)
			}
			if !approx(res.Confidence, tc.wantConf) {
				t.Errorf("confidence = %v, want %v", res.Confidence, tc.wantConf)
			}
			if res.Source != SourceFallback || !res.IsGuess() {
				t.Errorf("source = %q, want fallback", res.Source)
			}
			if len(res.Features) == 0 {
				t.Error("features empty")
			}
		})
	}
}

func TestFallbackTieUsesRandomSource(t *testing.T) {
	t.Parallel()

	u := Upload{Name: "dog_in_car.png", MIMEType: "image/png"}

	low := NewAnalyzer(Config{FallbackDelay: -1, Rand: &seqRand{vals: []float64{0.2}}})
	res, err := low.FallbackAnalyze(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if res.SuggestedClassification != CategoryLiving {
		t.Errorf("r=0.2: category = %q, want living", res.SuggestedClassification)
	}

	high := NewAnalyzer(Config{FallbackDelay: -1, Rand: &seqRand{vals: []float64{0.8}}})
	res, err = high.FallbackAnalyze(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if res.SuggestedClassification != CategoryManufactured {
		t.Errorf("r=0.8: category = %q, want manufactured", res.SuggestedClassification)
	}
}

func TestFallbackConfidenceBounded(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{FallbackDelay: -1})
	res, err := a.FallbackAnalyze(context.Background(), Upload{Name: "dog_puppy_terrier_hound_poodle_husky.png"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence > fallbackCeiling {
		t.Errorf("confidence = %v, want <= %v", res.Confidence, fallbackCeiling)
	}
}

func TestFallbackDelay(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{FallbackDelay: 30 * time.Millisecond})
	start := time.Now()
	if _, err := a.FallbackAnalyze(context.Background(), Upload{Name: "lake.png"}); err != nil {
		t.Fatal(err)
	}
	if took := time.Since(start); took < 30*time.Millisecond {
		t.Errorf("fallback answered after %v, want >= 30ms", took)
	}
}

func TestFallbackDelayHonoursContext(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(Config{FallbackDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.FallbackAnalyze(ctx, Upload{Name: "lake.png"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
