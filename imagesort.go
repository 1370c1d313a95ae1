package imagesort

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	// DefaultTopN is how many model labels the category mapper inspects.
	DefaultTopN = 5

	// DefaultFallbackDelay keeps the heuristic path from answering visibly
	// faster than the model path.
	DefaultFallbackDelay = 1500 * time.Millisecond

	// DefaultMaxUploadBytes caps uploads read by ReadUpload and images
	// fetched by Download.
	DefaultMaxUploadBytes = 10 << 20
)

// Cache abstracts key-value caching (Redis, go-cache, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Rand is the random source used by the fallback heuristic.
// Float64 must return a value in [0, 1).
type Rand interface {
	Float64() float64
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	Models        *ModelProvider // nil = model path disabled, every analysis uses the fallback
	Cache         Cache          // optional: caches model-path results by perceptual hash
	Rand          Rand           // default: math/rand/v2 global source
	StealthClient *http.Client   // optional: TLS-fingerprinted client for AnalyzeURL downloads
	HTTPClient    *http.Client   // optional: default http client (nil = http.DefaultClient)
	UserAgent     string         // default: "Mozilla/5.0 (compatible; go-imagesort/1.0)"

	MaxUploadBytes int64 // default: DefaultMaxUploadBytes; caps AnalyzeURL downloads

	TopN int // default: DefaultTopN (5)

	// FallbackDelay is the artificial latency of the heuristic path.
	// Zero means DefaultFallbackDelay, negative disables the delay.
	FallbackDelay time.Duration

	// Preprocess controls tensor layout and input size for the model.
	Preprocess PreprocessOpts

	// Breaker configures the circuit breaker around the model path.
	Breaker BreakerConfig

	// Optional callbacks for metrics/logging.
	OnPanic    func(tag string, r any)
	OnAnalysis func(AnalysisEvent) // optional: audit log for every analysis decision
}

// AnalysisEvent describes one finished analysis.
type AnalysisEvent struct {
	Name       string
	Category   Category
	Confidence float64
	Source     AnalysisSource
	Duration   time.Duration
	ModelError error // set when the model path failed and the fallback answered
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.FallbackDelay == 0 {
		c.FallbackDelay = DefaultFallbackDelay
	}
	if c.Rand == nil {
		c.Rand = globalRand{}
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; go-imagesort/1.0)"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	c.Preprocess.defaults()
	c.Breaker.defaults()
}
