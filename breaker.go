package imagesort

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker around the model path.
// Zero values mean "use defaults".
type BreakerConfig struct {
	Disabled     bool
	MinRequests  uint32        // default: 5
	FailureRatio float64       // default: 0.5
	OpenTimeout  time.Duration // default: 30s
	HalfOpenMax  uint32        // default: 1
}

func (c *BreakerConfig) defaults() {
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMax == 0 {
		c.HalfOpenMax = 1
	}
}

func newModelBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[AnalysisResult] {
	if cfg.Disabled {
		return nil
	}
	return gobreaker.NewCircuitBreaker[AnalysisResult](gobreaker.Settings{
		Name:        "model",
		MaxRequests: cfg.HalfOpenMax,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about model health.
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("imagesort: circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// isBreakerOpen reports whether err comes from an open or saturated breaker.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
