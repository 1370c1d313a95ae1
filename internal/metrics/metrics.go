package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	imagesort "github.com/anatolykoptev/go-imagesort"
)

const namespace = "imagesort"

// Metrics owns a private registry with the HTTP and analysis collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analysisTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	modelLoadsTotal  *prometheus.CounterVec
	historyRecords   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Finished analyses by answering path and category.",
		},
		[]string{"source", "category"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Analysis duration in seconds, fallback delay included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10},
		},
		[]string{"source"},
	)
	modelLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Model load attempts by outcome.",
		},
		[]string{"status"},
	)
	historyRecords := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_records_total",
			Help:      "Recorded user verdicts by correctness.",
		},
		[]string{"correct"},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestTotal,
		requestDuration,
		requestInFlight,
		analysisTotal,
		analysisDuration,
		modelLoadsTotal,
		historyRecords,
	)

	return &Metrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		analysisTotal:    analysisTotal,
		analysisDuration: analysisDuration,
		modelLoadsTotal:  modelLoadsTotal,
		historyRecords:   historyRecords,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// unmatchedRoute labels requests no route claimed (404s, 405s).
const unmatchedRoute = "unmatched"

// Middleware records request count, latency and in-flight gauge. pattern
// maps a request to its route label; requests without one share
// unmatchedRoute so raw paths never become label values.
func (m *Metrics) Middleware(pattern func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := unmatchedRoute
		if pattern != nil {
			if p := pattern(r); p != "" {
				path = p
			}
		}
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// ObserveAnalysis is an imagesort.Config.OnAnalysis callback.
func (m *Metrics) ObserveAnalysis(ev imagesort.AnalysisEvent) {
	category := string(ev.Category)
	if category == "" {
		category = "unknown"
	}
	m.analysisTotal.WithLabelValues(string(ev.Source), category).Inc()
	m.analysisDuration.WithLabelValues(string(ev.Source)).Observe(ev.Duration.Seconds())
}

// ObserveModelLoad is an imagesort.WithLoadObserver callback.
func (m *Metrics) ObserveModelLoad(err error, _ time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelLoadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordHistory(correct bool) {
	m.historyRecords.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
