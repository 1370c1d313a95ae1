package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	imagesort "github.com/anatolykoptev/go-imagesort"
	"github.com/anatolykoptev/go-imagesort/internal/metrics"
)

// multipartOverhead is the slack allowed on top of the file limit for
// multipart boundaries and headers.
const multipartOverhead = 1 << 20

type Analyzer interface {
	AnalyzeImage(ctx context.Context, u imagesort.Upload, img image.Image) (imagesort.AnalysisResult, error)
	AnalyzeURL(ctx context.Context, rawURL string) (imagesort.AnalysisResult, error)
	ModelReady() bool
}

type HistoryStore interface {
	Record(ctx context.Context, e imagesort.NewEntry) (imagesort.HistoryEntry, error)
	List(ctx context.Context) []imagesort.HistoryEntry
	Clear(ctx context.Context) error
	Stats(ctx context.Context) imagesort.HistoryStats
}

type Options struct {
	MaxUploadBytes int64   // default: imagesort.DefaultMaxUploadBytes
	RateLimit      float64 // analyze requests per second; 0 disables limiting
	RateBurst      int     // default: 1
	ThumbnailSide  int     // default: imagesort.DefaultThumbnailSide
}

type Router struct {
	analyzer Analyzer
	history  HistoryStore
	metrics  *metrics.Metrics
	opts     Options
	limiter  *rate.Limiter
}

// NewRouter wires the HTTP API. m may be nil.
func NewRouter(analyzer Analyzer, history HistoryStore, m *metrics.Metrics, opts Options) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = imagesort.DefaultMaxUploadBytes
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	if opts.ThumbnailSide <= 0 {
		opts.ThumbnailSide = imagesort.DefaultThumbnailSide
	}
	rt := &Router{analyzer: analyzer, history: history, metrics: m, opts: opts}
	if opts.RateLimit > 0 {
		rt.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("POST /v1/analyze", rt.rateLimit(http.HandlerFunc(rt.analyzeUpload)))
	mux.Handle("POST /v1/analyze/url", rt.rateLimit(http.HandlerFunc(rt.analyzeURL)))
	mux.HandleFunc("GET /v1/history", rt.listHistory)
	mux.HandleFunc("POST /v1/history", rt.recordHistory)
	mux.HandleFunc("DELETE /v1/history", rt.clearHistory)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var h http.Handler = mux
	if rt.metrics != nil {
		h = rt.metrics.Middleware(func(r *http.Request) string { return r.Pattern }, h)
	}
	return accessLogMiddleware(h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"model_ready": rt.analyzer.ModelReady(),
	})
}

type analyzeResponse struct {
	imagesort.AnalysisResult
	ImageName string `json:"imageName,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

func (rt *Router) analyzeUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	upload, err := imagesort.ReadUpload(header.Filename, header.Header.Get("Content-Type"), file, rt.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	img, err := imagesort.DecodeUpload(upload)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	res, err := rt.analyzer.AnalyzeImage(r.Context(), upload, img)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	resp := analyzeResponse{
		AnalysisResult: res,
		ImageName:      upload.Name,
		ImageURL:       imagesort.ThumbnailDataURL(img, rt.opts.ThumbnailSide),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) analyzeURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	res, err := rt.analyzer.AnalyzeURL(r.Context(), req.URL)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{AnalysisResult: res, ImageURL: req.URL})
}

func (rt *Router) listHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": rt.history.List(r.Context()),
		"stats":   rt.history.Stats(r.Context()),
	})
}

func (rt *Router) recordHistory(w http.ResponseWriter, r *http.Request) {
	var req imagesort.NewEntry
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	entry, err := rt.history.Record(r.Context(), req)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordHistory(entry.IsCorrect)
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (rt *Router) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := rt.history.Clear(r.Context()); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) rateLimit(next http.Handler) http.Handler {
	if rt.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rt.limiter.Allow() {
			retry := max(1, int(1/float64(rt.limiter.Limit())))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("imagesort: encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
