package imagesort

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DownloadOpts configures an image download.
type DownloadOpts struct {
	MaxBytes  int64         // larger bodies are rejected (default: Config.MaxUploadBytes)
	MinBytes  int           // smaller bodies are rejected (default: 0)
	Timeout   time.Duration // per attempt (default: 10s)
	UserAgent string        // default: Config.UserAgent
}

const defaultDownloadTimeout = 10 * time.Second

// Download fetches rawURL into an Upload named after the URL's last path
// segment. The StealthClient is tried first when set, the HTTPClient after
// it. Every rejection (bad URL, non-200, non-image, size limits) wraps
// ErrInvalidInput.
func (a *Analyzer) Download(ctx context.Context, rawURL string, opts DownloadOpts) (Upload, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Upload{}, fmt.Errorf("%w: not an http(s) url: %q", ErrInvalidInput, rawURL)
	}

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = a.cfg.MaxUploadBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultDownloadTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = a.cfg.UserAgent
	}

	clients := []*http.Client{a.cfg.HTTPClient}
	if a.cfg.StealthClient != nil {
		clients = []*http.Client{a.cfg.StealthClient, a.cfg.HTTPClient}
	}

	var errs []error
	for _, c := range clients {
		up, err := fetchUpload(ctx, c, u, opts)
		if err == nil {
			return up, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return Upload{}, fmt.Errorf("download %s: %w", u.Redacted(), errors.Join(errs...))
}

// AnalyzeURL downloads the image at rawURL and analyzes it. The last path
// segment of the URL serves as the file name for the fallback heuristic.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) (AnalysisResult, error) {
	up, err := a.Download(ctx, rawURL, DownloadOpts{})
	if err != nil {
		return AnalysisResult{}, err
	}
	return a.Analyze(ctx, up)
}

func fetchUpload(ctx context.Context, client *http.Client, u *url.URL, opts DownloadOpts) (Upload, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := client.Do(req) //nolint:gosec // G704: URL comes from the caller
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Upload{}, fmt.Errorf("%w: status %s", ErrInvalidInput, resp.Status)
	}

	ct := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if !strings.HasPrefix(ct, "image/") {
		return Upload{}, fmt.Errorf("%w: content type %q is not an image", ErrInvalidInput, ct)
	}
	if resp.ContentLength > opts.MaxBytes {
		return Upload{}, fmt.Errorf("%w: body of %d bytes exceeds %d", ErrInvalidInput, resp.ContentLength, opts.MaxBytes)
	}

	up, err := ReadUpload(path.Base(u.Path), ct, resp.Body, opts.MaxBytes)
	if err != nil {
		return Upload{}, err
	}
	if len(up.Data) < opts.MinBytes {
		return Upload{}, fmt.Errorf("%w: body of %d bytes is below %d", ErrInvalidInput, len(up.Data), opts.MinBytes)
	}
	return up, nil
}
