package imagesort

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"
)

// maxPixels rejects decompression bombs before a full decode.
const maxPixels = 50_000_000

// Upload is an image file handed in by the caller.
type Upload struct {
	Name     string // original file name, e.g. "my_dog.png"
	MIMEType string // declared type, e.g. "image/jpeg"; sniffed when empty
	Data     []byte
}

// ReadUpload reads at most maxBytes from r into an Upload.
// maxBytes <= 0 means DefaultMaxUploadBytes. Larger payloads are rejected.
func ReadUpload(name, mimeType string, r io.Reader, maxBytes int64) (Upload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return Upload{}, fmt.Errorf("%w: upload exceeds %d bytes", ErrInvalidInput, maxBytes)
	}
	if len(data) == 0 {
		return Upload{}, fmt.Errorf("%w: empty upload", ErrInvalidInput)
	}
	return Upload{Name: name, MIMEType: normalizeMIME(mimeType, data), Data: data}, nil
}

// normalizeMIME strips parameters from declared and falls back to content
// sniffing when nothing usable was declared.
func normalizeMIME(declared string, data []byte) string {
	ct := declared
	// Strip MIME parameters: "image/jpeg; charset=utf-8" → "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
		if idx := strings.IndexByte(ct, ';'); idx >= 0 {
			ct = ct[:idx]
		}
	}
	return ct
}

// DecodeUpload decodes the upload into an image. Failures wrap ErrDecode.
func DecodeUpload(u Upload) (image.Image, error) {
	if len(u.Data) == 0 {
		return nil, wrapError(ErrDecode, "decode "+u.Name, errors.New("empty payload"))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return nil, wrapError(ErrDecode, "decode "+u.Name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, wrapError(ErrDecode, "decode "+u.Name,
			fmt.Errorf("unsupported dimensions %dx%d", cfg.Width, cfg.Height))
	}

	img, _, err := image.Decode(bytes.NewReader(u.Data))
	if err != nil {
		return nil, wrapError(ErrDecode, "decode "+u.Name, err)
	}

	slog.Debug("imagesort: decoded upload", "name", u.Name, "format", format,
		"width", cfg.Width, "height", cfg.Height)
	return img, nil
}
