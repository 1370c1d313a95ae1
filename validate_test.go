package imagesort

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

// makeJPEG returns a minimal valid JPEG of the given dimensions.
func makeJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	// Fill with a solid color so the encoder produces a valid JPEG.
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 100, G: 149, B: 237, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic("makeJPEG: " + err.Error())
	}
	return buf.Bytes()
}

// makePNG encodes img, or a solid w×h square when img is nil.
func makePNG(w, h int, img image.Image) []byte {
	if img == nil {
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := range h {
			for x := range w {
				rgba.Set(x, y, color.RGBA{R: 34, G: 139, B: 34, A: 255})
			}
		}
		img = rgba
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("makePNG: " + err.Error())
	}
	return buf.Bytes()
}

func TestReadUpload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mime     string
		data     []byte
		maxBytes int64
		wantMIME string
		wantErr  bool
	}{
		{name: "declared type kept", mime: "image/jpeg", data: makeJPEG(4, 4), wantMIME: "image/jpeg"},
		{name: "parameters stripped", mime: "image/PNG; charset=binary", data: makePNG(4, 4, nil), wantMIME: "image/png"},
		{name: "octet-stream sniffed", mime: "application/octet-stream", data: makePNG(4, 4, nil), wantMIME: "image/png"},
		{name: "empty type sniffed", mime: "", data: makeJPEG(4, 4), wantMIME: "image/jpeg"},
		{name: "empty upload rejected", mime: "image/png", data: nil, wantErr: true},
		{name: "oversized upload rejected", mime: "image/png", data: make([]byte, 32), maxBytes: 16, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			u, err := ReadUpload("x", tc.mime, bytes.NewReader(tc.data), tc.maxBytes)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.MIMEType != tc.wantMIME {
				t.Errorf("MIMEType = %q, want %q", u.MIMEType, tc.wantMIME)
			}
			if !bytes.Equal(u.Data, tc.data) {
				t.Error("Data differs from input")
			}
		})
	}
}

func TestDecodeUpload(t *testing.T) {
	t.Parallel()

	img, err := DecodeUpload(Upload{Name: "photo.jpg", Data: makeJPEG(40, 30)})
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("bounds = %v, want 40x30", b)
	}

	if _, err := DecodeUpload(Upload{Name: "fake.png", Data: []byte("definitely not an image")}); !errors.Is(err, ErrDecode) {
		t.Errorf("garbage: err = %v, want ErrDecode", err)
	}
	if _, err := DecodeUpload(Upload{Name: "empty.png"}); !errors.Is(err, ErrDecode) {
		t.Errorf("empty: err = %v, want ErrDecode", err)
	}
}

func TestDecodeUploadErrorNamesFile(t *testing.T) {
	t.Parallel()

	_, err := DecodeUpload(Upload{Name: "broken.gif", Data: []byte("GIF89a")})
	if err == nil || !strings.Contains(err.Error(), "broken.gif") {
		t.Errorf("err = %v, want file name in message", err)
	}
}
