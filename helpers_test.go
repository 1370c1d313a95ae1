package imagesort

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"strings"
	"testing"
)

func TestEncodeDataURL(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	got := EncodeDataURL(data, "image/jpeg")

	want := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	if got != want {
		t.Errorf("EncodeDataURL() = %q, want %q", got, want)
	}
}

func TestThumbnailDataURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		w, h, maxSide int
		wantW, wantH  int
	}{
		{name: "landscape downscaled", w: 400, h: 200, maxSide: 160, wantW: 160, wantH: 80},
		{name: "portrait downscaled", w: 100, h: 300, maxSide: 150, wantW: 50, wantH: 150},
		{name: "small image kept", w: 40, h: 30, maxSide: 160, wantW: 40, wantH: 30},
		{name: "default side", w: 320, h: 320, maxSide: 0, wantW: DefaultThumbnailSide, wantH: DefaultThumbnailSide},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img, err := DecodeUpload(Upload{Name: "x.jpg", Data: makeJPEG(tc.w, tc.h)})
			if err != nil {
				t.Fatal(err)
			}

			got := ThumbnailDataURL(img, tc.maxSide)
			const prefix = "data:image/jpeg;base64,"
			if !strings.HasPrefix(got, prefix) {
				t.Fatalf("ThumbnailDataURL() = %q, want %q prefix", got, prefix)
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, prefix))
			if err != nil {
				t.Fatal(err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Width != tc.wantW || cfg.Height != tc.wantH {
				t.Errorf("thumbnail = %dx%d, want %dx%d", cfg.Width, cfg.Height, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestThumbnailDataURLEmptyImage(t *testing.T) {
	t.Parallel()

	if got := ThumbnailDataURL(image.NewRGBA(image.Rectangle{}), 100); got != "" {
		t.Errorf("ThumbnailDataURL(empty) = %q, want empty", got)
	}
}
