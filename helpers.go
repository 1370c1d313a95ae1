package imagesort

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultThumbnailSide is the longest side of history thumbnails.
const DefaultThumbnailSide = 160

// EncodeDataURL creates a data: URI from bytes and MIME type.
func EncodeDataURL(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ThumbnailDataURL downscales img so its longest side is at most maxSide
// and returns it as a JPEG data: URI, small enough to keep in the history
// as the entry's imageUrl. Returns "" if encoding fails.
func ThumbnailDataURL(img image.Image, maxSide int) string {
	if maxSide <= 0 {
		maxSide = DefaultThumbnailSide
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return ""
	}
	if w > maxSide || h > maxSide {
		if w >= h {
			h = max(1, h*maxSide/w)
			w = maxSide
		} else {
			w = max(1, w*maxSide/h)
			h = maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 75}); err != nil {
		return ""
	}
	return EncodeDataURL(buf.Bytes(), "image/jpeg")
}
