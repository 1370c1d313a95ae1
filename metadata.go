package imagesort

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// ImageMetadata holds the descriptive EXIF, IPTC and XMP fields of an
// image. Cameras and photo managers often store what the picture shows
// here, which the fallback heuristic can use when the file name is opaque.
type ImageMetadata struct {
	Title       string
	Description string
	Keywords    []string
}

// Text joins all fields into one lowercase string for keyword matching.
func (m *ImageMetadata) Text() string {
	if m == nil {
		return ""
	}
	parts := make([]string, 0, 2+len(m.Keywords)) //nolint:mnd // title + description + keywords
	if m.Title != "" {
		parts = append(parts, m.Title)
	}
	if m.Description != "" {
		parts = append(parts, m.Description)
	}
	parts = append(parts, m.Keywords...)
	return strings.ToLower(strings.Join(parts, " "))
}

// wantedTags maps (source, tag-name) → field we fill.
var wantedTags = map[imagemeta.Source]map[string]string{
	imagemeta.IPTC: {
		"ObjectName":       "title",
		"Headline":         "title",
		"Caption-Abstract": "description",
		"Caption":          "description",
		"Keywords":         "keywords",
	},
	imagemeta.EXIF: {
		"ImageDescription": "description",
		"XPTitle":          "title",
		"XPSubject":        "description",
		"XPKeywords":       "keywords",
	},
	imagemeta.XMP: {
		"title":       "title",
		"Title":       "title",
		"description": "description",
		"Description": "description",
		"subject":     "keywords",
		"Subject":     "keywords",
	},
}

// ExtractImageMetadata parses descriptive metadata from raw image bytes.
// Returns nil if the data is nil, empty, or carries no descriptive fields.
// Graceful degradation: never returns an error.
func ExtractImageMetadata(data []byte) *ImageMetadata {
	if len(data) == 0 {
		return nil
	}

	format, ok := metadataFormat(data)
	if !ok {
		return nil
	}

	meta := &ImageMetadata{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := wantedTags[ti.Source]; ok {
				_, want := tags[ti.Tag]
				return want
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if applyTag(meta, wantedTags[ti.Source][ti.Tag], ti.Value) {
				found = true
			}
			return nil
		},
	})

	if err != nil || !found {
		return nil
	}

	return meta
}

// metadataFormat maps sniffed content to the imagemeta format.
func metadataFormat(data []byte) (imagemeta.ImageFormat, bool) {
	switch normalizeMIME("", data) {
	case "image/jpeg":
		return imagemeta.JPEG, true
	case "image/png":
		return imagemeta.PNG, true
	case "image/webp":
		return imagemeta.WebP, true
	default:
		return 0, false
	}
}

// applyTag stores v in the field named by field. Reports whether anything
// was stored.
func applyTag(meta *ImageMetadata, field string, v any) bool {
	switch field {
	case "title":
		if s := tagValueString(v); s != "" && meta.Title == "" {
			meta.Title = s
			return true
		}
	case "description":
		if s := tagValueString(v); s != "" && meta.Description == "" {
			meta.Description = s
			return true
		}
	case "keywords":
		kws := tagValueStrings(v)
		meta.Keywords = append(meta.Keywords, kws...)
		return len(kws) > 0
	}
	return false
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []string:
		if len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
		return ""
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	default:
		return ""
	}
}

// tagValueStrings extracts every non-empty string from a tag value.
// Semicolon-separated lists (EXIF XPKeywords) are split.
func tagValueStrings(v any) []string {
	var raw []string
	switch val := v.(type) {
	case string:
		raw = strings.Split(val, ";")
	case []string:
		raw = val
	case []any:
		for _, x := range val {
			if s, ok := x.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
