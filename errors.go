package imagesort

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means the classification model could not be
	// obtained or run. Analyze absorbs it by switching to the fallback.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrDecode means the upload is not a decodable image.
	ErrDecode = errors.New("image decode failed")

	// ErrAnalysisFailed means both the model path and the fallback failed.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrInvalidInput marks caller mistakes (empty upload, unknown category, ...).
	ErrInvalidInput = errors.New("invalid input")
)

// wrapError keeps both the semantic kind and the cause matchable with errors.Is.
func wrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}
