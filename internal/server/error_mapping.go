package server

import (
	"errors"
	"net/http"

	imagesort "github.com/anatolykoptev/go-imagesort"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, imagesort.ErrDecode), errors.Is(err, imagesort.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, imagesort.ErrAnalysisFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
