package httpadapter

import (
	"net/http"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrRetrieval), domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorCode names the failure for clients and metrics.
func errorCode(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporarily_unavailable"
	case domain.IsKind(err, domain.ErrRetrieval):
		return "retrieval_failed"
	case domain.IsKind(err, domain.ErrGeneration):
		return "generation_failed"
	default:
		return "internal_error"
	}
}
