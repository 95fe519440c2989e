package httpadapter

import (
	"net/http"

	"github.com/auditwise/docqa/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrProvider):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrConfiguration):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrCache):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
