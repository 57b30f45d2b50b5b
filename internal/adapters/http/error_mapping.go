package httpadapter

import (
	"net/http"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case domain.IsKind(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
