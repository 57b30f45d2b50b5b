package httpadapter

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

const syncTokenHeader = "X-Sync-Token"

var (
	errTokenNotConfigured = errors.New("Missing env var: SYNC_API_TOKEN")
	errBadToken           = errors.New("unauthorized")
)

// checkSyncToken validates the shared secret. An unset server token is a deployment error,
// not a client error.
func checkSyncToken(expected string, r *http.Request) error {
	if expected == "" {
		return domain.WrapError(domain.ErrConfiguration, "sync token", errTokenNotConfigured)
	}
	received := strings.TrimSpace(r.Header.Get(syncTokenHeader))
	if received == "" || subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return domain.WrapError(domain.ErrUnauthorized, "sync token", errBadToken)
	}
	return nil
}

// protected runs the token check before the method check.
func (rt *Router) protected(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checkSyncToken(rt.token, r); err != nil {
			if domain.IsKind(err, domain.ErrConfiguration) {
				noteAuth(r, "unconfigured")
			} else {
				noteAuth(r, "denied")
			}
			writeError(w, err)
			return
		}
		noteAuth(r, "ok")
		if r.Method != method {
			methodNotAllowed(w, r)
			return
		}
		next(w, r)
	}
}
