package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/infrastructure/resilience"
)

var classifyStoreError = resilience.Chain(
	resilience.ContextErrors,
	resilience.OpenCircuit,
	transientSQLState,
)

// transientSQLState retries connection loss, serialization failures, deadlocks,
// admin shutdowns and connection exhaustion.
func transientSQLState(err error) (resilience.ErrorClassification, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001",
			pgErr.Code == "40P01",
			pgErr.Code == "57P01",
			pgErr.Code == "53300":
			return resilience.Transient, true
		}
		return resilience.Permanent, true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return resilience.Transient, true
	}
	return resilience.ErrorClassification{}, false
}

func wrapStoreError(op string, err error) error {
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return domain.WrapError(domain.ErrStore, op, err)
}
