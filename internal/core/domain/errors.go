package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConfiguration    = errors.New("configuration error")
	ErrStore            = errors.New("store failure")
	ErrTemporary        = errors.New("temporary failure")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
