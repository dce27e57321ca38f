package services

import (
	"errors"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/store"
)

// translate maps repository errors onto client-facing kinds. Errors that
// already carry a kind are returned unchanged.
func translate(err error, notFound, conflict string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(conflict)
	case errors.Is(err, store.ErrInvalidReference):
		return apperr.Validation("referenced record missing or inactive")
	case errors.Is(err, store.ErrValueTooLong):
		return apperr.Validation("value exceeds the allowed length")
	default:
		return apperr.Internal("internal server error", err)
	}
}
