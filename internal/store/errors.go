package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist or is inactive.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with a unique index or
	// with a guard on the current row state.
	ErrConflict = errors.New("conflict")

	// ErrInvalidReference is returned when a foreign key points at a missing row.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrValueTooLong is returned when a text value exceeds its column width.
	ErrValueTooLong = errors.New("value too long")
)

const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
	pqStringTooLong       = pq.ErrorCode("22001")
)

// mapError translates constraint violations into store errors.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return ErrConflict
	case pqForeignKeyViolation:
		return ErrInvalidReference
	case pqStringTooLong:
		return ErrValueTooLong
	default:
		return err
	}
}
