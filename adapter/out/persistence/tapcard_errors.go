package persistence

import (
	"errors"

	"tapcard_server/core/port/out"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common persistence errors
var (
	ErrNotFound     = out.ErrNotFound
	ErrDuplicate    = out.ErrDuplicate
	ErrConflict     = out.ErrConflict
	ErrInvalidInput = out.ErrInvalidInput
)

const uniqueViolation = "23505"

// isUniqueViolation reports a unique index violation from the pgx driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
