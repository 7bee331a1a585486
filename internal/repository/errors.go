package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStateConflict is returned by compare-and-swap updates when the
// row is no longer in the expected pre-state. Callers surface it as a
// CONFLICT to the actor; UID allocation treats it as the normal
// concurrency-control path and retries.
var ErrStateConflict = errors.New("entity not in expected state")

// ErrDuplicateKey is returned when an insert trips a uniqueness
// constraint (public UID, serial number, username).
var ErrDuplicateKey = errors.New("duplicate key")

// IsUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
