package repo

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUsername is returned when a username is already taken.
	ErrDuplicateUsername = errors.New("username already registered")
)

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
