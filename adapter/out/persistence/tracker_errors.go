package persistence

import (
	"database/sql"
	"errors"

	"tracker_server/core/port/out"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// isUniqueViolation recognises duplicate-key errors from both supported drivers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// mapError translates driver errors into the repository sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return out.ErrNotFound
	case isUniqueViolation(err):
		return out.ErrDuplicate
	default:
		return err
	}
}

// expectAffected returns ErrNotFound when an update or delete matched nothing.
func expectAffected(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return out.ErrNotFound
	}
	return nil
}
