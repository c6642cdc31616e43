package cerr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// WrapDBError maps a pgx error on target (e.g. "building") to a coded error.
// Errors that already carry a code are returned unchanged.
func WrapDBError(target string, err error) error {
	if err == nil {
		return nil
	}
	var cErr *Error
	if errors.As(err, &cErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return NewError(AlreadyExists, fmt.Sprintf("%s already exists", target), err)
		case pgForeignKeyViolation:
			return NewError(InvalidArgument, fmt.Sprintf("%s references a missing record", target), err)
		}
	}
	return NewError(Internal, "server error", fmt.Errorf("database error on %s: %w", target, err))
}
