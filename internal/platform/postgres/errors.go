package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/audio2srt/internal/store"
)

// SQLSTATE codes with a store equivalent.
const (
	uniqueViolationCode  = "23505"
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
)

// wrapDBError prefixes err with action. Missing rows and constraint
// violations also wrap the matching store sentinel so callers can use
// errors.Is without knowing about pgconn.
func wrapDBError(action string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", action, store.ErrJobNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%s: %w", action, store.ErrJobExists)
		case checkViolationCode:
			return fmt.Errorf("%s: %w: constraint %s", action, store.ErrInvalidEntity, pgErr.ConstraintName)
		case notNullViolationCode:
			return fmt.Errorf("%s: %w: column %s is required", action, store.ErrInvalidEntity, pgErr.ColumnName)
		}
	}

	return fmt.Errorf("%s: %w", action, err)
}
