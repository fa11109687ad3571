package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/strata-api/strata/internal/storage"
)

// PostgreSQL error codes.
const (
	foreignKeyViolationCode = "23503"
	uniqueViolationCode     = "23505"
)

// mapError translates driver errors into the storage sentinel taxonomy so
// the dispatch core can shape them without knowing the backend.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolationCode:
			return fmt.Errorf("%w: foreign key violation (%s)", storage.ErrRelatedNotFound, pgErr.ConstraintName)
		case uniqueViolationCode:
			return fmt.Errorf("%w: unique violation (%s)", storage.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}
