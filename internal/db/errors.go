package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
)

// Classify maps a storage error onto the apperr kinds. Errors that already
// carry a kind pass through unchanged; unique violations become
// apperr.ErrConflict and everything else apperr.ErrStorage.
func Classify(err error) error {
	if err == nil || apperr.Kind(err) != nil {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s: %w", apperr.ErrConflict, pgErr.ConstraintName, err)
	}

	return fmt.Errorf("%w: %w", apperr.ErrStorage, err)
}
