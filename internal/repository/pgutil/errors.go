// Package pgutil maps Postgres failures onto domain errors.
package pgutil

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storefront/internal/domain"
)

// Code returns the SQLSTATE of err, or "" when err is not a server error.
func Code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Constraint returns the violated constraint name, if any.
func Constraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// Map translates well-known failures and returns other errors unchanged.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	switch Code(err) {
	case pgerrcode.UniqueViolation:
		return domain.ErrAlreadyExists
	case pgerrcode.InvalidTextRepresentation, pgerrcode.NoDataFound:
		// malformed uuid literals and missing rows raised from plpgsql
		return domain.ErrNotFound
	case pgerrcode.CheckViolation:
		return domain.ErrValidation
	case pgerrcode.ForeignKeyViolation:
		return domain.ErrNotFound
	}
	return err
}
