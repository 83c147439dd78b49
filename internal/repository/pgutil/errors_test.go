package pgutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storefront/internal/domain"
)

func TestMap(t *testing.T) {
	other := errors.New("boom")
	cases := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{pgx.ErrNoRows, domain.ErrNotFound},
		{fmt.Errorf("wrapped: %w", pgx.ErrNoRows), domain.ErrNotFound},
		{&pgconn.PgError{Code: pgerrcode.UniqueViolation}, domain.ErrAlreadyExists},
		{&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}, domain.ErrNotFound},
		{&pgconn.PgError{Code: pgerrcode.CheckViolation}, domain.ErrValidation},
		{other, other},
	}
	for _, tc := range cases {
		if got := Map(tc.in); !errors.Is(got, tc.want) && got != tc.want {
			t.Fatalf("Map(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestCodeAndConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "products_sku_key"})
	if Code(err) != pgerrcode.UniqueViolation {
		t.Fatalf("unexpected code %q", Code(err))
	}
	if Constraint(err) != "products_sku_key" {
		t.Fatalf("unexpected constraint %q", Constraint(err))
	}
	if Code(errors.New("x")) != "" {
		t.Fatalf("expected empty code")
	}
}
