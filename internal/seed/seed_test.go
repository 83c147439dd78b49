package seed

import (
	"context"
	"testing"

	"storefront/internal/dbtest"
)

func TestApply_IsIdempotent(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()

	for range 2 {
		if err := Apply(ctx, pool, "Staff1234"); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	var productCount, staffRoles int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&productCount); err != nil {
		t.Fatalf("count products: %v", err)
	}
	if productCount != len(products) {
		t.Fatalf("expected %d products, got %d", len(products), productCount)
	}
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM user_roles WHERE role <> 'customer'`).Scan(&staffRoles); err != nil {
		t.Fatalf("count roles: %v", err)
	}
	if staffRoles != len(staff) {
		t.Fatalf("expected %d staff roles, got %d", len(staff), staffRoles)
	}
}
