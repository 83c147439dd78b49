package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)
	customerID := dbtest.InsertCustomer(t, pool, "t@x.io")

	now := time.Now().UTC()
	live := Token{Token: "live", CustomerID: customerID, Kind: KindAccess, ExpiresAt: now.Add(time.Hour)}
	stale := Token{Token: "stale", CustomerID: customerID, Kind: KindRefresh, ExpiresAt: now.Add(-time.Hour)}
	for _, tok := range []Token{live, stale} {
		if err := repo.Create(ctx, tok); err != nil {
			t.Fatalf("create %s: %v", tok.Token, err)
		}
	}
	if err := repo.Create(ctx, live); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected duplicate token rejected, got %v", err)
	}

	got, err := repo.Get(ctx, "live")
	if err != nil || got.CustomerID != customerID || got.Kind != KindAccess {
		t.Fatalf("get: %+v err=%v", got, err)
	}

	n, err := repo.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("delete expired: n=%d err=%v", n, err)
	}
	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "live"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
