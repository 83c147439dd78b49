package newsletter

import (
	"context"
	"testing"

	"storefront/internal/dbtest"
)

func TestPostgres_SubscribeIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool)

	first, err := repo.Subscribe(ctx, "News@X.io")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	second, err := repo.Subscribe(ctx, "news@x.io")
	if err != nil {
		t.Fatalf("subscribe again: %v", err)
	}
	if !first.SubscribedAt.Equal(second.SubscribedAt) {
		t.Fatalf("re-subscribing an active email must not reset it")
	}

	if err := repo.Unsubscribe(ctx, "news@x.io"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := repo.Unsubscribe(ctx, "news@x.io"); err != nil {
		t.Fatalf("unsubscribe again: %v", err)
	}
	if err := repo.Unsubscribe(ctx, "nobody@x.io"); err != nil {
		t.Fatalf("unsubscribe unknown: %v", err)
	}
	active, err := repo.ListActive(ctx)
	if err != nil || len(active) != 0 {
		t.Fatalf("expected no active subscribers, got %+v err=%v", active, err)
	}

	if _, err := repo.Subscribe(ctx, "news@x.io"); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	active, _ = repo.ListActive(ctx)
	if len(active) != 1 || active[0].UnsubscribedAt != nil {
		t.Fatalf("expected re-activated subscriber, got %+v", active)
	}
}
