package product

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/dbtest"
	"storefront/internal/domain"
)

func TestPostgres_CreateListGet(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	created, err := repo.Create(ctx, domain.Product{
		SKU:        "SKU1",
		Name:       "Prod 1",
		PriceCents: 1999,
		Stock:      3,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || len(created.Images) != 0 {
		t.Fatalf("unexpected product %+v", created)
	}

	if _, err := repo.Create(ctx, domain.Product{SKU: "HIDDEN", Name: "Hidden", Active: false}); err != nil {
		t.Fatalf("create hidden: %v", err)
	}

	list, err := repo.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("expected only active product, got %+v", list)
	}
	all, err := repo.List(ctx, true)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 products including inactive, got %d err=%v", len(all), err)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PriceCents != 1999 || got.Stock != 3 {
		t.Fatalf("unexpected product %+v", got)
	}

	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
}

func TestPostgres_DuplicateSKU(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	if _, err := repo.Create(ctx, domain.Product{SKU: "DUP", Name: "A", Active: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, domain.Product{SKU: "DUP", Name: "B", Active: true}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestPostgres_UpsertBySKU(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)

	first, err := repo.UpsertBySKU(ctx, domain.Product{SKU: "SKU1", Name: "Prod 1", PriceCents: 100, Images: []string{"a.png"}, Active: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := repo.UpsertBySKU(ctx, domain.Product{SKU: "SKU1", Name: "Prod 1 v2", PriceCents: 150, Active: true})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if second.ID != first.ID || second.Name != "Prod 1 v2" || second.PriceCents != 150 {
		t.Fatalf("unexpected upsert result %+v", second)
	}
	if len(second.Images) != 1 || second.Images[0] != "a.png" {
		t.Fatalf("images should be kept when none supplied, got %v", second.Images)
	}
}

func TestPostgres_DecrementStock(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)
	id := dbtest.InsertProduct(t, pool, "STOCK", 100, 2)

	remaining, err := repo.DecrementStock(ctx, id, 2)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}
	if _, err := repo.DecrementStock(ctx, id, 1); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if _, err := repo.DecrementStock(ctx, "00000000-0000-0000-0000-000000000000", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgres_AppendImageAndDelete(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)
	repo := NewPostgres(pool, nil)
	id := dbtest.InsertProduct(t, pool, "IMG", 100, 1)

	p, err := repo.AppendImage(ctx, id, "http://cdn/x.png")
	if err != nil {
		t.Fatalf("append image: %v", err)
	}
	if p.PrimaryImage() != "http://cdn/x.png" {
		t.Fatalf("unexpected images %v", p.Images)
	}
	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
