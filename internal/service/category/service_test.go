package category

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"
)

type stubRepo struct {
	lastCategory domain.Category
	lastSub      domain.Subcategory
}

func (s *stubRepo) List(context.Context) ([]domain.Category, error) { return nil, nil }

func (s *stubRepo) Upsert(_ context.Context, c domain.Category) (*domain.Category, error) {
	s.lastCategory = c
	return &c, nil
}

func (s *stubRepo) UpsertSubcategory(_ context.Context, sub domain.Subcategory) (*domain.Subcategory, error) {
	s.lastSub = sub
	return &sub, nil
}

func TestUpsert_DerivesSlugFromName(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo)
	if _, err := svc.Upsert(context.Background(), domain.Category{Name: " Home & Garden "}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if repo.lastCategory.Slug != "home-garden" || repo.lastCategory.Name != "Home & Garden" {
		t.Fatalf("unexpected category %+v", repo.lastCategory)
	}
}

func TestUpsert_RejectsEmptyName(t *testing.T) {
	svc := New(&stubRepo{})
	if _, err := svc.Upsert(context.Background(), domain.Category{Slug: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsertSubcategory(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo)
	ctx := context.Background()
	if _, err := svc.UpsertSubcategory(ctx, domain.Subcategory{CategoryID: "bad", Name: "Mugs"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	sub := domain.Subcategory{CategoryID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Name: "Coffee Mugs", Slug: "Coffee Mugs"}
	if _, err := svc.UpsertSubcategory(ctx, sub); err != nil {
		t.Fatalf("upsert sub: %v", err)
	}
	if repo.lastSub.Slug != "coffee-mugs" {
		t.Fatalf("unexpected slug %q", repo.lastSub.Slug)
	}
}
