package product

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"storefront/internal/domain"
)

const (
	idA = "11111111-1111-1111-1111-111111111111"
	idB = "22222222-2222-2222-2222-222222222222"
	idC = "33333333-3333-3333-3333-333333333333"
	cat = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
)

type stubRepo struct {
	products    []domain.Product
	lastCreate  domain.Product
	lastUpdate  domain.Product
	appended    string
	decremented map[string]int
	decErr      error
}

func (s *stubRepo) List(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range s.products {
		if p.Active || includeInactive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			clone := p
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubRepo) Create(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.lastCreate = p
	p.ID = idC
	return &p, nil
}

func (s *stubRepo) Update(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.lastUpdate = p
	return &p, nil
}

func (s *stubRepo) Delete(context.Context, string) error { return nil }

func (s *stubRepo) UpsertBySKU(_ context.Context, p domain.Product) (*domain.Product, error) {
	return &p, nil
}

func (s *stubRepo) AppendImage(_ context.Context, id, url string) (*domain.Product, error) {
	s.appended = url
	return &domain.Product{ID: id, Images: []string{url}}, nil
}

func (s *stubRepo) DecrementStock(_ context.Context, id string, qty int) (int, error) {
	if s.decErr != nil {
		return 0, s.decErr
	}
	if s.decremented == nil {
		s.decremented = map[string]int{}
	}
	s.decremented[id] += qty
	return 0, nil
}

type stubImages struct{ err error }

func (s stubImages) PutImage(_ context.Context, prefix string, _ io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "http://cdn/" + prefix + "/x.png", nil
}

func catalog() []domain.Product {
	c := cat
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Product{
		{ID: idA, Name: "Zeta Mug", Description: "ceramic", PriceCents: 1500, Stock: 0, CategoryID: &c, Active: true, CreatedAt: base},
		{ID: idB, Name: "alpha bowl", PriceCents: 900, Stock: 4, Active: true, CreatedAt: base.Add(time.Hour)},
		{ID: idC, Name: "Beta Plate", Description: "Ceramic plate", PriceCents: 3000, Stock: 1, CategoryID: &c, Active: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "hidden", Name: "Hidden", Active: false},
	}
}

func names(p *Page) []string {
	out := make([]string, 0, len(p.Results))
	for _, r := range p.Results {
		out = append(out, r.Name)
	}
	return out
}

func TestSearch_DefaultsToNameAsc(t *testing.T) {
	svc := New(&stubRepo{products: catalog()}, nil, nil)
	page, err := svc.Search(context.Background(), Query{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := names(page)
	want := []string{"alpha bowl", "Beta Plate", "Zeta Mug"}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSearch_FiltersByPriceCategoryTextAndStock(t *testing.T) {
	svc := New(&stubRepo{products: catalog()}, nil, nil)
	ctx := context.Background()
	min, max := int64(1000), int64(2000)

	page, _ := svc.Search(ctx, Query{CategoryID: cat, MinPriceCents: &min, MaxPriceCents: &max})
	if page.Total != 1 || page.Results[0].ID != idA {
		t.Fatalf("unexpected price/category result %+v", page)
	}
	page, _ = svc.Search(ctx, Query{Text: "CERAMIC", InStockOnly: true})
	if page.Total != 1 || page.Results[0].ID != idC {
		t.Fatalf("unexpected text/stock result %+v", page)
	}
}

func TestSearch_SortsAndPages(t *testing.T) {
	svc := New(&stubRepo{products: catalog()}, nil, nil)
	ctx := context.Background()

	page, _ := svc.Search(ctx, Query{Sort: SortPriceDesc})
	if page.Results[0].ID != idC || page.Results[2].ID != idB {
		t.Fatalf("unexpected price_desc order %v", names(page))
	}
	page, _ = svc.Search(ctx, Query{Sort: SortNewest, Limit: 1, Offset: 1})
	if page.Total != 3 || len(page.Results) != 1 || page.Results[0].ID != idB {
		t.Fatalf("unexpected page %+v", page)
	}
	page, _ = svc.Search(ctx, Query{Offset: 10})
	if page.Total != 3 || len(page.Results) != 0 || page.Results == nil {
		t.Fatalf("offset beyond total should give an empty list, got %+v", page)
	}
}

func TestGet_MalformedIDIsNotFound(t *testing.T) {
	svc := New(&stubRepo{products: catalog()}, nil, nil)
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo, nil, nil)
	ctx := context.Background()

	for _, in := range []Input{
		{SKU: "S", Name: ""},
		{SKU: "", Name: "N"},
		{SKU: "S", Name: "N", PriceCents: -1},
		{SKU: "S", Name: "N", Stock: -1},
		{SKU: "S", Name: "N", CategoryID: strPtr("bad")},
	} {
		if _, err := svc.Create(ctx, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}

	empty := ""
	p, err := svc.Create(ctx, Input{SKU: " S1 ", Name: " Mug ", PriceCents: 100, CategoryID: &empty})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if repo.lastCreate.SKU != "S1" || repo.lastCreate.Name != "Mug" || !repo.lastCreate.Active || repo.lastCreate.CategoryID != nil {
		t.Fatalf("unexpected stored product %+v", repo.lastCreate)
	}
	if p.ID != idC {
		t.Fatalf("expected id from repo, got %s", p.ID)
	}
}

func TestUploadImage(t *testing.T) {
	repo := &stubRepo{products: catalog()}
	svc := New(repo, stubImages{}, nil)
	p, err := svc.UploadImage(context.Background(), idA, bytes.NewReader([]byte("png")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if repo.appended != "http://cdn/products/x.png" || p.PrimaryImage() != repo.appended {
		t.Fatalf("unexpected image %q", repo.appended)
	}

	svc = New(repo, stubImages{err: errors.New("file is not an image")}, nil)
	if _, err := svc.UploadImage(context.Background(), idA, bytes.NewReader(nil)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecrementStock(t *testing.T) {
	repo := &stubRepo{}
	svc := New(repo, nil, nil)
	ctx := context.Background()
	if err := svc.DecrementStock(ctx, idA, 2); err != nil || repo.decremented[idA] != 2 {
		t.Fatalf("decrement: %v %v", err, repo.decremented)
	}
	if err := svc.DecrementStock(ctx, idA, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	repo.decErr = domain.ErrInsufficientStock
	if err := svc.DecrementStock(ctx, idA, 1); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
