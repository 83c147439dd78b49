package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/logging"
	productrepo "storefront/internal/repository/product"
)

// ImageStore stores an uploaded image and returns its public URL.
type ImageStore interface {
	PutImage(ctx context.Context, prefix string, r io.Reader) (string, error)
}

type Service struct {
	repo   productrepo.Repository
	images ImageStore
	logger zerolog.Logger
}

func New(repo productrepo.Repository, images ImageStore, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = logging.Component(*logger, "product")
	}
	return &Service{repo: repo, images: images, logger: lg}
}

// Query holds catalog filters. Zero values mean "no filter".
type Query struct {
	CategoryID    string
	SubcategoryID string
	Text          string
	MinPriceCents *int64
	MaxPriceCents *int64
	InStockOnly   bool
	Sort          string
	Limit         int
	Offset        int
}

type Page struct {
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	Results []domain.Product `json:"results"`
}

const (
	SortName      = "name"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"

	defaultLimit = 24
	maxLimit     = 100
)

// Search lists active products matching q.
func (s *Service) Search(ctx context.Context, q Query) (*Page, error) {
	all, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, err
	}
	return paginate(sortProducts(filterProducts(all, q), q.Sort), q), nil
}

// ListAll returns every product, inactive ones included, for the admin view.
func (s *Service) ListAll(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx, true)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Input is the admin-editable product.
type Input struct {
	SKU           string   `json:"sku"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PriceCents    int64    `json:"priceCents"`
	Stock         int      `json:"stock"`
	CategoryID    *string  `json:"categoryId"`
	SubcategoryID *string  `json:"subcategoryId"`
	Images        []string `json:"images"`
	Active        *bool    `json:"active"`
}

func (in Input) toProduct() (domain.Product, error) {
	p := domain.Product{
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		PriceCents:    in.PriceCents,
		Stock:         in.Stock,
		CategoryID:    emptyToNil(in.CategoryID),
		SubcategoryID: emptyToNil(in.SubcategoryID),
		Images:        in.Images,
		Active:        in.Active == nil || *in.Active,
	}
	switch {
	case p.Name == "":
		return p, fmt.Errorf("%w: name required", domain.ErrValidation)
	case p.SKU == "":
		return p, fmt.Errorf("%w: sku required", domain.ErrValidation)
	case p.PriceCents < 0:
		return p, fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	case p.PriceCents > domain.MaxUnitPriceCents:
		return p, fmt.Errorf("%w: price exceeds %d cents", domain.ErrValidation, int64(domain.MaxUnitPriceCents))
	case p.Stock < 0:
		return p, fmt.Errorf("%w: stock must not be negative", domain.ErrValidation)
	}
	for _, ref := range []*string{p.CategoryID, p.SubcategoryID} {
		if ref != nil {
			if _, err := uuid.Parse(*ref); err != nil {
				return p, fmt.Errorf("%w: invalid category reference", domain.ErrValidation)
			}
		}
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*domain.Product, error) {
	p, err := in.toProduct()
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	p, err := in.toProduct()
	if err != nil {
		return nil, err
	}
	p.ID = id
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// UploadImage stores r and appends its URL to the product's images.
func (s *Service) UploadImage(ctx context.Context, id string, r io.Reader) (*domain.Product, error) {
	if s.images == nil {
		return nil, errors.New("image storage not configured")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	url, err := s.images.PutImage(ctx, "products", r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	s.logger.Info().Str("product_id", id).Str("url", url).Msg("image uploaded")
	return s.repo.AppendImage(ctx, id, url)
}

// DecrementStock is the best-effort stock adjustment used after checkout.
func (s *Service) DecrementStock(ctx context.Context, id string, qty int) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	remaining, err := s.repo.DecrementStock(ctx, id, qty)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("product_id", id).Int("remaining", remaining).Msg("stock decremented")
	return nil
}

func filterProducts(products []domain.Product, q Query) []domain.Product {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if q.CategoryID != "" && (p.CategoryID == nil || *p.CategoryID != q.CategoryID) {
			continue
		}
		if q.SubcategoryID != "" && (p.SubcategoryID == nil || *p.SubcategoryID != q.SubcategoryID) {
			continue
		}
		if q.MinPriceCents != nil && p.PriceCents < *q.MinPriceCents {
			continue
		}
		if q.MaxPriceCents != nil && p.PriceCents > *q.MaxPriceCents {
			continue
		}
		if q.InStockOnly && p.Stock <= 0 {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(p.Name), text) && !strings.Contains(strings.ToLower(p.Description), text) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sortProducts(products []domain.Product, by string) []domain.Product {
	less := func(i, j int) bool { return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name) }
	switch by {
	case SortPriceAsc:
		less = func(i, j int) bool { return products[i].PriceCents < products[j].PriceCents }
	case SortPriceDesc:
		less = func(i, j int) bool { return products[i].PriceCents > products[j].PriceCents }
	case SortNewest:
		less = func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) }
	}
	sort.SliceStable(products, less)
	return products
}

func paginate(products []domain.Product, q Query) *Page {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	page := &Page{Total: len(products), Limit: limit, Offset: offset, Results: []domain.Product{}}
	if offset >= len(products) {
		return page
	}
	end := offset + limit
	if end > len(products) {
		end = len(products)
	}
	page.Results = products[offset:end]
	return page
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
