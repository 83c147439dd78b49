package product

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	List(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	UpsertBySKU(ctx context.Context, p domain.Product) (*domain.Product, error)
	AppendImage(ctx context.Context, id, url string) (*domain.Product, error)
	// DecrementStock runs decrement_stock and returns the remaining stock.
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
}
