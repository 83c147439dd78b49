package category

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// List returns categories by name, each with its subcategories.
	List(ctx context.Context) ([]domain.Category, error)
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
	UpsertSubcategory(ctx context.Context, s domain.Subcategory) (*domain.Subcategory, error)
}
