package customer

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists and fetches customers and their profiles.
type Repository interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// SearchByEmail returns up to limit customers whose email starts with prefix.
	SearchByEmail(ctx context.Context, prefix string, limit int) ([]domain.Customer, error)
	GetProfile(ctx context.Context, customerID string) (*domain.CustomerProfile, error)
	UpsertProfile(ctx context.Context, p domain.CustomerProfile) (*domain.CustomerProfile, error)
}
