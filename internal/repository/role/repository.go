package role

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	List(ctx context.Context, customerID string) ([]domain.Role, error)
	// Set replaces all roles of a customer.
	Set(ctx context.Context, customerID string, roles []domain.Role) error
	Grant(ctx context.Context, customerID string, role domain.Role) error
}
