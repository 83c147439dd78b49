package order

import (
	"context"

	"storefront/internal/domain"
)

type ListFilter struct {
	CustomerID string
	Status     domain.OrderStatus
	Limit      int
	Offset     int
}

type Repository interface {
	// Create stores the header, items and a simulated payment record in one
	// transaction. A draft whose IdempotencyKey was already used by the same
	// customer returns the stored order instead of creating another.
	Create(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	// List returns orders newest first, without items.
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
	// UpdateStatus overwrites the status unconditionally.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	// CancelPending cancels the customer's order only while it is still pending.
	CancelPending(ctx context.Context, id, customerID string) (*domain.Order, error)
	Payment(ctx context.Context, orderID string) (*domain.PaymentRecord, error)
}
