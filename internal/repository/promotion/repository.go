package promotion

import (
	"context"
	"time"

	"storefront/internal/domain"
)

type Repository interface {
	// ListLive returns enabled promotions whose window contains now.
	ListLive(ctx context.Context, now time.Time) ([]domain.Promotion, error)
	ListAll(ctx context.Context) ([]domain.Promotion, error)
	// Upsert creates p, or updates it in place when p.ID is set.
	Upsert(ctx context.Context, p domain.Promotion) (*domain.Promotion, error)
}
