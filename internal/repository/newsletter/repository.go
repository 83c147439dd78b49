package newsletter

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	// Subscribe is idempotent and re-activates a previously unsubscribed email.
	Subscribe(ctx context.Context, email string) (*domain.NewsletterSubscriber, error)
	// Unsubscribe is idempotent; unknown emails are not an error.
	Unsubscribe(ctx context.Context, email string) error
	ListActive(ctx context.Context) ([]domain.NewsletterSubscriber, error)
}
