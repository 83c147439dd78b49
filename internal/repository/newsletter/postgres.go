package newsletter

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/repository/pgutil"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Subscribe(ctx context.Context, email string) (*domain.NewsletterSubscriber, error) {
	const q = `
INSERT INTO newsletter_subscribers (email)
VALUES ($1)
ON CONFLICT (email) DO UPDATE SET
    subscribed_at = CASE WHEN newsletter_subscribers.unsubscribed_at IS NULL
                         THEN newsletter_subscribers.subscribed_at ELSE now() END,
    unsubscribed_at = NULL
RETURNING email, subscribed_at, unsubscribed_at
`
	var s domain.NewsletterSubscriber
	if err := r.pool.QueryRow(ctx, q, strings.ToLower(email)).Scan(&s.Email, &s.SubscribedAt, &s.UnsubscribedAt); err != nil {
		return nil, pgutil.Map(err)
	}
	return &s, nil
}

func (r *postgresRepo) Unsubscribe(ctx context.Context, email string) error {
	const q = `
UPDATE newsletter_subscribers SET unsubscribed_at = now()
WHERE email = $1 AND unsubscribed_at IS NULL
`
	_, err := r.pool.Exec(ctx, q, strings.ToLower(email))
	return err
}

func (r *postgresRepo) ListActive(ctx context.Context) ([]domain.NewsletterSubscriber, error) {
	rows, err := r.pool.Query(ctx, `SELECT email, subscribed_at, unsubscribed_at FROM newsletter_subscribers WHERE unsubscribed_at IS NULL ORDER BY subscribed_at, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.NewsletterSubscriber{}
	for rows.Next() {
		var s domain.NewsletterSubscriber
		if err := rows.Scan(&s.Email, &s.SubscribedAt, &s.UnsubscribedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
