package promotion

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
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

const columns = `id::text, title, COALESCE(description, ''), COALESCE(code, ''), discount_percent, starts_at, ends_at, active, created_at`

func (r *postgresRepo) ListLive(ctx context.Context, now time.Time) ([]domain.Promotion, error) {
	return r.list(ctx, `SELECT `+columns+` FROM promotions WHERE active AND starts_at <= $1 AND ends_at > $1 ORDER BY starts_at, id`, now)
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]domain.Promotion, error) {
	return r.list(ctx, `SELECT `+columns+` FROM promotions ORDER BY starts_at DESC, id`)
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Promotion, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Promotion{}
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Promotion) (*domain.Promotion, error) {
	const q = `
INSERT INTO promotions (id, title, description, code, discount_percent, starts_at, ends_at, active)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    code = EXCLUDED.code,
    discount_percent = EXCLUDED.discount_percent,
    starts_at = EXCLUDED.starts_at,
    ends_at = EXCLUDED.ends_at,
    active = EXCLUDED.active
RETURNING ` + columns
	out, err := scan(r.pool.QueryRow(ctx, q, p.ID, p.Title, p.Description, p.Code, p.DiscountPercent, p.StartsAt, p.EndsAt, p.Active))
	if err != nil {
		return nil, pgutil.Map(err)
	}
	return out, nil
}

func scan(row pgx.Row) (*domain.Promotion, error) {
	var p domain.Promotion
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Code, &p.DiscountPercent, &p.StartsAt, &p.EndsAt, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
