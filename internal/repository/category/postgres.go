package category

import (
	"context"
	"time"

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

func (r *postgresRepo) List(ctx context.Context) ([]domain.Category, error) {
	const q = `
SELECT c.id::text, c.slug, c.name, c.created_at,
       s.id::text, s.slug, s.name, s.created_at
FROM categories c
LEFT JOIN subcategories s ON s.category_id = c.id
ORDER BY c.name ASC, s.name ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var c domain.Category
		var subID, subSlug, subName *string
		var subCreated *time.Time
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.CreatedAt, &subID, &subSlug, &subName, &subCreated); err != nil {
			return nil, err
		}
		if n := len(result); n == 0 || result[n-1].ID != c.ID {
			c.Subcategories = []domain.Subcategory{}
			result = append(result, c)
		}
		if subID != nil {
			sub := domain.Subcategory{ID: *subID, CategoryID: c.ID, Slug: *subSlug, Name: *subName, CreatedAt: *subCreated}
			last := &result[len(result)-1]
			last.Subcategories = append(last.Subcategories, sub)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const q = `
INSERT INTO categories (slug, name)
VALUES ($1, $2)
ON CONFLICT (slug) DO UPDATE
SET name = EXCLUDED.name
RETURNING id::text, slug, name, created_at
`
	var out domain.Category
	if err := r.pool.QueryRow(ctx, q, c.Slug, c.Name).Scan(&out.ID, &out.Slug, &out.Name, &out.CreatedAt); err != nil {
		return nil, pgutil.Map(err)
	}
	out.Subcategories = []domain.Subcategory{}
	return &out, nil
}

func (r *postgresRepo) UpsertSubcategory(ctx context.Context, s domain.Subcategory) (*domain.Subcategory, error) {
	const q = `
INSERT INTO subcategories (category_id, slug, name)
VALUES ($1, $2, $3)
ON CONFLICT (category_id, slug) DO UPDATE
SET name = EXCLUDED.name
RETURNING id::text, category_id::text, slug, name, created_at
`
	var out domain.Subcategory
	err := r.pool.QueryRow(ctx, q, s.CategoryID, s.Slug, s.Name).
		Scan(&out.ID, &out.CategoryID, &out.Slug, &out.Name, &out.CreatedAt)
	if err != nil {
		return nil, pgutil.Map(err)
	}
	return &out, nil
}
