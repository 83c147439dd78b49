package product

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/repository/pgutil"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zerolog.Logger) Repository {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &postgresRepo{pool: pool, logger: lg}
}

const productColumns = `id::text, sku, name, COALESCE(description, ''), price_cents, stock,
       category_id::text, subcategory_id::text, images, active, created_at, updated_at`

func (r *postgresRepo) List(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	q := `
SELECT ` + productColumns + `
FROM products
WHERE active OR $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, q, includeInactive)
	if err != nil {
		r.logger.Error().Err(err).Msg("product repo: list")
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("product repo: list rows")
		return nil, err
	}
	r.logger.Debug().Int("count", len(result)).Msg("product repo: list")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		err = pgutil.Map(err)
		if err != domain.ErrNotFound {
			r.logger.Error().Err(err).Str("id", id).Msg("product repo: get")
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
INSERT INTO products (sku, name, description, price_cents, stock, category_id, subcategory_id, images, active)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6::uuid, $7::uuid, COALESCE($8, '{}'::text[]), $9)
RETURNING ` + productColumns
	out, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.SKU, p.Name, p.Description, p.PriceCents, p.Stock, p.CategoryID, p.SubcategoryID, p.Images, p.Active))
	if err != nil {
		r.logger.Warn().Err(err).Str("sku", p.SKU).Msg("product repo: create")
		return nil, pgutil.Map(err)
	}
	r.logger.Info().Str("id", out.ID).Str("sku", out.SKU).Msg("product repo: created")
	return out, nil
}

func (r *postgresRepo) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
UPDATE products
SET sku = $2, name = $3, description = NULLIF($4, ''), price_cents = $5, stock = $6,
    category_id = $7::uuid, subcategory_id = $8::uuid, images = COALESCE($9, '{}'::text[]),
    active = $10, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns
	out, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.ID, p.SKU, p.Name, p.Description, p.PriceCents, p.Stock, p.CategoryID, p.SubcategoryID, p.Images, p.Active))
	if err != nil {
		r.logger.Warn().Err(err).Str("id", p.ID).Msg("product repo: update")
		return nil, pgutil.Map(err)
	}
	r.logger.Info().Str("id", out.ID).Msg("product repo: updated")
	return out, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return pgutil.Map(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Info().Str("id", id).Msg("product repo: deleted")
	return nil
}

func (r *postgresRepo) UpsertBySKU(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
INSERT INTO products (sku, name, description, price_cents, stock, category_id, subcategory_id, images, active)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6::uuid, $7::uuid, COALESCE($8, '{}'::text[]), $9)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    stock = EXCLUDED.stock,
    category_id = COALESCE(EXCLUDED.category_id, products.category_id),
    subcategory_id = COALESCE(EXCLUDED.subcategory_id, products.subcategory_id),
    images = CASE WHEN cardinality(EXCLUDED.images) > 0 THEN EXCLUDED.images ELSE products.images END,
    active = EXCLUDED.active,
    updated_at = now()
RETURNING ` + productColumns
	out, err := scanProduct(r.pool.QueryRow(ctx, q,
		p.SKU, p.Name, p.Description, p.PriceCents, p.Stock, p.CategoryID, p.SubcategoryID, p.Images, p.Active))
	if err != nil {
		r.logger.Error().Err(err).Str("sku", p.SKU).Msg("product repo: upsert")
		return nil, pgutil.Map(err)
	}
	r.logger.Debug().Str("id", out.ID).Str("sku", out.SKU).Msg("product repo: upserted")
	return out, nil
}

func (r *postgresRepo) AppendImage(ctx context.Context, id, url string) (*domain.Product, error) {
	q := `
UPDATE products SET images = array_append(images, $2), updated_at = now()
WHERE id = $1
RETURNING ` + productColumns
	out, err := scanProduct(r.pool.QueryRow(ctx, q, id, url))
	if err != nil {
		return nil, pgutil.Map(err)
	}
	return out, nil
}

func (r *postgresRepo) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx, `SELECT decrement_stock($1, $2)`, id, qty).Scan(&remaining)
	if err != nil {
		r.logger.Warn().Err(err).Str("id", id).Int("qty", qty).Msg("product repo: decrement stock")
		switch pgutil.Code(err) {
		case pgerrcode.CheckViolation:
			return 0, domain.ErrInsufficientStock
		case pgerrcode.InvalidParameterValue:
			return 0, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
		}
		return 0, pgutil.Map(err)
	}
	return remaining, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Stock,
		&p.CategoryID,
		&p.SubcategoryID,
		&p.Images,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}
