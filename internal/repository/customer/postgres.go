package customer

import (
	"context"
	"encoding/json"
	"strings"

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

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *zerolog.Logger) Repository {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &postgresRepo{pool: pool, logger: lg}
}

func (r *postgresRepo) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	const q = `
INSERT INTO customers (email, password_hash)
VALUES ($1, $2)
RETURNING id::text, email, password_hash, created_at
`
	return r.scanCustomer(r.pool.QueryRow(ctx, q, strings.ToLower(c.Email), c.PasswordHash))
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	const q = `
SELECT id::text, email, password_hash, created_at
FROM customers
WHERE lower(email) = lower($1)
LIMIT 1
`
	return r.scanCustomer(r.pool.QueryRow(ctx, q, email))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const q = `
SELECT id::text, email, password_hash, created_at
FROM customers
WHERE id = $1
LIMIT 1
`
	return r.scanCustomer(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) SearchByEmail(ctx context.Context, prefix string, limit int) ([]domain.Customer, error) {
	const q = `
SELECT id::text, email, password_hash, created_at
FROM customers
WHERE lower(email) LIKE $1 || '%'
ORDER BY email
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, escapeLike(strings.ToLower(prefix)), limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("customer repo: search")
		return nil, err
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := r.scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *postgresRepo) GetProfile(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	const q = `
SELECT customer_id::text, first_name, last_name, phone, address, updated_at
FROM customer_profiles
WHERE customer_id = $1
`
	return r.scanProfile(r.pool.QueryRow(ctx, q, customerID))
}

func (r *postgresRepo) UpsertProfile(ctx context.Context, p domain.CustomerProfile) (*domain.CustomerProfile, error) {
	var addrJSON []byte
	if p.Address != nil {
		var err error
		if addrJSON, err = json.Marshal(p.Address); err != nil {
			return nil, err
		}
	}
	const q = `
INSERT INTO customer_profiles (customer_id, first_name, last_name, phone, address)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (customer_id) DO UPDATE SET
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    phone = EXCLUDED.phone,
    address = EXCLUDED.address,
    updated_at = now()
RETURNING customer_id::text, first_name, last_name, phone, address, updated_at
`
	out, err := r.scanProfile(r.pool.QueryRow(ctx, q, p.CustomerID, p.FirstName, p.LastName, p.Phone, addrJSON))
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("customer_id", p.CustomerID).Msg("customer repo: profile saved")
	return out, nil
}

func (r *postgresRepo) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt); err != nil {
		mapped := pgutil.Map(err)
		if mapped == err {
			r.logger.Error().Err(err).Msg("customer repo: scan")
		}
		return nil, mapped
	}
	return &c, nil
}

func (r *postgresRepo) scanProfile(row pgx.Row) (*domain.CustomerProfile, error) {
	var p domain.CustomerProfile
	var addrJSON []byte
	if err := row.Scan(&p.CustomerID, &p.FirstName, &p.LastName, &p.Phone, &addrJSON, &p.UpdatedAt); err != nil {
		return nil, pgutil.Map(err)
	}
	if len(addrJSON) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(addrJSON, &addr); err != nil {
			r.logger.Error().Err(err).Str("customer_id", p.CustomerID).Msg("customer repo: decode address")
			return nil, err
		}
		p.Address = &addr
	}
	return &p, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
