package role

import (
	"context"
	"fmt"

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

func (r *postgresRepo) List(ctx context.Context, customerID string) ([]domain.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE customer_id = $1 ORDER BY role`, customerID)
	if err != nil {
		return nil, pgutil.Map(err)
	}
	defer rows.Close()

	roles := []domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *postgresRepo) Set(ctx context.Context, customerID string, roles []domain.Role) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE customer_id = $1`, customerID); err != nil {
			return pgutil.Map(err)
		}
		for _, role := range roles {
			if _, err := tx.Exec(ctx, `INSERT INTO user_roles (customer_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, customerID, role); err != nil {
				return fmt.Errorf("grant %s: %w", role, pgutil.Map(err))
			}
		}
		return nil
	})
}

func (r *postgresRepo) Grant(ctx context.Context, customerID string, role domain.Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (customer_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, customerID, role)
	return pgutil.Map(err)
}
