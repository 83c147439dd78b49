package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/repository/pgutil"
)

const paymentStatusSimulated = "simulated"

// errReplayed signals that the idempotency key already names an order.
var errReplayed = errors.New("idempotency key already used")

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

const orderColumns = `id::text, customer_id::text, placed_by::text, status, subtotal_cents, shipping_cents,
       total_amount_cents, shipping_address, payment_method, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	addrJSON, err := json.Marshal(draft.ShippingAddress)
	if err != nil {
		return nil, err
	}

	var out *domain.Order
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		q := `
INSERT INTO orders (customer_id, placed_by, subtotal_cents, shipping_cents, total_amount_cents, shipping_address, payment_method, idempotency_key)
VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, NULLIF($8, ''))
ON CONFLICT (customer_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
RETURNING ` + orderColumns
		o, err := scanOrder(tx.QueryRow(ctx, q,
			draft.CustomerID, draft.PlacedBy, draft.SubtotalCents, draft.ShippingCents,
			draft.TotalAmountCents, addrJSON, draft.PaymentMethod, draft.IdempotencyKey))
		if errors.Is(err, pgx.ErrNoRows) {
			return errReplayed
		}
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		const itemQ = `
INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents, product_name, product_image, position)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
RETURNING id::text
`
		o.Items = make([]domain.OrderItem, 0, len(draft.Items))
		for i, it := range draft.Items {
			item := it
			item.OrderID = o.ID
			if err := tx.QueryRow(ctx, itemQ, o.ID, it.ProductID, it.Quantity, it.UnitPriceCents,
				it.ProductNameSnapshot, it.ProductImageSnapshot, i).Scan(&item.ID); err != nil {
				return fmt.Errorf("insert item %s: %w", it.ProductID, err)
			}
			o.Items = append(o.Items, item)
		}

		const payQ = `
INSERT INTO payment_records (order_id, method, amount_cents, status)
VALUES ($1, $2, $3, $4)
`
		if _, err := tx.Exec(ctx, payQ, o.ID, o.PaymentMethod, o.TotalAmountCents, paymentStatusSimulated); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		out = o
		return nil
	})
	if errors.Is(err, errReplayed) {
		return r.replay(ctx, draft)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("customer_id", draft.CustomerID).Msg("order repo: create")
		return nil, pgutil.Map(err)
	}
	r.logger.Info().Str("id", out.ID).Int64("total_cents", out.TotalAmountCents).Int("items", len(out.Items)).Msg("order repo: created")
	return out, nil
}

// replay returns the order an earlier Create stored under the same key. A key
// reused for a different amount is a conflict, not a replay.
func (r *postgresRepo) replay(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 AND idempotency_key = $2`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, draft.CustomerID, draft.IdempotencyKey))
	if err != nil {
		return nil, pgutil.Map(err)
	}
	if o.TotalAmountCents != draft.TotalAmountCents {
		r.logger.Warn().Str("id", o.ID).Str("customer_id", draft.CustomerID).Msg("order repo: idempotency key reused with a different total")
		return nil, fmt.Errorf("%w: idempotency key belongs to another order", domain.ErrAlreadyExists)
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	r.logger.Info().Str("id", o.ID).Str("customer_id", draft.CustomerID).Msg("order repo: replayed")
	return o, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, pgutil.Map(err)
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const q = `
SELECT id::text, order_id::text, product_id::text, quantity, unit_price_cents, product_name, COALESCE(product_image, '')
FROM order_items
WHERE order_id = $1
ORDER BY position
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents,
			&it.ProductNameSnapshot, &it.ProductImageSnapshot); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresRepo) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1 = '' OR customer_id::text = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4
`
	rows, err := r.pool.Query(ctx, q, f.CustomerID, string(f.Status), limit, f.Offset)
	if err != nil {
		r.logger.Error().Err(err).Msg("order repo: list")
		return nil, err
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	q := `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id, status))
	if err != nil {
		return nil, pgutil.Map(err)
	}
	r.logger.Info().Str("id", id).Str("status", string(status)).Msg("order repo: status updated")
	return o, nil
}

func (r *postgresRepo) CancelPending(ctx context.Context, id, customerID string) (*domain.Order, error) {
	q := `
UPDATE orders SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND customer_id = $2 AND status = 'pending'
RETURNING ` + orderColumns
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id, customerID))
	if err == nil {
		return o, nil
	}
	if mapped := pgutil.Map(err); mapped != domain.ErrNotFound {
		return nil, mapped
	}
	// Distinguish a missing or foreign order from one that already moved on.
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.CustomerID != customerID {
		return nil, domain.ErrNotFound
	}
	return nil, fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, current.Status)
}

func (r *postgresRepo) Payment(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	const q = `
SELECT id::text, order_id::text, method, amount_cents, status, created_at
FROM payment_records
WHERE order_id = $1
`
	var p domain.PaymentRecord
	err := r.pool.QueryRow(ctx, q, orderID).Scan(&p.ID, &p.OrderID, &p.Method, &p.AmountCents, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, pgutil.Map(err)
	}
	return &p, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var addrJSON []byte
	if err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.PlacedBy,
		&o.Status,
		&o.SubtotalCents,
		&o.ShippingCents,
		&o.TotalAmountCents,
		&addrJSON,
		&o.PaymentMethod,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(addrJSON) > 0 {
		if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return &o, nil
}
