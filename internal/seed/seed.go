package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
)

type categorySeed struct {
	Slug          string
	Name          string
	Subcategories map[string]string
}

type productSeed struct {
	SKU         string
	Name        string
	Description string
	PriceCents  int64
	Stock       int
	Category    string
	Subcategory string
}

type staffSeed struct {
	Email string
	Role  domain.Role
}

var categories = []categorySeed{
	{Slug: "apparel", Name: "Apparel", Subcategories: map[string]string{"shirts": "Shirts", "hats": "Hats"}},
	{Slug: "kitchen", Name: "Kitchen", Subcategories: map[string]string{"mugs": "Mugs"}},
}

var products = []productSeed{
	{SKU: "SKU-DEMO-TSHIRT", Name: "Demo T-Shirt", Description: "Soft cotton tee for demo purposes", PriceCents: 1999, Stock: 25, Category: "apparel", Subcategory: "shirts"},
	{SKU: "SKU-DEMO-CAP", Name: "Demo Cap", Description: "Six-panel cap", PriceCents: 1499, Stock: 10, Category: "apparel", Subcategory: "hats"},
	{SKU: "SKU-DEMO-MUG", Name: "Demo Mug", Description: "Ceramic mug with demo logo", PriceCents: 1299, Stock: 40, Category: "kitchen", Subcategory: "mugs"},
}

var staff = []staffSeed{
	{Email: "admin@storefront.local", Role: domain.RoleAdmin},
	{Email: "support@storefront.local", Role: domain.RoleCustomerService},
	{Email: "cashier@storefront.local", Role: domain.RoleCashier},
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
// Staff accounts are created only when staffPassword is set.
func Apply(ctx context.Context, pool *pgxpool.Pool, staffPassword string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		subIDs := map[string]string{}
		catIDs := map[string]string{}
		for _, c := range categories {
			catID, err := upsertCategory(ctx, tx, c)
			if err != nil {
				return fmt.Errorf("upsert category %s: %w", c.Slug, err)
			}
			catIDs[c.Slug] = catID
			for slug, name := range c.Subcategories {
				subID, err := upsertSubcategory(ctx, tx, catID, slug, name)
				if err != nil {
					return fmt.Errorf("upsert subcategory %s/%s: %w", c.Slug, slug, err)
				}
				subIDs[c.Slug+"/"+slug] = subID
			}
		}

		for _, p := range products {
			if err := upsertProduct(ctx, tx, p, catIDs[p.Category], subIDs[p.Category+"/"+p.Subcategory]); err != nil {
				return fmt.Errorf("upsert product %s: %w", p.SKU, err)
			}
		}

		if err := upsertPromotion(ctx, tx); err != nil {
			return fmt.Errorf("upsert promotion: %w", err)
		}

		if staffPassword == "" {
			return nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(staffPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		for _, s := range staff {
			if err := upsertStaff(ctx, tx, s, string(hash)); err != nil {
				return fmt.Errorf("upsert staff %s: %w", s.Email, err)
			}
		}
		return nil
	})
}

func upsertCategory(ctx context.Context, tx pgx.Tx, c categorySeed) (string, error) {
	const q = `
INSERT INTO categories (slug, name)
VALUES ($1, $2)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
RETURNING id::text
`
	var id string
	err := tx.QueryRow(ctx, q, c.Slug, c.Name).Scan(&id)
	return id, err
}

func upsertSubcategory(ctx context.Context, tx pgx.Tx, categoryID, slug, name string) (string, error) {
	const q = `
INSERT INTO subcategories (category_id, slug, name)
VALUES ($1, $2, $3)
ON CONFLICT (category_id, slug) DO UPDATE SET name = EXCLUDED.name
RETURNING id::text
`
	var id string
	err := tx.QueryRow(ctx, q, categoryID, slug, name).Scan(&id)
	return id, err
}

func upsertProduct(ctx context.Context, tx pgx.Tx, p productSeed, categoryID, subcategoryID string) error {
	const q = `
INSERT INTO products (sku, name, description, price_cents, stock, category_id, subcategory_id)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NULLIF($7, '')::uuid)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    category_id = EXCLUDED.category_id,
    subcategory_id = EXCLUDED.subcategory_id,
    updated_at = now()
`
	_, err := tx.Exec(ctx, q, p.SKU, p.Name, p.Description, p.PriceCents, p.Stock, categoryID, subcategoryID)
	return err
}

func upsertPromotion(ctx context.Context, tx pgx.Tx) error {
	const q = `
INSERT INTO promotions (title, description, code, discount_percent, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO NOTHING
`
	now := time.Now().UTC()
	_, err := tx.Exec(ctx, q, "Welcome offer", "10% off your first order", "WELCOME10", 10, now, now.AddDate(0, 3, 0))
	return err
}

func upsertStaff(ctx context.Context, tx pgx.Tx, s staffSeed, hash string) error {
	const insertCustomer = `
INSERT INTO customers (email, password_hash)
VALUES ($1, $2)
ON CONFLICT (lower(email)) DO UPDATE SET password_hash = EXCLUDED.password_hash
RETURNING id::text
`
	var id string
	if err := tx.QueryRow(ctx, insertCustomer, s.Email, hash).Scan(&id); err != nil {
		return err
	}
	const grant = `
INSERT INTO user_roles (customer_id, role)
VALUES ($1, $2), ($1, 'customer')
ON CONFLICT DO NOTHING
`
	_, err := tx.Exec(ctx, grant, id, s.Role)
	return err
}
