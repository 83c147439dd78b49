package domain

import "time"

type Product struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	PriceCents    int64     `json:"priceCents"`
	Stock         int       `json:"stock"`
	CategoryID    *string   `json:"categoryId,omitempty"`
	SubcategoryID *string   `json:"subcategoryId,omitempty"`
	Images        []string  `json:"images"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PrimaryImage returns the first image URL, or "" when the product has none.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

type Category struct {
	ID            string        `json:"id"`
	Slug          string        `json:"slug"`
	Name          string        `json:"name"`
	CreatedAt     time.Time     `json:"createdAt"`
	Subcategories []Subcategory `json:"subcategories"`
}

type Subcategory struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"categoryId"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}
