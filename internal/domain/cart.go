package domain

// Line bounds. Any quantity times any unit price within them fits in int64
// with room left for summing an order.
const (
	MaxLineQuantity   = 9999
	MaxUnitPriceCents = 1_000_000_000
)

// CartLine is one pending purchase line. ProductID is the identity key; a cart
// never holds two lines for the same product.
type CartLine struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	ImageRef       string `json:"imageRef,omitempty"`
	Quantity       int    `json:"quantity"`
}

// SubtotalCents is unit price times quantity.
func (l CartLine) SubtotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}
