package domain

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
)

// Order is an immutable snapshot of a completed checkout. TotalAmountCents is
// fixed at creation and never recomputed from the items.
type Order struct {
	ID               string        `json:"id"`
	CustomerID       string        `json:"customerId"`
	PlacedBy         *string       `json:"placedBy,omitempty"`
	Status           OrderStatus   `json:"status"`
	SubtotalCents    int64         `json:"subtotalCents"`
	ShippingCents    int64         `json:"shippingCents"`
	TotalAmountCents int64         `json:"totalAmountCents"`
	ShippingAddress  Address       `json:"shippingAddress"`
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	Items            []OrderItem   `json:"items"`
}

// OrderItem keeps a denormalized name/image so historical orders stay legible
// after the product is edited or deleted.
type OrderItem struct {
	ID                   string `json:"id"`
	OrderID              string `json:"orderId"`
	ProductID            string `json:"productId"`
	Quantity             int    `json:"quantity"`
	UnitPriceCents       int64  `json:"unitPriceCents"`
	ProductNameSnapshot  string `json:"productName"`
	ProductImageSnapshot string `json:"productImage,omitempty"`
}

// OrderDraft is what a checkout submits; the backend assigns ids and timestamps.
// A non-empty IdempotencyKey makes resubmitting the same draft return the
// order the first submission created. It travels in the Idempotency-Key header.
type OrderDraft struct {
	CustomerID       string        `json:"customerId"`
	PlacedBy         *string       `json:"placedBy,omitempty"`
	SubtotalCents    int64         `json:"subtotalCents"`
	ShippingCents    int64         `json:"shippingCents"`
	TotalAmountCents int64         `json:"totalAmountCents"`
	ShippingAddress  Address       `json:"shippingAddress"`
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	Items            []OrderItem   `json:"items"`
	IdempotencyKey   string        `json:"-"`
}

const (
	// IdempotencyKeyHeader carries OrderDraft.IdempotencyKey over HTTP.
	IdempotencyKeyHeader = "Idempotency-Key"
	// MaxIdempotencyKeyLen bounds client supplied idempotency keys.
	MaxIdempotencyKeyLen = 200
)

// PaymentRecord stores the simulated payment captured with an order.
type PaymentRecord struct {
	ID          string        `json:"id"`
	OrderID     string        `json:"orderId"`
	Method      PaymentMethod `json:"method"`
	AmountCents int64         `json:"amountCents"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}
