// Package checkout turns a cart snapshot into a placed order.
//
// Order creation is all-or-nothing and leaves the cart untouched on failure.
// Stock decrements that follow are independent best-effort calls: a failed
// decrement is logged and reported but never reverses the order.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"storefront/internal/cartstore"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

var (
	ErrEmptyCart  = errors.New("cart is empty")
	ErrNoCustomer = errors.New("customer required")
)

// Backend is the durable side of checkout.
type Backend interface {
	// CreateOrder stores the header, items and payment record atomically.
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// Cart is the part of cartstore.Store checkout needs.
type Cart interface {
	Lines() []cartstore.Line
	Clear() error
}

// Recorder receives business metrics. metrics.AppMetrics satisfies it.
type Recorder interface {
	RecordOrder(ctx context.Context, totalCents int64)
	RecordStockDecrementFailure(ctx context.Context)
}

// Shipping is the flat-rate shipping policy.
type Shipping struct {
	FlatCents     int64
	FreeOverCents int64
}

// Cost returns the shipping charge for a subtotal. A positive FreeOverCents
// waives shipping once the subtotal reaches it.
func (s Shipping) Cost(subtotal int64) int64 {
	if s.FreeOverCents > 0 && subtotal >= s.FreeOverCents {
		return 0
	}
	return s.FlatCents
}

// Request is the simulated checkout form plus who the order is for.
// IdempotencyKey is optional; callers that may retry set it.
type Request struct {
	CustomerID      string               `validate:"required"`
	PlacedBy        *string              `validate:"omitempty"`
	ShippingAddress domain.Address       `validate:"required"`
	PaymentMethod   domain.PaymentMethod `validate:"required,oneof=card cash transfer"`
	IdempotencyKey  string               `validate:"omitempty,max=200"`
}

type StockFailure struct {
	ProductID string
	Quantity  int
	Err       error
}

type Result struct {
	Order         *domain.Order
	StockFailures []StockFailure
	// CartCleared is false when the order was placed but clearing the cart failed.
	CartCleared bool
}

type Submitter struct {
	backend  Backend
	shipping Shipping
	validate *validator.Validate
	metrics  Recorder
	logger   zerolog.Logger
}

type Option func(*Submitter)

func WithShipping(s Shipping) Option { return func(sub *Submitter) { sub.shipping = s } }

func WithRecorder(r Recorder) Option { return func(sub *Submitter) { sub.metrics = r } }

func WithLogger(l zerolog.Logger) Option {
	return func(sub *Submitter) { sub.logger = logging.Component(l, "checkout") }
}

func New(backend Backend, opts ...Option) *Submitter {
	s := &Submitter{
		backend:  backend,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit places an order for the cart's current lines.
func (s *Submitter) Submit(ctx context.Context, cart Cart, req Request) (*Result, error) {
	lines := cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if req.CustomerID == "" {
		return nil, ErrNoCustomer
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, describe(err))
	}

	draft := BuildDraft(lines, req, s.shipping)
	order, err := s.backend.CreateOrder(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	log := s.logger.With().Str("order_id", order.ID).Str("customer_id", order.CustomerID).Logger()
	log.Info().Int64("total_cents", order.TotalAmountCents).Int("items", len(order.Items)).Msg("order placed")
	if s.metrics != nil {
		s.metrics.RecordOrder(ctx, order.TotalAmountCents)
	}

	res := &Result{Order: order}
	for _, it := range draft.Items {
		if err := s.backend.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			log.Warn().Err(err).Str("product_id", it.ProductID).Int("qty", it.Quantity).Msg("stock decrement failed")
			if s.metrics != nil {
				s.metrics.RecordStockDecrementFailure(ctx)
			}
			res.StockFailures = append(res.StockFailures, StockFailure{ProductID: it.ProductID, Quantity: it.Quantity, Err: err})
		}
	}

	if err := cart.Clear(); err != nil {
		log.Error().Err(err).Msg("cart clear failed after order")
	} else {
		res.CartCleared = true
	}
	return res, nil
}

// BuildDraft snapshots lines into an order draft. The total is fixed here and
// never recomputed later.
func BuildDraft(lines []cartstore.Line, req Request, shipping Shipping) domain.OrderDraft {
	subtotal := cartstore.TotalPrice(lines)
	ship := shipping.Cost(subtotal)
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID:            l.ProductID,
			Quantity:             l.Quantity,
			UnitPriceCents:       l.UnitPriceCents,
			ProductNameSnapshot:  l.Name,
			ProductImageSnapshot: l.ImageRef,
		})
	}
	return domain.OrderDraft{
		CustomerID:       req.CustomerID,
		PlacedBy:         req.PlacedBy,
		SubtotalCents:    subtotal,
		ShippingCents:    ship,
		TotalAmountCents: subtotal + ship,
		ShippingAddress:  req.ShippingAddress,
		PaymentMethod:    req.PaymentMethod,
		Items:            items,
		IdempotencyKey:   req.IdempotencyKey,
	}
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}
