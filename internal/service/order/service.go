package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/logging"
	orderrepo "storefront/internal/repository/order"
)

// Stock is the product-side dependency used after an order is placed.
type Stock interface {
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// Service implements checkout.Backend on top of the order repository.
type Service struct {
	repo   orderrepo.Repository
	stock  Stock
	logger zerolog.Logger
}

func New(repo orderrepo.Repository, stock Stock, logger *zerolog.Logger) *Service {
	lg := zerolog.Nop()
	if logger != nil {
		lg = logging.Component(*logger, "order")
	}
	return &Service{repo: repo, stock: stock, logger: lg}
}

func (s *Service) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}
	if len(draft.IdempotencyKey) > domain.MaxIdempotencyKeyLen {
		return nil, fmt.Errorf("%w: idempotency key too long", domain.ErrValidation)
	}
	if err := checkAmounts(draft); err != nil {
		return nil, err
	}
	o, err := s.repo.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", o.ID).Str("customer_id", o.CustomerID).Int64("total_cents", o.TotalAmountCents).Msg("order created")
	return o, nil
}

// checkAmounts requires the draft's totals to agree with its items, so a
// client cannot submit a total it did not compute from the lines.
func checkAmounts(draft domain.OrderDraft) error {
	var subtotal int64
	for _, it := range draft.Items {
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return fmt.Errorf("%w: invalid product id %q", domain.ErrValidation, it.ProductID)
		}
		if it.Quantity < 1 || it.Quantity > domain.MaxLineQuantity ||
			it.UnitPriceCents < 0 || it.UnitPriceCents > domain.MaxUnitPriceCents {
			return fmt.Errorf("%w: invalid item %s", domain.ErrValidation, it.ProductID)
		}
		subtotal += it.UnitPriceCents * int64(it.Quantity)
	}
	switch {
	case draft.ShippingCents < 0:
		return fmt.Errorf("%w: negative shipping", domain.ErrValidation)
	case draft.SubtotalCents != subtotal:
		return fmt.Errorf("%w: subtotal %d does not match items (%d)", domain.ErrValidation, draft.SubtotalCents, subtotal)
	case draft.TotalAmountCents != draft.SubtotalCents+draft.ShippingCents:
		return fmt.Errorf("%w: total %d is not subtotal plus shipping", domain.ErrValidation, draft.TotalAmountCents)
	}
	return nil
}

func (s *Service) DecrementStock(ctx context.Context, productID string, qty int) error {
	return s.stock.DecrementStock(ctx, productID, qty)
}

func (s *Service) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	return s.repo.List(ctx, orderrepo.ListFilter{CustomerID: customerID, Limit: limit, Offset: offset})
}

// GetForCustomer hides orders belonging to someone else behind ErrNotFound.
func (s *Service) GetForCustomer(ctx context.Context, id, customerID string) (*domain.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Cancel lets a customer cancel their own pending order.
func (s *Service) Cancel(ctx context.Context, id, customerID string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	o, err := s.repo.CancelPending(ctx, id, customerID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", id).Msg("order cancelled by customer")
	return o, nil
}

// ListAll is the staff view; status may be empty.
func (s *Service) ListAll(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return s.repo.List(ctx, orderrepo.ListFilter{Status: status, Limit: limit, Offset: offset})
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	o, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_id", id).Str("status", string(status)).Msg("order status updated")
	return o, nil
}

// Payment returns the payment captured with an order.
func (s *Service) Payment(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.Payment(ctx, orderID)
}
