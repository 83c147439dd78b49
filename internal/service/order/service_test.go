package order

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
)

const (
	orderID   = "11111111-1111-1111-1111-111111111111"
	productID = "22222222-2222-2222-2222-222222222222"
)

type memoryRepo struct {
	orders     map[string]*domain.Order
	lastFilter orderrepo.ListFilter
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{orders: map[string]*domain.Order{}} }

func (m *memoryRepo) Create(_ context.Context, d domain.OrderDraft) (*domain.Order, error) {
	o := &domain.Order{ID: orderID, CustomerID: d.CustomerID, Status: domain.OrderPending, TotalAmountCents: d.TotalAmountCents, PaymentMethod: d.PaymentMethod}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (m *memoryRepo) List(_ context.Context, f orderrepo.ListFilter) ([]domain.Order, error) {
	m.lastFilter = f
	return nil, nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id string, st domain.OrderStatus) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.Status = st
	return o, nil
}

func (m *memoryRepo) CancelPending(_ context.Context, id, customerID string) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.CustomerID != customerID {
		return nil, domain.ErrNotFound
	}
	if o.Status != domain.OrderPending {
		return nil, domain.ErrInvalidTransition
	}
	o.Status = domain.OrderCancelled
	return o, nil
}

func (m *memoryRepo) Payment(_ context.Context, id string) (*domain.PaymentRecord, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.PaymentRecord{OrderID: id, Method: o.PaymentMethod, AmountCents: o.TotalAmountCents, Status: "simulated"}, nil
}

type stockFunc func(ctx context.Context, id string, qty int) error

func (f stockFunc) DecrementStock(ctx context.Context, id string, qty int) error { return f(ctx, id, qty) }

func draft() domain.OrderDraft {
	return domain.OrderDraft{
		CustomerID:       "cust-1",
		SubtotalCents:    500,
		TotalAmountCents: 500,
		PaymentMethod:    domain.PaymentCard,
		Items:            []domain.OrderItem{{ProductID: productID, Quantity: 1, UnitPriceCents: 500}},
	}
}

func TestCreateOrder_ValidatesItems(t *testing.T) {
	svc := New(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	empty := draft()
	empty.Items = nil
	_, err := svc.CreateOrder(ctx, empty)
	require.ErrorIs(t, err, domain.ErrValidation)

	bad := draft()
	bad.Items[0].Quantity = 0
	_, err = svc.CreateOrder(ctx, bad)
	require.ErrorIs(t, err, domain.ErrValidation)

	cases := []struct {
		name   string
		mutate func(*domain.OrderDraft)
	}{
		{"subtotal below items", func(d *domain.OrderDraft) { d.SubtotalCents, d.TotalAmountCents = 1, 1 }},
		{"total below subtotal", func(d *domain.OrderDraft) { d.TotalAmountCents = 1 }},
		{"shipping not in total", func(d *domain.OrderDraft) { d.ShippingCents = 500 }},
		{"negative shipping", func(d *domain.OrderDraft) { d.ShippingCents, d.TotalAmountCents = -100, 400 }},
		{"negative price", func(d *domain.OrderDraft) {
			d.Items[0].UnitPriceCents, d.SubtotalCents, d.TotalAmountCents = -500, -500, -500
		}},
		{"quantity above maximum", func(d *domain.OrderDraft) { d.Items[0].Quantity = domain.MaxLineQuantity + 1 }},
		{"idempotency key too long", func(d *domain.OrderDraft) {
			d.IdempotencyKey = strings.Repeat("k", domain.MaxIdempotencyKeyLen+1)
		}},
	}
	for _, tc := range cases {
		d := draft()
		tc.mutate(&d)
		_, err = svc.CreateOrder(ctx, d)
		require.ErrorIs(t, err, domain.ErrValidation, tc.name)
	}

	shipped := draft()
	shipped.ShippingCents = 500
	shipped.TotalAmountCents = 1000
	_, err = svc.CreateOrder(ctx, shipped)
	require.NoError(t, err)

	o, err := svc.CreateOrder(ctx, draft())
	require.NoError(t, err)
	require.Equal(t, domain.OrderPending, o.Status)
}

func TestDecrementStock_DelegatesToStock(t *testing.T) {
	var gotID string
	var gotQty int
	svc := New(newMemoryRepo(), stockFunc(func(_ context.Context, id string, qty int) error {
		gotID, gotQty = id, qty
		return domain.ErrInsufficientStock
	}), nil)
	err := svc.DecrementStock(context.Background(), productID, 3)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Equal(t, productID, gotID)
	require.Equal(t, 3, gotQty)
}

func TestGetForCustomer_HidesForeignOrders(t *testing.T) {
	svc := New(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, draft())
	require.NoError(t, err)

	_, err = svc.GetForCustomer(ctx, orderID, "someone-else")
	require.ErrorIs(t, err, domain.ErrNotFound)

	o, err := svc.GetForCustomer(ctx, orderID, "cust-1")
	require.NoError(t, err)
	require.Equal(t, orderID, o.ID)

	_, err = svc.GetForCustomer(ctx, "not-a-uuid", "cust-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_OnlyPending(t *testing.T) {
	svc := New(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, draft())
	require.NoError(t, err)

	o, err := svc.Cancel(ctx, orderID, "cust-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, o.Status)

	_, err = svc.Cancel(ctx, orderID, "cust-1")
	require.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestUpdateStatusAndListAll_ValidateStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := New(repo, nil, nil)
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, draft())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, orderID, "teleported")
	require.ErrorIs(t, err, domain.ErrValidation)

	o, err := svc.UpdateStatus(ctx, orderID, domain.OrderShipped)
	require.NoError(t, err)
	require.Equal(t, domain.OrderShipped, o.Status)

	_, err = svc.ListAll(ctx, "bogus", 0, 0)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.ListAll(ctx, domain.OrderShipped, 10, 5)
	require.NoError(t, err)
	require.Equal(t, orderrepo.ListFilter{Status: domain.OrderShipped, Limit: 10, Offset: 5}, repo.lastFilter)
}

func TestPayment(t *testing.T) {
	svc := New(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	_, err := svc.CreateOrder(ctx, draft())
	require.NoError(t, err)

	p, err := svc.Payment(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, int64(500), p.AmountCents)
	require.Equal(t, domain.PaymentCard, p.Method)

	_, err = svc.Payment(ctx, "not-a-uuid")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
