package checkout

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cartstore"
	"storefront/internal/domain"
)

type fakeBackend struct {
	createErr    error
	decrementErr map[string]error
	drafts       []domain.OrderDraft
	decrements   []string
}

func (f *fakeBackend) CreateOrder(_ context.Context, d domain.OrderDraft) (*domain.Order, error) {
	f.drafts = append(f.drafts, d)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &domain.Order{
		ID:               "order-1",
		CustomerID:       d.CustomerID,
		PlacedBy:         d.PlacedBy,
		Status:           domain.OrderPending,
		SubtotalCents:    d.SubtotalCents,
		ShippingCents:    d.ShippingCents,
		TotalAmountCents: d.TotalAmountCents,
		ShippingAddress:  d.ShippingAddress,
		PaymentMethod:    d.PaymentMethod,
		Items:            d.Items,
	}, nil
}

func (f *fakeBackend) DecrementStock(_ context.Context, productID string, _ int) error {
	f.decrements = append(f.decrements, productID)
	return f.decrementErr[productID]
}

type countingRecorder struct {
	orders   int
	revenue  int64
	failures int
}

func (c *countingRecorder) RecordOrder(_ context.Context, total int64) {
	c.orders++
	c.revenue += total
}

func (c *countingRecorder) RecordStockDecrementFailure(context.Context) { c.failures++ }

func validRequest() Request {
	return Request{
		CustomerID: "cust-1",
		ShippingAddress: domain.Address{
			FullName:   "Ada Lovelace",
			Line1:      "12 Analytical St",
			City:       "London",
			PostalCode: "N1 9GU",
			Country:    "GB",
		},
		PaymentMethod: domain.PaymentCard,
	}
}

func cartWith(t *testing.T, items ...cartstore.Item) *cartstore.Store {
	t.Helper()
	s := cartstore.Open(cartstore.NewMemoryStorage(), nil)
	for _, it := range items {
		_, err := s.Add(it)
		require.NoError(t, err)
	}
	return s
}

func TestSubmit_TotalSnapshotAndCartCleared(t *testing.T) {
	cart := cartWith(t,
		cartstore.Item{ProductID: "A", Name: "Mug", UnitPriceCents: 1999, ImageRef: "mug.png"},
		cartstore.Item{ProductID: "B", Name: "Tea", UnitPriceCents: 1299},
		cartstore.Item{ProductID: "B", Name: "Tea", UnitPriceCents: 1299},
	)
	require.Equal(t, int64(4597), cart.TotalPrice())

	backend := &fakeBackend{}
	rec := &countingRecorder{}
	res, err := New(backend, WithRecorder(rec)).Submit(context.Background(), cart, validRequest())
	require.NoError(t, err)

	assert.Equal(t, "order-1", res.Order.ID)
	assert.Equal(t, int64(4597), res.Order.TotalAmountCents)
	assert.Len(t, res.Order.Items, 2)
	assert.True(t, res.CartCleared)
	assert.Empty(t, cart.Lines())
	assert.Empty(t, res.StockFailures)

	wantItems := []domain.OrderItem{
		{ProductID: "A", Quantity: 1, UnitPriceCents: 1999, ProductNameSnapshot: "Mug", ProductImageSnapshot: "mug.png"},
		{ProductID: "B", Quantity: 2, UnitPriceCents: 1299, ProductNameSnapshot: "Tea"},
	}
	if diff := cmp.Diff(wantItems, backend.drafts[0].Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"A", "B"}, backend.decrements)
	assert.Equal(t, 1, rec.orders)
	assert.Equal(t, int64(4597), rec.revenue)
}

func TestSubmit_StockFailureDoesNotRollBack(t *testing.T) {
	cart := cartWith(t,
		cartstore.Item{ProductID: "A", UnitPriceCents: 500},
		cartstore.Item{ProductID: "B", UnitPriceCents: 700},
	)
	backend := &fakeBackend{decrementErr: map[string]error{"A": domain.ErrInsufficientStock}}
	rec := &countingRecorder{}
	var logs bytes.Buffer
	sub := New(backend, WithRecorder(rec), WithLogger(zerolog.New(&logs)))

	res, err := sub.Submit(context.Background(), cart, validRequest())
	require.NoError(t, err)

	assert.Len(t, res.Order.Items, 2)
	require.Len(t, res.StockFailures, 1)
	assert.Equal(t, "A", res.StockFailures[0].ProductID)
	assert.ErrorIs(t, res.StockFailures[0].Err, domain.ErrInsufficientStock)
	assert.Equal(t, []string{"A", "B"}, backend.decrements, "second decrement still attempted")
	assert.Empty(t, cart.Lines())
	assert.Equal(t, 1, rec.failures)
	assert.Contains(t, logs.String(), "stock decrement failed")
}

func TestSubmit_CreateFailureKeepsCart(t *testing.T) {
	cart := cartWith(t, cartstore.Item{ProductID: "A", UnitPriceCents: 500})
	backend := &fakeBackend{createErr: errors.New("connection reset")}

	_, err := New(backend).Submit(context.Background(), cart, validRequest())
	require.Error(t, err)
	assert.Len(t, cart.Lines(), 1)
	assert.Empty(t, backend.decrements)
}

func TestSubmit_Preconditions(t *testing.T) {
	backend := &fakeBackend{}
	sub := New(backend)

	_, err := sub.Submit(context.Background(), cartWith(t), validRequest())
	assert.ErrorIs(t, err, ErrEmptyCart)

	req := validRequest()
	req.CustomerID = ""
	_, err = sub.Submit(context.Background(), cartWith(t, cartstore.Item{ProductID: "A"}), req)
	assert.ErrorIs(t, err, ErrNoCustomer)

	assert.Empty(t, backend.drafts)
}

func TestSubmit_FormValidation(t *testing.T) {
	cases := map[string]func(*Request){
		"payment method": func(r *Request) { r.PaymentMethod = "bitcoin" },
		"missing city":   func(r *Request) { r.ShippingAddress.City = "" },
		"country code":   func(r *Request) { r.ShippingAddress.Country = "GBR" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cart := cartWith(t, cartstore.Item{ProductID: "A", UnitPriceCents: 100})
			req := validRequest()
			mutate(&req)
			backend := &fakeBackend{}
			_, err := New(backend).Submit(context.Background(), cart, req)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, backend.drafts)
			assert.Len(t, cart.Lines(), 1)
		})
	}
}

type stuckCart struct{ lines []cartstore.Line }

func (s stuckCart) Lines() []cartstore.Line { return s.lines }
func (stuckCart) Clear() error              { return cartstore.ErrPersist }

func TestSubmit_ClearFailureStillPlacesOrder(t *testing.T) {
	cart := stuckCart{lines: []cartstore.Line{{ProductID: "A", UnitPriceCents: 100, Quantity: 1}}}
	res, err := New(&fakeBackend{}).Submit(context.Background(), cart, validRequest())
	require.NoError(t, err)
	assert.NotNil(t, res.Order)
	assert.False(t, res.CartCleared)
}

func TestSubmit_CashierRecordsPlacedBy(t *testing.T) {
	cart := cartWith(t, cartstore.Item{ProductID: "A", UnitPriceCents: 100})
	cashier := "cashier-9"
	req := validRequest()
	req.PlacedBy = &cashier
	req.PaymentMethod = domain.PaymentCash

	backend := &fakeBackend{}
	res, err := New(backend).Submit(context.Background(), cart, req)
	require.NoError(t, err)
	require.NotNil(t, res.Order.PlacedBy)
	assert.Equal(t, cashier, *res.Order.PlacedBy)
}

func TestShippingCost(t *testing.T) {
	s := Shipping{FlatCents: 499, FreeOverCents: 5000}
	assert.Equal(t, int64(499), s.Cost(4999))
	assert.Equal(t, int64(0), s.Cost(5000))
	assert.Equal(t, int64(499), Shipping{FlatCents: 499}.Cost(1_000_000))
}

func TestBuildDraft_AddsShipping(t *testing.T) {
	lines := []cartstore.Line{{ProductID: "A", UnitPriceCents: 4597, Quantity: 1}}
	d := BuildDraft(lines, validRequest(), Shipping{FlatCents: 500})
	assert.Equal(t, int64(4597), d.SubtotalCents)
	assert.Equal(t, int64(500), d.ShippingCents)
	assert.Equal(t, int64(5097), d.TotalAmountCents)
}

func TestBuildDraft_CarriesIdempotencyKey(t *testing.T) {
	lines := []cartstore.Line{{ProductID: "A", UnitPriceCents: 100, Quantity: 1}}
	req := validRequest()
	req.IdempotencyKey = "key-1"
	assert.Equal(t, "key-1", BuildDraft(lines, req, Shipping{}).IdempotencyKey)
}
