package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
	"storefront/internal/domain"
)

func posServer(t *testing.T, orders *[]domain.OrderDraft) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products/p1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Product{ID: "p1", SKU: "mug", Name: "Mug", PriceCents: 1250, Stock: 1, Active: true})
	})
	mux.HandleFunc("/products/gone", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Product{ID: "gone", SKU: "old", Name: "Old", Active: false})
	})
	mux.HandleFunc("/cashier/orders", func(w http.ResponseWriter, r *http.Request) {
		var draft domain.OrderDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		*orders = append(*orders, draft)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Order{ID: "o-42", CustomerID: draft.CustomerID, TotalAmountCents: draft.TotalAmountCents})
	})
	mux.HandleFunc("/cashier/stock/decrement", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runPOS(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), cfg, zerolog.Nop(), args, &out)
	return out.String(), err
}

func TestCartSurvivesBetweenRunsAndChecksOut(t *testing.T) {
	var orders []domain.OrderDraft
	srv := posServer(t, &orders)
	cfg := config.Config{
		POSAPIURL:         srv.URL,
		POSAPIToken:       "cashier-token",
		POSCartPath:       filepath.Join(t.TempDir(), "cart.db"),
		ShippingFlatCents: 500,
	}

	out, err := runPOS(t, cfg, "add", "-product", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Mug x1")

	out, err = runPOS(t, cfg, "add", "-product", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Mug x2")
	assert.Contains(t, out, "only 1 of Mug in stock")

	out, err = runPOS(t, cfg, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "2 items, total 25.00")

	out, err = runPOS(t, cfg, "checkout",
		"-customer", "c1", "-payment", "CASH", "-name", "Ann", "-line1", "1 Main St",
		"-city", "Tallinn", "-postal", "10111", "-country", "ee")
	require.NoError(t, err)
	assert.Contains(t, out, "order o-42 placed, total 30.00")

	require.Len(t, orders, 1)
	assert.Equal(t, "c1", orders[0].CustomerID)
	assert.Equal(t, domain.PaymentCash, orders[0].PaymentMethod)
	assert.Equal(t, "EE", orders[0].ShippingAddress.Country)
	assert.Equal(t, int64(500), orders[0].ShippingCents)

	out, err = runPOS(t, cfg, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "cart is empty")
}

func TestSetAndRemove(t *testing.T) {
	var orders []domain.OrderDraft
	srv := posServer(t, &orders)
	cfg := config.Config{POSAPIURL: srv.URL, POSCartPath: filepath.Join(t.TempDir(), "cart.db")}

	_, err := runPOS(t, cfg, "add", "-product", "p1")
	require.NoError(t, err)

	out, err := runPOS(t, cfg, "set", "-product", "p1", "-qty", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "3 items, total 37.50")

	out, err = runPOS(t, cfg, "remove", "-product", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "cart is empty")
}

func TestCheckoutEmptyCartFails(t *testing.T) {
	var orders []domain.OrderDraft
	srv := posServer(t, &orders)
	cfg := config.Config{POSAPIURL: srv.URL, POSCartPath: filepath.Join(t.TempDir(), "cart.db")}

	_, err := runPOS(t, cfg, "checkout", "-customer", "c1")
	require.Error(t, err)
	assert.Empty(t, orders)
}

func TestInactiveProductRejected(t *testing.T) {
	var orders []domain.OrderDraft
	srv := posServer(t, &orders)
	cfg := config.Config{POSAPIURL: srv.URL, POSCartPath: filepath.Join(t.TempDir(), "cart.db")}

	_, err := runPOS(t, cfg, "add", "-product", "gone")
	require.Error(t, err)

	out, err := runPOS(t, cfg, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "cart is empty")
}

func TestUsageErrors(t *testing.T) {
	cfg := config.Config{POSCartPath: filepath.Join(t.TempDir(), "cart.db")}

	_, err := runPOS(t, cfg)
	assert.True(t, errors.Is(err, errUsage))

	_, err = runPOS(t, cfg, "dance")
	assert.True(t, errors.Is(err, errUsage))

	_, err = runPOS(t, cfg, "set", "-product", "p1")
	assert.True(t, errors.Is(err, errUsage))
}

func TestCheckoutRetryReusesIdempotencyKey(t *testing.T) {
	byKey := map[string]domain.Order{}
	var keys []string
	failNext := true
	mux := http.NewServeMux()
	mux.HandleFunc("/products/p1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Product{ID: "p1", SKU: "mug", Name: "Mug", PriceCents: 1250, Stock: 5, Active: true})
	})
	mux.HandleFunc("/cashier/orders", func(w http.ResponseWriter, r *http.Request) {
		var draft domain.OrderDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		key := r.Header.Get("Idempotency-Key")
		keys = append(keys, key)
		o, seen := byKey[key]
		if !seen {
			o = domain.Order{ID: fmt.Sprintf("o-%d", len(byKey)+1), CustomerID: draft.CustomerID, TotalAmountCents: draft.TotalAmountCents}
			byKey[key] = o
		}
		if failNext {
			// The order is stored but the response never reaches the terminal.
			failNext = false
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(o)
	})
	mux.HandleFunc("/cashier/stock/decrement", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	cfg := config.Config{POSAPIURL: srv.URL, POSCartPath: filepath.Join(t.TempDir(), "cart.db")}
	checkoutArgs := []string{"checkout", "-customer", "c1", "-name", "Ann", "-line1", "1 Main St",
		"-city", "Tallinn", "-postal", "10111", "-country", "EE"}

	_, err := runPOS(t, cfg, "add", "-product", "p1")
	require.NoError(t, err)

	_, err = runPOS(t, cfg, checkoutArgs...)
	require.Error(t, err)

	out, err := runPOS(t, cfg, checkoutArgs...)
	require.NoError(t, err)
	assert.Contains(t, out, "order o-1 placed")

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
	assert.Len(t, byKey, 1)

	_, err = runPOS(t, cfg, "add", "-product", "p1")
	require.NoError(t, err)
	out, err = runPOS(t, cfg, checkoutArgs...)
	require.NoError(t, err)
	assert.Contains(t, out, "order o-2 placed")
	require.Len(t, keys, 3)
	assert.NotEqual(t, keys[0], keys[2])
}
