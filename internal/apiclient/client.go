// Package apiclient talks to the storefront API on behalf of the cashier terminal.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/domain"
)

// Client calls the cashier endpoints with a staff bearer token.
// It satisfies checkout.Backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. Err is the matching domain sentinel when
// the error code is known.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d %s", e.Status, e.Code)
}

func (e *APIError) Unwrap() error { return e.Err }

var codeErrors = map[string]error{
	"invalid_request":      domain.ErrValidation,
	"forbidden":            domain.ErrForbidden,
	"not_found":            domain.ErrNotFound,
	"already_exists":       domain.ErrAlreadyExists,
	"insufficient_stock":   domain.ErrInsufficientStock,
	"invalid_transition":   domain.ErrInvalidTransition,
	"chat_already_claimed": domain.ErrChatAlreadyClaimed,
	"rep_busy":             domain.ErrRepBusy,
	"chat_closed":          domain.ErrChatClosed,
}

// CreateOrder posts the draft. A set draft.IdempotencyKey is sent as a header
// so a retry after a lost response returns the already created order.
func (c *Client) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	var o domain.Order
	var h http.Header
	if draft.IdempotencyKey != "" {
		h = http.Header{domain.IdempotencyKeyHeader: {draft.IdempotencyKey}}
	}
	if err := c.send(ctx, http.MethodPost, "/cashier/orders", h, draft, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) DecrementStock(ctx context.Context, productID string, qty int) error {
	body := struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}{productID, qty}
	return c.do(ctx, http.MethodPost, "/cashier/stock/decrement", body, nil)
}

// FindCustomers looks customers up by email prefix.
func (c *Client) FindCustomers(ctx context.Context, email string) ([]domain.Customer, error) {
	var out struct {
		Results []domain.Customer `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/cashier/customers?email="+url.QueryEscape(email), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, nil, in, out)
}

func (c *Client) send(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Reason
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = strings.ReplaceAll(strings.ToLower(http.StatusText(resp.StatusCode)), " ", "_")
	}
	apiErr.Err = codeErrors[apiErr.Code]
	if apiErr.Err == nil && resp.StatusCode == http.StatusForbidden {
		apiErr.Err = domain.ErrForbidden
	}
	return apiErr
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
