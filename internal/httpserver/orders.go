package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/cartstore"
	"storefront/internal/checkout"
	"storefront/internal/domain"
)

// checkoutRequest carries the client's cart snapshot and the checkout form.
type checkoutRequest struct {
	Lines           []domain.CartLine    `json:"lines"`
	ShippingAddress domain.Address       `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
}

type stockFailureResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Error     string `json:"error"`
}

type checkoutResponse struct {
	Order         *domain.Order          `json:"order"`
	StockFailures []stockFailureResponse `json:"stockFailures"`
	CartCleared   bool                   `json:"cartCleared"`
}

func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed checkout request")
		return
	}
	if err := cartstore.ValidateLines(req.Lines); err != nil {
		badRequest(c, "invalid cart: "+err.Error())
		return
	}
	lines, err := h.priceLines(c.Request.Context(), req.Lines)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.Checkout.Submit(c.Request.Context(), cartstore.FromLines(lines), checkout.Request{
		CustomerID:      principal(c).CustomerID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	failures := make([]stockFailureResponse, 0, len(res.StockFailures))
	for _, f := range res.StockFailures {
		failures = append(failures, stockFailureResponse{ProductID: f.ProductID, Quantity: f.Quantity, Error: f.Err.Error()})
	}
	c.JSON(http.StatusCreated, checkoutResponse{Order: res.Order, StockFailures: failures, CartCleared: res.CartCleared})
}

// priceLines replaces the client's unit prices, names and images with the
// catalog's current values. Unknown and inactive products are rejected.
func (h *handlers) priceLines(ctx context.Context, lines []domain.CartLine) ([]domain.CartLine, error) {
	out := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		p, err := h.Products.Get(ctx, l.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s is not available", domain.ErrValidation, l.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, fmt.Errorf("%w: product %s is not for sale", domain.ErrValidation, p.SKU)
		}
		l.UnitPriceCents, l.Name, l.ImageRef = p.PriceCents, p.Name, p.PrimaryImage()
		out = append(out, l)
	}
	return out, nil
}

func (h *handlers) listMyOrders(c *gin.Context) {
	limit, err1 := intQuery(c, "limit")
	offset, err2 := intQuery(c, "offset")
	if err1 != nil || err2 != nil {
		badRequest(c, "limit and offset must be integers")
		return
	}
	list, err := h.Orders.ListForCustomer(c.Request.Context(), principal(c).CustomerID, limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(list)})
}

func (h *handlers) getMyOrder(c *gin.Context) {
	o, err := h.Orders.GetForCustomer(c.Request.Context(), c.Param("id"), principal(c).CustomerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// getMyOrderPayment checks ownership through the order before reading its payment.
func (h *handlers) getMyOrderPayment(c *gin.Context) {
	o, err := h.Orders.GetForCustomer(c.Request.Context(), c.Param("id"), principal(c).CustomerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	p, err := h.Orders.Payment(c.Request.Context(), o.ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) getOrderPayment(c *gin.Context) {
	p, err := h.Orders.Payment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) cancelMyOrder(c *gin.Context) {
	o, err := h.Orders.Cancel(c.Request.Context(), c.Param("id"), principal(c).CustomerID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) listAllOrders(c *gin.Context) {
	limit, err1 := intQuery(c, "limit")
	offset, err2 := intQuery(c, "offset")
	if err1 != nil || err2 != nil {
		badRequest(c, "limit and offset must be integers")
		return
	}
	list, err := h.Orders.ListAll(c.Request.Context(), domain.OrderStatus(c.Query("status")), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(list)})
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

// updateOrderStatus is last-write-wins.
func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	o, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// cashierCreateOrder stores a draft assembled by a point-of-sale client. The
// client decrements stock only after it has the order, so a replayed key is
// safe to retry here.
func (h *handlers) cashierCreateOrder(c *gin.Context) {
	var draft domain.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "malformed order draft")
		return
	}
	if draft.CustomerID == "" {
		writeError(c, h.logger, checkout.ErrNoCustomer)
		return
	}
	cashier := principal(c).CustomerID
	draft.PlacedBy = &cashier
	draft.IdempotencyKey = c.GetHeader(domain.IdempotencyKeyHeader)
	o, err := h.Orders.CreateOrder(c.Request.Context(), draft)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type decrementRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func (h *handlers) cashierDecrementStock(c *gin.Context) {
	var req decrementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productId and quantity are required")
		return
	}
	if err := h.Orders.DecrementStock(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
