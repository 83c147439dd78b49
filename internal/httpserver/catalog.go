package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/money"
	marketingsvc "storefront/internal/service/marketing"
	productsvc "storefront/internal/service/product"
)

// parseProductQuery reads catalog filters. Prices are decimal amounts ("12.50").
func parseProductQuery(c *gin.Context) (productsvc.Query, error) {
	q := productsvc.Query{
		CategoryID:    c.Query("category"),
		SubcategoryID: c.Query("subcategory"),
		Text:          c.Query("q"),
		Sort:          c.DefaultQuery("sort", productsvc.SortName),
	}
	for key, dst := range map[string]**int64{"minPrice": &q.MinPriceCents, "maxPrice": &q.MaxPriceCents} {
		if raw := c.Query(key); raw != "" {
			cents, err := money.ParseCents(raw)
			if err != nil {
				return q, err
			}
			*dst = &cents
		}
	}
	if raw := c.Query("inStock"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, err
		}
		q.InStockOnly = b
	}
	var err error
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intQuery(c, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *handlers) listProducts(c *gin.Context) {
	q, err := parseProductQuery(c)
	if err != nil {
		badRequest(c, "invalid query parameter")
		return
	}
	page, err := h.Products.Search(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// listCategories degrades to an empty list so navigation still renders.
func (h *handlers) listCategories(c *gin.Context) {
	list, err := h.Categories.List(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list categories")
		list = nil
	}
	if list == nil {
		list = []domain.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}

// listAllProducts is the admin catalog, including inactive products.
func (h *handlers) listAllProducts(c *gin.Context) {
	list, err := h.Products.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(list)})
}

func (h *handlers) createProduct(c *gin.Context) {
	var in productsvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "malformed product")
		return
	}
	p, err := h.Products.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) updateProduct(c *gin.Context) {
	var in productsvc.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "malformed product")
		return
	}
	p, err := h.Products.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) deleteProduct(c *gin.Context) {
	if err := h.Products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) uploadProductImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer f.Close()
	p, err := h.Products.UploadImage(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) upsertCategory(c *gin.Context) {
	var in domain.Category
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "malformed category")
		return
	}
	cat, err := h.Categories.Upsert(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *handlers) upsertSubcategory(c *gin.Context) {
	var in domain.Subcategory
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "malformed subcategory")
		return
	}
	sub, err := h.Categories.UpsertSubcategory(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handlers) listPromotions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": h.Marketing.LivePromotions(c.Request.Context())})
}

// listAllPromotions includes scheduled, expired and inactive promotions.
func (h *handlers) listAllPromotions(c *gin.Context) {
	list, err := h.Marketing.AllPromotions(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(list)})
}

func (h *handlers) upsertPromotion(c *gin.Context) {
	var in marketingsvc.PromotionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "malformed promotion")
		return
	}
	p, err := h.Marketing.UpsertPromotion(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *handlers) subscribeNewsletter(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}
	sub, err := h.Marketing.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handlers) unsubscribeNewsletter(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}
	if err := h.Marketing.Unsubscribe(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listSubscribers(c *gin.Context) {
	list, err := h.Marketing.Subscribers(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.NewsletterSubscriber{}
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}
