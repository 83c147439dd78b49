package httpserver

import (
	"context"
	"errors"
	"io"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"storefront/internal/authz"
	"storefront/internal/checkout"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/realtime"
	customersvc "storefront/internal/service/customer"
	marketingsvc "storefront/internal/service/marketing"
	productsvc "storefront/internal/service/product"
)

type CustomerService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (*domain.Customer, error)
	Login(ctx context.Context, email, password string) (*customersvc.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*customersvc.Session, error)
	Logout(ctx context.Context, token string) error
	LookupByToken(ctx context.Context, token string) (*domain.Customer, error)
	Profile(ctx context.Context, customerID string) (*domain.CustomerProfile, error)
	UpdateProfile(ctx context.Context, customerID string, in customersvc.ProfileInput) (*domain.CustomerProfile, error)
	SetRoles(ctx context.Context, customerID string, roles []domain.Role) (*domain.Customer, error)
	SearchByEmail(ctx context.Context, prefix string) ([]domain.Customer, error)
}

type ProductService interface {
	Search(ctx context.Context, q productsvc.Query) (*productsvc.Page, error)
	ListAll(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, in productsvc.Input) (*domain.Product, error)
	Update(ctx context.Context, id string, in productsvc.Input) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	UploadImage(ctx context.Context, id string, r io.Reader) (*domain.Product, error)
}

type CategoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
	UpsertSubcategory(ctx context.Context, s domain.Subcategory) (*domain.Subcategory, error)
}

type OrderService interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)
	DecrementStock(ctx context.Context, productID string, qty int) error
	ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error)
	GetForCustomer(ctx context.Context, id, customerID string) (*domain.Order, error)
	Cancel(ctx context.Context, id, customerID string) (*domain.Order, error)
	ListAll(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	Payment(ctx context.Context, orderID string) (*domain.PaymentRecord, error)
}

// CheckoutService places web orders. *checkout.Submitter satisfies it.
type CheckoutService interface {
	Submit(ctx context.Context, cart checkout.Cart, req checkout.Request) (*checkout.Result, error)
}

type ChatService interface {
	Start(ctx context.Context, customerID, firstMessage string) (*domain.Chat, *domain.ChatMessage, error)
	Claim(ctx context.Context, chatID, repID string) (*domain.Chat, error)
	Close(ctx context.Context, chatID string, p authz.Principal) (*domain.Chat, error)
	Send(ctx context.Context, chatID string, p authz.Principal, content string) (*domain.ChatMessage, error)
	Messages(ctx context.Context, chatID string, p authz.Principal) ([]domain.ChatMessage, error)
	ListOpen(ctx context.Context) ([]domain.Chat, error)
	ListForCustomer(ctx context.Context, customerID string) ([]domain.Chat, error)
	ListForRep(ctx context.Context, repID string) ([]domain.Chat, error)
	Subscribe(ctx context.Context, chatID string, p authz.Principal, fn realtime.Handler) (func(), error)
}

type MarketingService interface {
	LivePromotions(ctx context.Context) []domain.Promotion
	AllPromotions(ctx context.Context) ([]domain.Promotion, error)
	UpsertPromotion(ctx context.Context, in marketingsvc.PromotionInput) (*domain.Promotion, error)
	Subscribe(ctx context.Context, email string) (*domain.NewsletterSubscriber, error)
	Unsubscribe(ctx context.Context, email string) error
	Subscribers(ctx context.Context) ([]domain.NewsletterSubscriber, error)
}

// Deps bundles the services the router exposes.
type Deps struct {
	Customers  CustomerService
	Products   ProductService
	Categories CategoryService
	Orders     OrderService
	Checkout   CheckoutService
	Chats      ChatService
	Marketing  MarketingService
	Metrics    *metrics.AppMetrics

	UploadDir      string
	CORSOrigins    []string
	LoginRateRPS   int
	LoginRateBurst int
}

func (d Deps) validate() error {
	switch {
	case d.Customers == nil:
		return errors.New("customer service required")
	case d.Products == nil:
		return errors.New("product service required")
	case d.Categories == nil:
		return errors.New("category service required")
	case d.Orders == nil:
		return errors.New("order service required")
	case d.Checkout == nil:
		return errors.New("checkout service required")
	case d.Chats == nil:
		return errors.New("chat service required")
	case d.Marketing == nil:
		return errors.New("marketing service required")
	}
	return nil
}

type handlers struct {
	Deps
	logger zerolog.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger zerolog.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	h := &handlers{Deps: deps, logger: logger}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(accessLog(logger), recovery(logger), recordMetrics(deps.Metrics))
	if len(deps.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = deps.CORSOrigins
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", domain.IdempotencyKeyHeader)
		cfg.ExposeHeaders = []string{requestIDHeader}
		router.Use(cors.New(cfg))
	}
	router.Use(authenticate(deps.Customers, logger))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.UploadDir != "" {
		router.Static("/uploads", deps.UploadDir)
	}

	loginLimiter := newIPRateLimiter(deps.LoginRateRPS, deps.LoginRateBurst)
	auth := router.Group("/auth")
	auth.POST("/signup", h.signup)
	auth.POST("/token", loginLimiter.middleware(), h.token)
	auth.POST("/logout", require(authz.Authenticated()), h.logout)

	me := router.Group("/me", require(authz.RequirementFor("/profile")))
	me.GET("", h.me)
	me.PUT("/profile", h.updateProfile)

	router.GET("/access", h.access)

	router.GET("/products", h.listProducts)
	router.GET("/products/:id", h.getProduct)
	router.GET("/categories", h.listCategories)
	router.GET("/promotions", h.listPromotions)
	router.POST("/newsletter/subscribe", h.subscribeNewsletter)
	router.POST("/newsletter/unsubscribe", h.unsubscribeNewsletter)

	router.POST("/checkout", require(authz.RequirementFor("/checkout")), h.checkout)

	orders := router.Group("/orders", require(authz.RequirementFor("/orders")))
	orders.GET("", h.listMyOrders)
	orders.GET("/:id", h.getMyOrder)
	orders.GET("/:id/payment", h.getMyOrderPayment)
	orders.POST("/:id/cancel", h.cancelMyOrder)

	chats := router.Group("/chats", require(authz.Authenticated()))
	chats.POST("", h.startChat)
	chats.GET("", h.listMyChats)
	chats.GET("/:id/messages", h.chatMessages)
	chats.POST("/:id/messages", h.sendChatMessage)
	chats.GET("/:id/stream", h.streamChat)
	chats.POST("/:id/close", h.closeChat)

	cs := router.Group("/customer-service", require(authz.RequirementFor("/customer-service")))
	cs.GET("/chats/open", h.listOpenChats)
	cs.GET("/chats/assigned", h.listAssignedChats)
	cs.POST("/chats/:id/claim", h.claimChat)
	cs.GET("/orders", h.listAllOrders)
	cs.PATCH("/orders/:id/status", h.updateOrderStatus)

	admin := router.Group("/admin", require(authz.RequirementFor("/admin")))
	admin.GET("/products", h.listAllProducts)
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.POST("/products/:id/image", h.uploadProductImage)
	admin.POST("/categories", h.upsertCategory)
	admin.POST("/subcategories", h.upsertSubcategory)
	admin.GET("/orders", h.listAllOrders)
	admin.PATCH("/orders/:id/status", h.updateOrderStatus)
	admin.GET("/orders/:id/payment", h.getOrderPayment)
	admin.PUT("/users/:id/roles", h.setRoles)
	admin.GET("/promotions", h.listAllPromotions)
	admin.POST("/promotions", h.upsertPromotion)
	admin.GET("/newsletter", h.listSubscribers)

	cashier := router.Group("/cashier", require(authz.RequirementFor("/cashier")))
	cashier.GET("/customers", h.findCustomers)
	cashier.POST("/orders", h.cashierCreateOrder)
	cashier.POST("/stock/decrement", h.cashierDecrementStock)

	return router, nil
}
