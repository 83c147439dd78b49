package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/realtime"
	categoryrepo "storefront/internal/repository/category"
	chatrepo "storefront/internal/repository/chat"
	customerrepo "storefront/internal/repository/customer"
	newsletterrepo "storefront/internal/repository/newsletter"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	promotionrepo "storefront/internal/repository/promotion"
	rolerepo "storefront/internal/repository/role"
	tokenrepo "storefront/internal/repository/token"
	categorysvc "storefront/internal/service/category"
	chatsvc "storefront/internal/service/chat"
	customersvc "storefront/internal/service/customer"
	marketingsvc "storefront/internal/service/marketing"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	"storefront/internal/storage"
)

const tokenPurgeInterval = 15 * time.Minute

func main() {
	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("app", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appMetrics, shutdownMetrics, err := metrics.Init(ctx, metrics.Options{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init metrics")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics shutdown")
		}
	}()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to db")
	}
	defer dbpool.Close()

	images, err := storage.NewLocal(cfg.UploadDir, cfg.FileURLHost+"/uploads")
	if err != nil {
		logger.Fatal().Err(err).Msg("init upload storage")
	}

	productRepo := productrepo.NewPostgres(dbpool, &logger)
	categoryRepo := categoryrepo.NewPostgres(dbpool)
	customerRepo := customerrepo.NewPostgres(dbpool, &logger)
	orderRepo := orderrepo.NewPostgres(dbpool, &logger)
	chatRepo := chatrepo.NewPostgres(dbpool, &logger)

	productService := productsvc.New(productRepo, images, &logger)
	categoryService := categorysvc.New(categoryRepo)
	customerService := customersvc.New(customerRepo, rolerepo.NewPostgres(dbpool), tokenrepo.NewPostgres(dbpool), &logger)
	orderService := ordersvc.New(orderRepo, productService, &logger)
	marketingService := marketingsvc.New(promotionrepo.NewPostgres(dbpool), newsletterrepo.NewPostgres(dbpool), &logger)

	submitter := checkout.New(orderService,
		checkout.WithShipping(checkout.Shipping{
			FlatCents:     cfg.ShippingFlatCents,
			FreeOverCents: cfg.FreeShippingOverCents,
		}),
		checkout.WithRecorder(appMetrics),
		checkout.WithLogger(logger),
	)

	broker := realtime.NewBroker()
	var publisher realtime.Publisher = broker
	if cfg.RealtimeBackend == "postgres" {
		publisher = realtime.NewPGNotifier(dbpool)
		go realtime.NewListener(dbpool, broker, chatRepo, logger).Run(ctx)
	}
	logger.Info().Str("backend", cfg.RealtimeBackend).Msg("chat fan-out ready")
	chatService := chatsvc.New(chatRepo, publisher, broker, appMetrics, &logger)

	go purgeTokens(ctx, customerService, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Customers:      customerService,
		Products:       productService,
		Categories:     categoryService,
		Orders:         orderService,
		Checkout:       submitter,
		Chats:          chatService,
		Marketing:      marketingService,
		Metrics:        appMetrics,
		UploadDir:      cfg.UploadDir,
		CORSOrigins:    cfg.CORSOrigins,
		LoginRateRPS:   cfg.LoginRateRPS,
		LoginRateBurst: cfg.LoginRateBurst,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("received signal, shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("server stopped")
	}
}

func purgeTokens(ctx context.Context, customers *customersvc.Service, logger zerolog.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := customers.PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("purge expired tokens")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("purged", n).Msg("expired tokens removed")
			}
		}
	}
}
