package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/consumer"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/ledger"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("storefront starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB: catalog, orders, sales
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		fatal(log, "failed to connect to MongoDB", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	if err := repository.CreateIndexes(ctx, mongoDB); err != nil {
		fatal(log, "failed to create indexes", err)
	}
	log.Info("connected to MongoDB", "hosts", repository.MongoHosts(cfg.MongoURI), "db", cfg.MongoDBName)

	products := repository.NewProductRepository(mongoDB)
	orders := repository.NewOrderRepository(mongoDB)
	sales := repository.NewSaleRepository(mongoDB)

	// Redis: product cache and carts
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fatal(log, "redis connection failed", err)
	}
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	productCache := cache.NewRedisCache(redisClient)
	carts := cart.NewRedisStore(redisClient)

	l, err := openLedger(cfg.Ledger)
	if err != nil {
		fatal(log, "failed to open ledger", err)
	}
	defer l.Close()
	if err := l.RunMigrations(cfg.Ledger.MigrationsPath); err != nil {
		fatal(log, "failed to run migrations", err)
	}
	log.Info("ledger migrations completed", "driver", cfg.Ledger.Driver)

	processor := payment.NewStripeProcessor(cfg.StripeSecretKey, nil, payment.DefaultBreakerConfig(), log)
	verifier := payment.NewWebhookVerifier(cfg.StripeWebhookSecret)

	reader := inventory.NewStockReader(products, productCache, log)
	writer := inventory.NewStockWriter(products, productCache, log,
		inventory.WithRequireColor(cfg.StockRequireColor),
		inventory.WithMaxAttempts(cfg.StockMaxAttempts),
	)

	cartService := service.NewCartService(carts, reader, log)
	checkoutService := service.NewCheckoutService(processor, reader, carts, service.CheckoutConfig{
		BaseURL:  cfg.BaseURL,
		Currency: cfg.Currency,
	}, log)
	materializer := service.NewOrderMaterializer(processor, orders, writer, l, carts, log)
	orderService := service.NewOrderService(orders, log)
	catalogService := service.NewCatalogService(products, sales)

	// Background workers for the stock retry queue
	poller := publisher.NewOutboxPoller(l, publisher.RecoverFunc(func(ctx context.Context, sessionID string) error {
		_, err := materializer.Resume(ctx, sessionID)
		return err
	}), cfg.OutboxInterval, log, cfg.KafkaBrokers...)
	defer poller.Close()

	stockConsumer := consumer.NewStockAdjustmentConsumer(l, writer, cfg.RetryMaxAttempts, log, cfg.KafkaBrokers...)
	defer stockConsumer.Close()

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer workers.Done()
		stockConsumer.Run(ctx)
	}()

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(catalogService, reader, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(cartService, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(checkoutService, materializer, verifier, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(orderService, cfg.RequestTimeout),
	}, h.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	workers.Wait()

	log.Info("storefront stopped")
}

func openLedger(cfg config.LedgerConfig) (*ledger.Repository, error) {
	if cfg.Driver == ledger.DialectSQLite {
		return ledger.NewSQLiteRepository(cfg.SQLitePath)
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return nil, errors.New("invalid DB_PORT: " + cfg.Port)
	}
	return ledger.NewPostgresRepository(&ledger.Credentials{
		Host:              cfg.Host,
		Port:              port,
		User:              cfg.User,
		Password:          cfg.Password,
		DBName:            cfg.Name,
		MigrationsDirPath: cfg.MigrationsPath,
	})
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
