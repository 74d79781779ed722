package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/consumer"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/marketplace"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	client := marketplace.NewClient(cfg.MarketplaceURL, cfg.RequestTimeout, log.Named("marketplace"))
	catalog := service.NewProductCatalog(client, cache.NewRedisProductCache(rdb, cfg.ProductCacheTTL), log.Named("catalog"))
	statsCache := cache.NewRedisStatsCache(rdb)
	dashboard := service.NewDashboardStats(client, statsCache, log.Named("stats"))

	deps := service.CheckoutDeps{
		Orders:       client,
		Stats:        dashboard,
		Idempotency:  cache.NewRedisIdempotencyStore(rdb, cfg.IdempotencyTTL),
		Log:          log.Named("checkout"),
		HealthCheck:  cfg.HealthCheckBeforeCheckout,
		PaymentDelay: cfg.PaymentDelay,
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := publisher.NewStatsPublisher(cfg.StatsTopic, log.Named("publisher"), cfg.KafkaBrokers...)
		defer pub.Close()
		deps.Stats = pub

		statsConsumer := consumer.NewStatsConsumer(dashboard, cfg.StatsTopic, cfg.StatsGroupID, log.Named("consumer"), cfg.KafkaBrokers...)
		consumerCtx, stopConsumer := context.WithCancel(context.Background())
		defer func() {
			stopConsumer()
			statsConsumer.Close()
		}()
		go statsConsumer.Run(consumerCtx)
		log.Info("seller stats refresh via kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.StatsTopic))
	}

	var history h.CheckoutHistory
	if cfg.DB.Enabled() {
		cred := &repository.Credentials{
			Host:              cfg.DB.Host,
			Port:              cfg.DB.Port,
			User:              cfg.DB.User,
			Password:          cfg.DB.Password,
			DBName:            cfg.DB.Name,
			MigrationsDirPath: cfg.DB.MigrationsDirPath,
		}
		repo, err := repository.NewRepository(cred)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.RunMigrations(cred); err != nil {
			return err
		}
		deps.Journal = repo
		history = repo
		log.Info("checkout journal enabled", zap.String("db_host", cfg.DB.Host))
	}

	registry := service.NewRegistry(
		cache.NewRedisSessionStore(rdb, cfg.SessionTTL),
		catalog.CartRemote(client),
		cache.NewRedisLocalCart(rdb),
		deps,
		log.Named("cart"),
	)

	router := h.NewRouter(h.RouterConfig{
		Registry:       registry,
		Products:       catalog,
		Orders:         client,
		Stats:          dashboard,
		History:        history,
		Health:         client.Health,
		Log:            log.Named("http"),
		RequestTimeout: cfg.RequestTimeout,
		MaxRequestBody: cfg.MaxRequestBody,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + cfg.PaymentDelay + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("marketplace", cfg.MarketplaceURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server...")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
