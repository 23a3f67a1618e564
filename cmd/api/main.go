package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lehaiminh/chainpos-backend/api/routes"
	"github.com/lehaiminh/chainpos-backend/internal/catalog"
	"github.com/lehaiminh/chainpos-backend/internal/customers"
	"github.com/lehaiminh/chainpos-backend/internal/inventory"
	"github.com/lehaiminh/chainpos-backend/internal/loyalty"
	"github.com/lehaiminh/chainpos-backend/internal/orders"
	"github.com/lehaiminh/chainpos-backend/pkg/config"
	"github.com/lehaiminh/chainpos-backend/pkg/db"
	"github.com/lehaiminh/chainpos-backend/pkg/logger"
	"github.com/lehaiminh/chainpos-backend/pkg/metrics"
	"github.com/lehaiminh/chainpos-backend/pkg/migrate"
	"github.com/lehaiminh/chainpos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orderMetrics := metrics.NewOrderMetrics(registry)

	orderService, err := buildOrderService(cfg, logg, dbClient, redisClient, orderMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire order service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.New(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Orders:   orderService,
			Registry: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildOrderService(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	orderMetrics *metrics.OrderMetrics,
) (orders.Service, error) {
	orderRepo, err := orders.NewRepository(dbClient.DB())
	if err != nil {
		return nil, err
	}
	catalogReader, err := catalog.NewReader(dbClient.DB())
	if err != nil {
		return nil, err
	}
	inventoryRepo, err := inventory.NewRepository(dbClient.DB())
	if err != nil {
		return nil, err
	}
	allocator, err := inventory.NewAllocator(inventoryRepo)
	if err != nil {
		return nil, err
	}
	customerRepo, err := customers.NewRepository(dbClient.DB())
	if err != nil {
		return nil, err
	}
	engine, err := loyalty.NewEngine(customerRepo)
	if err != nil {
		return nil, err
	}
	policyStore, err := loyalty.NewPolicyStore(dbClient.DB())
	if err != nil {
		return nil, err
	}
	policyStore, err = loyalty.NewCachedPolicyStore(policyStore, redisClient, cfg.Loyalty.PolicyCacheTTL, logg)
	if err != nil {
		return nil, err
	}
	codes := orders.NewCodeGenerator(redisClient, cfg.Orders.CodeCounterTTL, logg)

	return orders.NewService(
		dbClient,
		orderRepo,
		catalogReader,
		allocator,
		customerRepo,
		engine,
		policyStore,
		codes,
		cfg.Orders,
		logg,
		orderMetrics,
	)
}
