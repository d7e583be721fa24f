package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TruongSon421/storefront-checkout/api/routes"
	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/TruongSon421/storefront-checkout/internal/checkout"
	"github.com/TruongSon421/storefront-checkout/internal/identity"
	"github.com/TruongSon421/storefront-checkout/internal/payment"
	"github.com/TruongSon421/storefront-checkout/internal/reconcile"
	"github.com/TruongSon421/storefront-checkout/internal/session"
	"github.com/TruongSon421/storefront-checkout/internal/txlog"
	"github.com/TruongSon421/storefront-checkout/pkg/config"
	"github.com/TruongSon421/storefront-checkout/pkg/db"
	"github.com/TruongSon421/storefront-checkout/pkg/gateway"
	"github.com/TruongSon421/storefront-checkout/pkg/instance"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/metrics"
	"github.com/TruongSon421/storefront-checkout/pkg/redis"
)

const (
	mergeGuardTTL   = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func gatewayCartClient(cfg *config.Config) (*gateway.CartClient, error) {
	return gateway.NewCartClient(cfg.CartService.BaseURL,
		gateway.WithCartHTTPClient(&http.Client{Timeout: cfg.CartService.Timeout}))
}

func gatewayPaymentClient(cfg *config.Config) (*gateway.PaymentClient, error) {
	return gateway.NewPaymentClient(cfg.PaymentService.BaseURL,
		gateway.WithPaymentHTTPClient(&http.Client{Timeout: cfg.PaymentService.Timeout}))
}

// sweepIdleSessions evicts session bundles untouched past the idle TTL so the
// hub cannot grow unboundedly on client-minted session ids.
func sweepIdleSessions(hub *session.Hub, cfg config.SessionConfig, logg *logger.Logger, done <-chan struct{}) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if pruned := hub.PruneIdle(cfg.IdleTTL); pruned > 0 {
				ctx := logg.WithField(context.Background(), "pruned", pruned)
				logg.Info(ctx, "idle sessions pruned")
			}
		}
	}
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	dbClient, err := db.New(context.Background(), cfg.Journal, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap journal database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing journal database", err)
		}
	}()

	journalRepo, err := txlog.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create journal repository", err)
		os.Exit(1)
	}
	if cfg.Journal.AutoMigrate {
		if err := journalRepo.Migrate(); err != nil {
			logg.Error(context.Background(), "failed to migrate journal schema", err)
			os.Exit(1)
		}
	}
	journal, err := txlog.NewService(journalRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create journal service", err)
		os.Exit(1)
	}

	cartClient, err := gatewayCartClient(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart client", err)
		os.Exit(1)
	}
	paymentClient, err := gatewayPaymentClient(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment client", err)
		os.Exit(1)
	}

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	tokenStore, err := identity.NewRedisTokenStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest token store", err)
		os.Exit(1)
	}
	identities, err := identity.NewStore(tokenStore, cartClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity store", err)
		os.Exit(1)
	}
	mergeGuard, err := reconcile.NewMergeGuard(redisClient, mergeGuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create merge guard", err)
		os.Exit(1)
	}

	watches, err := payment.NewManager(payment.ManagerParams{
		Prober:   paymentClient,
		Opener:   paymentClient,
		Journal:  journal,
		Metrics:  paymentMetrics,
		Logger:   logg,
		Poller:   cfg.Poller,
		Redirect: cfg.Redirect,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment watch manager", err)
		os.Exit(1)
	}

	hub, err := session.NewHub(func(state *cartstate.State) (*session.Bundle, error) {
		reconciler, err := reconcile.NewService(identities, cartClient, state, mergeGuard, paymentMetrics, logg)
		if err != nil {
			return nil, err
		}
		orchestrator, err := checkout.NewOrchestrator(cartClient, state, journal, logg)
		if err != nil {
			return nil, err
		}
		return &session.Bundle{
			State:      state,
			Reconciler: reconciler,
			Checkout:   orchestrator,
		}, nil
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session hub", err)
		os.Exit(1)
	}

	sweepDone := make(chan struct{})
	defer close(sweepDone)
	go sweepIdleSessions(hub, cfg.Session, logg, sweepDone)

	handler := routes.NewRouter(cfg, logg, routes.Deps{
		Hub:        hub,
		Identities: identities,
		Carts:      cartClient,
		Watches:    watches,
		Journal:    journal,
		RedisP:     redisClient,
		JournalP:   dbClient,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting storefront server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "server stopped")
	}
}
