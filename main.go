package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SigNoz/marketplace-storefront/internal/api"
	"github.com/SigNoz/marketplace-storefront/internal/apiclient"
	"github.com/SigNoz/marketplace-storefront/internal/localstore"
	"github.com/SigNoz/marketplace-storefront/internal/logging"
	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/services"
	"github.com/SigNoz/marketplace-storefront/pkg/config"
	"github.com/gorilla/mux"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logging.Init(cfg.LogLevel, cfg.OTELServiceName)

	if err := run(cfg); err != nil {
		slog.Error("storefront stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// run wires the storefront and serves until a signal arrives. Deferred
// shutdowns run before it returns.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Initialize OpenTelemetry metrics
	appMetrics := metrics.NewNoop(cfg.OTELServiceName)
	if cfg.OTELMetricsEnabled {
		m, meterProvider, err := metrics.InitMetrics(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		appMetrics = m
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meterProvider.Shutdown(shutdownCtx); err != nil {
				slog.Error("error shutting down meter provider", slog.Any("error", err))
			}
		}()
	}

	// Open the device store holding the credential and the cart
	store, err := localstore.Open(ctx, cfg, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.Close()

	client, err := apiclient.New(
		cfg.APIBaseURL,
		apiclient.NewHTTPClient(cfg.APITimeout),
		apiclient.StoreTokenSource{Store: store, Key: cfg.TokenKey},
		appMetrics,
	)
	if err != nil {
		return fmt.Errorf("invalid marketplace client configuration: %w", err)
	}

	// Initialize services
	session := services.NewSessionService(client, store, cfg.TokenKey, cfg.CartKey, appMetrics)
	cart := services.NewCartService(store, cfg.CartKey, appMetrics)
	orders := services.NewOrderService(client, cart, session, appMetrics, cfg.DefaultPrepaymentPercentage)
	products := services.NewProductService(client, session, appMetrics)
	news := services.NewNewsService(client, session)

	initCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
	if err := session.Init(initCtx); err != nil {
		slog.Warn("could not restore session, starting signed out", slog.Any("error", err))
	}
	cancel()

	app := api.NewApp(cfg, appMetrics, session, cart, orders, products, news)

	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GetAppPortInt()),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("storefront starting",
			slog.Int("port", cfg.GetAppPortInt()),
			slog.String("marketplace", client.BaseURL()),
			slog.String("store", cfg.StoreBackend),
			slog.Bool("signed_in", session.IsAuthenticated()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
	case runErr = <-serverErr:
		slog.Error("server failed", slog.Any("error", runErr))
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.Any("error", err))
	}

	slog.Info("server exited")
	return runErr
}
