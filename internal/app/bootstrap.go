package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"signal_relay/internal/domain"
	"signal_relay/internal/infra"
	"signal_relay/internal/infra/binance"
	"signal_relay/internal/infra/webhook"
	"signal_relay/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Metrics *infra.Metrics
	Clock   *binance.ServerClock // nil when time sync is disabled
	Server  *http.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config and wires every component.
// It fails closed when exchange credentials are missing.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping signal relay...", slog.String("env", cfg.App.Env))

	// 3. Metrics
	b.Metrics = infra.NewMetrics()

	// 4. Exchange clients share one pooled HTTP client
	httpClient := binance.NewHTTPClient(cfg.ExchangeTimeout())

	orders, err := binance.NewClient(cfg, httpClient, b.Metrics)
	if err != nil {
		return err
	}
	prices := binance.NewPriceClient(cfg, httpClient, b.Metrics)
	slog.Info("✅ Exchange client ready", slog.String("base_url", cfg.Exchange.BaseURL))

	// 5. Order timestamps
	var clock domain.Clock = domain.SystemClock{}
	if cfg.TimeSyncInterval() > 0 {
		b.Clock = binance.NewServerClock(cfg, httpClient, b.Metrics)
		if err := b.Clock.Sync(ctx); err != nil {
			// Local time still works, just without the offset
			slog.Warn("Initial exchange time sync failed", slog.Any("error", err))
		}
		clock = b.Clock
	}

	// 6. Pipeline + HTTP
	translator := service.NewTranslator(prices, clock, service.SizingFromConfig(cfg))
	svc := service.NewWebhookService(translator, orders, cfg.Webhook.Passphrase, b.Metrics)
	handler := webhook.NewHandler(svc, cfg.Server.MaxBodyBytes)

	b.Server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           webhook.NewRouter(handler, b.Metrics),
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: cfg.ReadTimeout(),
	}

	if cfg.Webhook.Passphrase == "" {
		slog.Warn("Webhook passphrase not set, accepting unauthenticated signals")
	}

	return nil
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.Clock != nil {
		go b.Clock.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("✨ Signal relay listening", slog.String("addr", b.Server.Addr))
		if err := b.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
