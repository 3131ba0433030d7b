package binance

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"signal_relay/internal/infra"
)

// ServerClock tracks the offset between local time and the exchange clock
// so order timestamps stay inside the exchange's recvWindow.
type ServerClock struct {
	client     *futures.Client
	interval   time.Duration
	offset     time.Duration // server - local
	lastUpdate time.Time
	mu         sync.RWMutex
	metrics    *infra.Metrics
	logger     *slog.Logger
}

// NewServerClock creates a clock. Call Sync or Run before relying on the offset.
func NewServerClock(cfg *infra.Config, httpClient *http.Client, metrics *infra.Metrics) *ServerClock {
	return &ServerClock{
		client:   newPublicFuturesClient(cfg, httpClient),
		interval: cfg.TimeSyncInterval(),
		metrics:  metrics,
		logger:   slog.Default().With("module", "binance_clock"),
	}
}

// Sync measures the offset once, compensating for half the round trip
func (c *ServerClock) Sync(ctx context.Context) error {
	localBefore := time.Now()
	serverMs, err := c.client.NewServerTimeService().Do(ctx)
	if err != nil {
		c.metrics.ObserveExchangeRequest(endpointTime, "error", time.Since(localBefore))
		c.logger.Warn("Failed to get server time", "error", err)
		return err
	}
	localAfter := time.Now()

	roundTrip := localAfter.Sub(localBefore)
	c.metrics.ObserveExchangeRequest(endpointTime, "ok", roundTrip)

	offset := time.UnixMilli(serverMs).Sub(localBefore.Add(roundTrip / 2))

	c.mu.Lock()
	c.offset = offset
	c.lastUpdate = localAfter
	c.mu.Unlock()

	c.logger.Info("Server time offset updated", "offset", offset, "round_trip", roundTrip)
	return nil
}

// Run re-syncs on every interval tick until ctx is done
func (c *ServerClock) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Sync(ctx)
		}
	}
}

// Offset returns the last measured offset
func (c *ServerClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// LastSync returns when the offset was last measured; zero if never
func (c *ServerClock) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Now returns local time corrected by the offset
func (c *ServerClock) Now() time.Time {
	return time.Now().Add(c.Offset())
}
