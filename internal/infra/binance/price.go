package binance

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"signal_relay/internal/domain"
	"signal_relay/internal/infra"
)

// PriceClient resolves last traded prices from the public ticker endpoint
type PriceClient struct {
	client  *futures.Client
	timeout time.Duration
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewPriceClient creates a ticker client. No API key is needed or sent.
func NewPriceClient(cfg *infra.Config, httpClient *http.Client, metrics *infra.Metrics) *PriceClient {
	return &PriceClient{
		client:  newPublicFuturesClient(cfg, httpClient),
		timeout: cfg.ExchangeTimeout(),
		metrics: metrics,
		logger:  slog.Default().With("module", "binance_price"),
	}
}

func newPublicFuturesClient(cfg *infra.Config, httpClient *http.Client) *futures.Client {
	fc := futures.NewClient("", "")
	fc.BaseURL = strings.TrimRight(cfg.Exchange.BaseURL, "/")
	if httpClient != nil {
		fc.HTTPClient = httpClient
	}
	return fc
}

// CurrentPrice returns the latest price for symbol.
// Any failure is reported as ErrPriceUnavailable.
func (p *PriceClient) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	prices, err := p.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		p.metrics.ObserveExchangeRequest(endpointTicker, "error", time.Since(start))
		p.logger.Warn("Ticker lookup failed", "symbol", symbol, "error", err)
		return decimal.Zero, fmt.Errorf("%w: %s: %v", domain.ErrPriceUnavailable, symbol, err)
	}
	p.metrics.ObserveExchangeRequest(endpointTicker, "ok", time.Since(start))

	for _, sp := range prices {
		if sp == nil || !strings.EqualFold(sp.Symbol, symbol) {
			continue
		}
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s: unparsable price %q", domain.ErrPriceUnavailable, symbol, sp.Price)
		}
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s: non-positive price %s", domain.ErrPriceUnavailable, symbol, price)
		}
		p.logger.Debug("Ticker price resolved", "symbol", symbol, "price", price.String())
		return price, nil
	}

	return decimal.Zero, fmt.Errorf("%w: %s: symbol missing from ticker response", domain.ErrPriceUnavailable, symbol)
}
