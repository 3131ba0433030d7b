package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"signal_relay/internal/domain"
	"signal_relay/internal/infra"
)

// Sizing controls how a notional amount becomes a base quantity
type Sizing struct {
	DefaultUnit     domain.AmountUnit
	Precision       int32
	Rounding        string // infra.RoundingTruncate | infra.RoundingHalfAway
	SymbolPrecision map[string]int32
}

// SizingFromConfig copies the sizing section of the config
func SizingFromConfig(cfg *infra.Config) Sizing {
	perSymbol := make(map[string]int32, len(cfg.Sizing.SymbolPrecision))
	for sym, p := range cfg.Sizing.SymbolPrecision {
		perSymbol[strings.ToUpper(sym)] = p
	}
	return Sizing{
		DefaultUnit:     domain.AmountUnit(cfg.Sizing.DefaultUnit),
		Precision:       cfg.Sizing.Precision,
		Rounding:        cfg.Sizing.Rounding,
		SymbolPrecision: perSymbol,
	}
}

func (s Sizing) precisionFor(symbol string) int32 {
	if p, ok := s.SymbolPrecision[symbol]; ok {
		return p
	}
	return s.Precision
}

// quotient divides amount by price in a single rounding step.
// Truncation never exceeds the notional.
func (s Sizing) quotient(amount, price decimal.Decimal, places int32) decimal.Decimal {
	if s.Rounding == infra.RoundingHalfAway {
		return amount.DivRound(price, places)
	}
	q, _ := amount.QuoRem(price, places)
	return q
}

// Translator maps a SignalEvent to an unsigned market OrderRequest
type Translator struct {
	prices domain.PriceResolver
	clock  domain.Clock
	sizing Sizing
}

// NewTranslator creates a Translator. A nil clock means the system clock.
func NewTranslator(prices domain.PriceResolver, clock domain.Clock, sizing Sizing) *Translator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if sizing.DefaultUnit == domain.UnitUnspecified {
		sizing.DefaultUnit = domain.UnitQuote
	}
	return &Translator{prices: prices, clock: clock, sizing: sizing}
}

// Translate resolves side, symbol and quantity, then stamps the order.
// The price lookup only happens for quote-denominated amounts.
func (t *Translator) Translate(ctx context.Context, ev domain.SignalEvent) (domain.OrderRequest, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ev.Symbol))
	if symbol == "" {
		return domain.OrderRequest{}, domain.NewPayloadError("symbol", "is required")
	}

	side, err := domain.ParseSide(ev.Action)
	if err != nil {
		return domain.OrderRequest{}, err
	}

	if !ev.Amount.IsPositive() {
		return domain.OrderRequest{}, domain.NewPayloadError("amount", "must be greater than zero")
	}

	quantity, err := t.quantity(ctx, symbol, ev)
	if err != nil {
		return domain.OrderRequest{}, err
	}

	return domain.OrderRequest{
		Symbol:    symbol,
		Side:      side,
		Type:      domain.OrderTypeMarket,
		Quantity:  quantity,
		Timestamp: t.clock.Now().UnixMilli(),
	}, nil
}

func (t *Translator) quantity(ctx context.Context, symbol string, ev domain.SignalEvent) (decimal.Decimal, error) {
	unit := ev.Unit
	if unit == domain.UnitUnspecified {
		unit = t.sizing.DefaultUnit
	}

	if unit == domain.UnitBase {
		return ev.Amount, nil
	}

	if t.prices == nil {
		return decimal.Zero, fmt.Errorf("%w: no price source configured", domain.ErrPriceUnavailable)
	}

	price, err := t.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: non-positive price %s", domain.ErrPriceUnavailable, symbol, price)
	}

	places := t.sizing.precisionFor(symbol)
	q := t.sizing.quotient(ev.Amount, price, places)
	if !q.IsPositive() {
		return decimal.Zero, domain.NewPayloadError("amount",
			fmt.Sprintf("%s is below the minimum tradable quantity at price %s", ev.Amount, price))
	}
	return q, nil
}
