package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PriceResolver looks up the current market price of a symbol
type PriceResolver interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// OrderSubmitter signs and sends one order, returning the exchange's raw answer
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, order OrderRequest) (json.RawMessage, error)
}

// Clock supplies the order timestamp
type Clock interface {
	Now() time.Time
}

// SystemClock is the local wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
