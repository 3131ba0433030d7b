package domain

import "github.com/shopspring/decimal"

// Side is the order direction accepted by the exchange
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	OrderTypeMarket = "MARKET"
)

// OrderRequest is a single market order derived from one SignalEvent.
// Signature stays empty until the exchange client signs the canonical parameters.
type OrderRequest struct {
	Symbol    string
	Side      Side
	Type      string
	Quantity  decimal.Decimal
	Timestamp int64 // Unix Milliseconds
	Signature string
}

// IsSigned reports whether the signature has been populated.
func (o *OrderRequest) IsSigned() bool {
	return o.Signature != ""
}
