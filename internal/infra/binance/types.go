package binance

import "time"

// Binance USDⓈ-M Futures REST constants
const (
	OrderPath = "/fapi/v1/order"

	// Used by go-binance's ListPricesService
	TickerPricePath = "/fapi/v2/ticker/price"

	apiKeyHeader   = "X-MBX-APIKEY"
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Endpoint labels for metrics
const (
	endpointOrder  = "order"
	endpointTicker = "ticker_price"
	endpointTime   = "server_time"
)
