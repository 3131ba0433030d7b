package binance

import (
	"net/url"
	"strconv"
	"strings"

	"signal_relay/internal/domain"
)

// Param is a single key=value pair of a request query
type Param struct {
	Key   string
	Value string
}

// Params keeps insertion order. Binance verifies the signature against the
// query exactly as sent, so ordering must never come from a map.
type Params []Param

// Add appends a pair and returns the extended list
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// Encode joins pairs as key=value with '&', escaping values once
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

// orderParams lists the order fields in their canonical order:
// symbol, side, type, quantity, timestamp.
func orderParams(o domain.OrderRequest) Params {
	return Params{}.
		Add("symbol", o.Symbol).
		Add("side", string(o.Side)).
		Add("type", o.Type).
		Add("quantity", o.Quantity.String()).
		Add("timestamp", strconv.FormatInt(o.Timestamp, 10))
}

// signedQuery appends the signature as the final parameter
func signedQuery(canonical, signature string) string {
	return canonical + "&signature=" + signature
}
