package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"

	"signal_relay/internal/domain"
	"signal_relay/internal/infra"
)

// Client is the Binance Futures order REST client (Boundary Layer)
type Client struct {
	baseURL    string
	orderPath  string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	signer     *Signer
	metrics    *infra.Metrics
	logger     *slog.Logger
}

// NewClient creates a new order client.
// It fails closed with ErrMissingCredentials when the key pair is incomplete.
func NewClient(cfg *infra.Config, httpClient *http.Client, metrics *infra.Metrics) (*Client, error) {
	creds := cfg.Credentials()
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	signer, err := NewSigner(creds.APISecret)
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.ExchangeTimeout())
	}

	orderPath := cfg.Exchange.OrderPath
	if orderPath == "" {
		orderPath = OrderPath
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.Exchange.BaseURL, "/"),
		orderPath:  orderPath,
		apiKey:     creds.APIKey,
		timeout:    cfg.ExchangeTimeout(),
		httpClient: httpClient,
		signer:     signer,
		metrics:    metrics,
		logger:     slog.Default().With("module", "binance_client"),
	}, nil
}

// NewHTTPClient builds the pooled client shared by all exchange calls
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: timeout,
		},
	}
}

// SubmitOrder signs the order and sends it once.
// The exchange answer is returned unmodified; rejections come back as *domain.ExchangeError.
func (c *Client) SubmitOrder(ctx context.Context, order domain.OrderRequest) (json.RawMessage, error) {
	if order.Type == "" {
		order.Type = domain.OrderTypeMarket
	}

	// 1. Canonical query + signature (signature is always the last field)
	canonical, signature := c.signer.SignParams(orderParams(order))
	order.Signature = signature

	// 2. A sent order cannot be recalled, so only the timeout bounds it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.orderPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.URL.RawQuery = signedQuery(canonical, order.Signature)
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	// 3. Send Request
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveExchangeRequest(endpointOrder, "transport_error", time.Since(start))
		c.logger.Error("Order request failed", "symbol", order.Symbol, "side", order.Side, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveExchangeRequest(endpointOrder, "transport_error", time.Since(start))
		return nil, fmt.Errorf("%w: read order response: %v", domain.ErrTransportFailure, err)
	}
	c.metrics.ObserveExchangeRequest(endpointOrder, statusLabel(resp.StatusCode), time.Since(start))

	// 4. Parse Response
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		exErr := newExchangeError(resp.StatusCode, body)
		c.logger.Warn("Order rejected",
			"symbol", order.Symbol,
			"side", order.Side,
			"status", resp.StatusCode,
			"code", exErr.Code,
			"msg", exErr.Message,
		)
		return nil, exErr
	}

	if !isJSONObject(body) {
		c.logger.Warn("Malformed order response", "symbol", order.Symbol, "status", resp.StatusCode)
		return nil, newExchangeError(resp.StatusCode, body)
	}

	c.logger.Info("Order Placed Successfully",
		"symbol", order.Symbol,
		"side", order.Side,
		"quantity", order.Quantity.String(),
		"timestamp", order.Timestamp,
	)
	return json.RawMessage(body), nil
}

// newExchangeError keeps the raw body and lifts {code,msg} when present
func newExchangeError(status int, body []byte) *domain.ExchangeError {
	exErr := &domain.ExchangeError{StatusCode: status, RawBody: body}

	var apiErr common.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		exErr.Code = apiErr.Code
		exErr.Message = apiErr.Message
	}
	return exErr
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "ok"
	case code >= 400 && code < 500:
		return "rejected"
	default:
		return "error"
	}
}
