package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"signal_relay/internal/infra"
	"signal_relay/internal/infra/binance"
	"signal_relay/internal/service"
)

type stubPipeline struct {
	res   service.Result
	calls int
	raw   []byte
}

func (s *stubPipeline) Handle(_ context.Context, raw []byte) service.Result {
	s.calls++
	s.raw = raw
	return s.res
}

type panicPipeline struct{}

func (panicPipeline) Handle(context.Context, []byte) service.Result {
	panic("boom")
}

func TestLiveness(t *testing.T) {
	router := NewRouter(NewHandler(&stubPipeline{}, 0), infra.NewMetrics())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != LivenessMessage {
		t.Errorf("Expected liveness message, got %q", rec.Body.String())
	}
}

func TestHandleWebhook_PassesBodyAndWritesResult(t *testing.T) {
	pipeline := &stubPipeline{res: service.Result{
		StatusCode: http.StatusBadRequest,
		Body:       map[string]string{"error": "action: is required"},
	}}
	metrics := infra.NewMetrics()
	router := NewRouter(NewHandler(pipeline, 1024), metrics)

	payload := `{"symbol":"BTCUSDT","quantity":0.01}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if pipeline.calls != 1 || string(pipeline.raw) != payload {
		t.Fatalf("Expected body handed to pipeline once, got %d calls with %q", pipeline.calls, pipeline.raw)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "action: is required" {
		t.Errorf("unexpected body %v", body)
	}

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "/webhook", "400")); got != 1 {
		t.Errorf("Expected 1 request metric for /webhook 400, got %v", got)
	}
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	pipeline := &stubPipeline{}
	router := NewRouter(NewHandler(pipeline, 16), nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
	if pipeline.calls != 0 {
		t.Errorf("Expected pipeline not called, got %d", pipeline.calls)
	}
}

func TestRouter_WrongMethod(t *testing.T) {
	router := NewRouter(NewHandler(&stubPipeline{}, 0), nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	router := NewRouter(NewHandler(panicPipeline{}, 0), infra.NewMetrics())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after panic, got %d", rec.Code)
	}

	// Process keeps serving
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 after recovery, got %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	metrics := infra.NewMetrics()
	router := NewRouter(NewHandler(&stubPipeline{}, 0), metrics)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("Expected http_requests_total in exposition")
	}
}

// End to end against a fake exchange: router → service → binance client
func newFakeExchange(t *testing.T, orderStatus int, orderBody string, orderCalls, priceCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == binance.TickerPricePath:
			priceCalls.Add(1)
			fmt.Fprintf(w, `{"symbol":%q,"price":"2000"}`, r.URL.Query().Get("symbol"))
		case r.URL.Path == binance.OrderPath && r.Method == http.MethodPost:
			orderCalls.Add(1)
			w.WriteHeader(orderStatus)
			io.WriteString(w, orderBody)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newEndToEnd(t *testing.T, exchangeURL string, opts ...func(*infra.Config)) http.Handler {
	t.Helper()
	cfg := infra.DefaultConfig()
	cfg.Exchange.BaseURL = exchangeURL
	cfg.Exchange.APIKey = "key"
	cfg.Exchange.APISecret = "secret"
	cfg.Exchange.TimeoutMS = 2000
	for _, opt := range opts {
		opt(cfg)
	}

	metrics := infra.NewMetrics()
	httpClient := binance.NewHTTPClient(cfg.ExchangeTimeout())

	client, err := binance.NewClient(cfg, httpClient, metrics)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	prices := binance.NewPriceClient(cfg, httpClient, metrics)
	translator := service.NewTranslator(prices, nil, service.SizingFromConfig(cfg))
	svc := service.NewWebhookService(translator, client, "", metrics)

	return NewRouter(NewHandler(svc, cfg.Server.MaxBodyBytes), metrics)
}

func post(router http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	return rec
}

func TestEndToEnd_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		orderStatus int
		orderBody   string
		wantStatus  int
		wantOrders  int32
		wantPrices  int32
		defaultUnit string
		check       func(t *testing.T, body map[string]any)
	}{
		{
			name:        "long with base quantity",
			payload:     `{"symbol":"BTCUSDT","action":"long","quantity":0.01}`,
			orderStatus: http.StatusOK,
			orderBody:   `{"orderId":1,"status":"NEW"}`,
			wantStatus:  http.StatusOK,
			wantOrders:  1,
			check: func(t *testing.T, body map[string]any) {
				if body["status"] != "success" {
					t.Errorf("unexpected body %v", body)
				}
			},
		},
		{
			name:        "long amount read as base units",
			payload:     `{"symbol":"BTCUSDT","action":"long","amount":0.01}`,
			defaultUnit: "base",
			orderStatus: http.StatusOK,
			orderBody:   `{"orderId":3,"origQty":"0.010"}`,
			wantStatus:  http.StatusOK,
			wantOrders:  1,
		},
		{
			name:       "long amount read as quote notional rounds to zero",
			payload:    `{"symbol":"BTCUSDT","action":"long","amount":0.01}`,
			wantStatus: http.StatusBadRequest,
			wantPrices: 1,
			check: func(t *testing.T, body map[string]any) {
				if msg, _ := body["error"].(string); !strings.HasPrefix(msg, "amount:") {
					t.Errorf("Expected amount error, got %v", body)
				}
			},
		},
		{
			name:        "short with quote amount",
			payload:     `{"symbol":"ETHUSDT","action":"short","amount":30}`,
			orderStatus: http.StatusOK,
			orderBody:   `{"orderId":2,"origQty":"0.015"}`,
			wantStatus:  http.StatusOK,
			wantOrders:  1,
			wantPrices:  1,
		},
		{
			name:       "missing action",
			payload:    `{"symbol":"BTCUSDT","quantity":0.01}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				if msg, _ := body["error"].(string); !strings.Contains(msg, "action") {
					t.Errorf("Expected message naming action, got %v", body)
				}
			},
		},
		{
			name:        "unknown symbol rejected by exchange",
			payload:     `{"symbol":"FOOUSDT","action":"long","quantity":1}`,
			orderStatus: http.StatusBadRequest,
			orderBody:   `{"code":-1121,"msg":"Invalid symbol."}`,
			wantStatus:  http.StatusInternalServerError,
			wantOrders:  1,
			check: func(t *testing.T, body map[string]any) {
				if body["message"] != "Invalid symbol." {
					t.Errorf("Expected exchange message, got %v", body)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var orders, prices atomic.Int32
			exchange := newFakeExchange(t, tt.orderStatus, tt.orderBody, &orders, &prices)
			defer exchange.Close()

			router := newEndToEnd(t, exchange.URL, func(cfg *infra.Config) {
				if tt.defaultUnit != "" {
					cfg.Sizing.DefaultUnit = tt.defaultUnit
				}
			})
			rec := post(router, tt.payload)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if orders.Load() != tt.wantOrders || prices.Load() != tt.wantPrices {
				t.Errorf("Expected %d order / %d price calls, got %d / %d",
					tt.wantOrders, tt.wantPrices, orders.Load(), prices.Load())
			}
			if tt.check != nil {
				var body map[string]any
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				tt.check(t, body)
			}
		})
	}
}

func TestEndToEnd_ClientDisconnectDoesNotAbortOrder(t *testing.T) {
	var orders atomic.Int32
	exchange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		orders.Add(1)
		io.WriteString(w, `{"orderId":9}`)
	}))
	defer exchange.Close()

	router := newEndToEnd(t, exchange.URL)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"symbol":"BTCUSDT","action":"buy","quantity":0.01}`)).WithContext(ctx)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected order to complete despite disconnect, got %d: %s", rec.Code, rec.Body.String())
	}
	if orders.Load() != 1 {
		t.Errorf("Expected 1 order, got %d", orders.Load())
	}
}
