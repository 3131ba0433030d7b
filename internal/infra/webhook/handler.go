package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"signal_relay/internal/domain"
	"signal_relay/internal/infra"
	"signal_relay/internal/service"
)

// LivenessMessage is served on GET / for deployment health checks
const LivenessMessage = "signal relay is running"

// Pipeline is the transport-free webhook flow
type Pipeline interface {
	Handle(ctx context.Context, raw []byte) service.Result
}

// Handler adapts the webhook pipeline to HTTP
type Handler struct {
	pipeline     Pipeline
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHandler creates a new HTTP handler for trade signals
func NewHandler(pipeline Pipeline, maxBodyBytes int64) *Handler {
	return &Handler{
		pipeline:     pipeline,
		maxBodyBytes: maxBodyBytes,
		logger:       slog.Default().With("module", "webhook_http"),
	}
}

// NewRouter wires the public routes
func NewRouter(h *Handler, metrics *infra.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(MetricsMiddleware(metrics))
	r.Use(chimw.Recoverer)

	r.Get("/", h.Liveness)
	r.Post("/webhook", h.HandleWebhook)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// Liveness answers with a fixed confirmation string
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(LivenessMessage))
}

// HandleWebhook reads the signal body and runs the pipeline
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": domain.ErrInvalidPayload.Error()})
		return
	}

	res := h.pipeline.Handle(r.Context(), raw)

	h.logger.DebugContext(r.Context(), "Webhook handled",
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.Int("status", res.StatusCode))

	writeJSON(w, res.StatusCode, res.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}
