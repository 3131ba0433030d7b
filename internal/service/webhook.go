package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"signal_relay/internal/domain"
	"signal_relay/internal/infra"
)

// Result is the HTTP-agnostic outcome of one webhook run
type Result struct {
	StatusCode int
	Body       any
}

type successBody struct {
	Status string          `json:"status"`
	Order  json.RawMessage `json:"order"`
}

type rejectBody struct {
	Error string `json:"error"`
}

type failureBody struct {
	Status   string `json:"status"`
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Code     *int64 `json:"code,omitempty"`
	Exchange any    `json:"exchange,omitempty"`
}

// WebhookService runs the signal pipeline:
// parse → authenticate → translate → submit → respond.
type WebhookService struct {
	translator *Translator
	submitter  domain.OrderSubmitter
	passphrase string
	metrics    *infra.Metrics
	logger     *slog.Logger
}

// NewWebhookService creates a new WebhookService.
// An empty passphrase disables the shared-secret check.
func NewWebhookService(translator *Translator, submitter domain.OrderSubmitter, passphrase string, metrics *infra.Metrics) *WebhookService {
	return &WebhookService{
		translator: translator,
		submitter:  submitter,
		passphrase: passphrase,
		metrics:    metrics,
		logger:     slog.Default().With("module", "webhook"),
	}
}

// Handle processes one raw webhook body. It makes at most one order call
// and never returns an error: every failure is folded into the Result.
func (s *WebhookService) Handle(ctx context.Context, raw []byte) Result {
	start := time.Now()
	log := s.logger.With(slog.String("signal_id", uuid.NewString()))

	ev, err := domain.ParseSignal(raw)
	if err != nil {
		log.WarnContext(ctx, "Rejected signal", slog.Any("error", err))
		s.metrics.RecordSignal(infra.OutcomeRejected, "")
		return reject(err)
	}

	if !s.authorized(ev.Passphrase) {
		log.WarnContext(ctx, "Rejected signal: passphrase mismatch", slog.String("symbol", ev.Symbol))
		s.metrics.RecordSignal(infra.OutcomeRejected, "")
		return reject(domain.ErrUnauthorized)
	}

	order, err := s.translator.Translate(ctx, ev)
	if err != nil {
		return s.fail(ctx, log, ev, "", err)
	}

	log.InfoContext(ctx, "Submitting order",
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("quantity", order.Quantity.String()),
		slog.Int64("timestamp", order.Timestamp))

	resp, err := s.submitter.SubmitOrder(ctx, order)
	if err != nil {
		return s.fail(ctx, log, ev, string(order.Side), err)
	}

	log.InfoContext(ctx, "Order accepted",
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Duration("elapsed", time.Since(start)))
	s.metrics.RecordSignal(infra.OutcomeSuccess, string(order.Side))

	return Result{
		StatusCode: http.StatusOK,
		Body:       successBody{Status: "success", Order: resp},
	}
}

func (s *WebhookService) authorized(given string) bool {
	if s.passphrase == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.passphrase)) == 1
}

func (s *WebhookService) fail(ctx context.Context, log *slog.Logger, ev domain.SignalEvent, side string, err error) Result {
	status := domain.StatusCode(err)
	if status < http.StatusInternalServerError {
		log.WarnContext(ctx, "Rejected signal", slog.String("symbol", ev.Symbol), slog.Any("error", err))
		s.metrics.RecordSignal(infra.OutcomeRejected, side)
		return reject(err)
	}

	log.ErrorContext(ctx, "Signal failed", slog.String("symbol", ev.Symbol), slog.Any("error", err))
	s.metrics.RecordSignal(infra.OutcomeFailed, side)

	body := failureBody{Status: "error", Error: publicMessage(err)}

	var exErr *domain.ExchangeError
	if errors.As(err, &exErr) {
		body.Message = exErr.Message
		if exErr.Message != "" {
			code := exErr.Code
			body.Code = &code
		}
		body.Exchange = exchangeBody(exErr.RawBody)
	}

	return Result{StatusCode: status, Body: body}
}

func reject(err error) Result {
	return Result{
		StatusCode: domain.StatusCode(err),
		Body:       rejectBody{Error: err.Error()},
	}
}

// publicMessage hides transport detail (URLs carry the signed query)
func publicMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrExchangeRejected,
		domain.ErrTransportFailure,
		domain.ErrPriceUnavailable,
		domain.ErrMissingCredentials,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

// exchangeBody embeds the exchange answer as JSON when it is JSON, else as text
func exchangeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}
