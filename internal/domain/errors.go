package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidPayload is returned when the inbound signal is malformed or incomplete. Never reaches the exchange.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnauthorized is returned when the webhook passphrase does not match.
	ErrUnauthorized = errors.New("invalid passphrase")

	// ErrPriceUnavailable is returned when the ticker lookup fails or yields no usable price.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrMissingCredentials is returned when the API key or secret is empty.
	ErrMissingCredentials = errors.New("missing exchange credentials")

	// ErrExchangeRejected is returned when the exchange answers with a non-success status or an unreadable body.
	ErrExchangeRejected = errors.New("exchange rejected order")

	// ErrTransportFailure is returned when the exchange cannot be reached or the call times out.
	ErrTransportFailure = errors.New("exchange unreachable")
)

// PayloadError names the offending field of an invalid signal
type PayloadError struct {
	Field  string // JSON field name, empty when the body itself is unreadable
	Reason string
}

func (e *PayloadError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *PayloadError) Unwrap() error {
	return ErrInvalidPayload
}

// NewPayloadError creates a PayloadError for a field
func NewPayloadError(field, reason string) *PayloadError {
	return &PayloadError{Field: field, Reason: reason}
}

// ExchangeError carries the exchange's own answer for a rejected order.
// Code and Message are filled when the body is a {code,msg} document.
type ExchangeError struct {
	StatusCode int
	RawBody    []byte
	Code       int64
	Message    string
}

func (e *ExchangeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("exchange error: status=%d code=%d msg=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("exchange error: status=%d body=%s", e.StatusCode, string(e.RawBody))
}

func (e *ExchangeError) Unwrap() error {
	return ErrExchangeRejected
}

// ConfigError represents a configuration error found at startup
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StatusCode maps a pipeline error to the HTTP status returned to the caller
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		// PriceUnavailable, MissingCredentials, ExchangeRejected, TransportFailure
		return http.StatusInternalServerError
	}
}
