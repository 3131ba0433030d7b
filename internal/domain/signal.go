package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// AmountUnit tells how a signal amount is denominated
type AmountUnit string

const (
	UnitUnspecified AmountUnit = ""
	UnitBase        AmountUnit = "base"  // base asset quantity, e.g. BTC
	UnitQuote       AmountUnit = "quote" // notional in quote currency, e.g. USDT
)

// SignalEvent is one parsed trade instruction from the alerting tool.
// It is immutable once returned by ParseSignal.
type SignalEvent struct {
	Symbol     string
	Action     string
	Amount     decimal.Decimal
	Unit       AmountUnit
	Passphrase string
}

// signalPayload is the wire shape of POST /webhook.
// Amounts stay raw so a bad value can be reported against its field.
type signalPayload struct {
	Symbol     string          `json:"symbol" validate:"required,alphanum,max=32"`
	Action     string          `json:"action" validate:"required"`
	Amount     json.RawMessage `json:"amount"`
	Quantity   json.RawMessage `json:"quantity"`
	Unit       string          `json:"unit" validate:"omitempty,oneof=base quote"`
	Passphrase string          `json:"passphrase"`
}

// Bounds on a parsed amount or quantity
const (
	maxAmountScale  = 18
	maxAmountDigits = 32
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseSignal decodes and validates a webhook body.
// Every failure wraps ErrInvalidPayload.
func ParseSignal(raw []byte) (SignalEvent, error) {
	var p signalPayload
	if len(bytes.TrimSpace(raw)) == 0 {
		return SignalEvent{}, NewPayloadError("", "empty request body")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return SignalEvent{}, NewPayloadError(typeErr.Field, "must be a "+typeErr.Type.String())
		}
		return SignalEvent{}, NewPayloadError("", "body must be a JSON object")
	}

	p.Symbol = strings.TrimSpace(p.Symbol)
	p.Action = strings.TrimSpace(p.Action)
	p.Unit = strings.ToLower(strings.TrimSpace(p.Unit))

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return SignalEvent{}, fieldError(verrs[0])
		}
		return SignalEvent{}, NewPayloadError("", err.Error())
	}

	if _, err := ParseSide(p.Action); err != nil {
		return SignalEvent{}, err
	}

	amount, hasAmount, err := parsePositive("amount", p.Amount)
	if err != nil {
		return SignalEvent{}, err
	}
	quantity, hasQuantity, err := parsePositive("quantity", p.Quantity)
	if err != nil {
		return SignalEvent{}, err
	}

	ev := SignalEvent{
		Symbol:     strings.ToUpper(p.Symbol),
		Action:     p.Action,
		Unit:       AmountUnit(p.Unit),
		Passphrase: p.Passphrase,
	}

	switch {
	case hasAmount && hasQuantity:
		return SignalEvent{}, NewPayloadError("quantity", "cannot be combined with amount")
	case hasQuantity:
		ev.Amount = quantity
		ev.Unit = UnitBase
	case hasAmount:
		ev.Amount = amount
	default:
		return SignalEvent{}, NewPayloadError("amount", "is required")
	}

	return ev, nil
}

// ParseSide classifies an action case-insensitively.
// Anything other than long/buy/short/sell is rejected rather than defaulted.
func ParseSide(action string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "long", "buy":
		return SideBuy, nil
	case "short", "sell":
		return SideSell, nil
	case "":
		return "", NewPayloadError("action", "is required")
	default:
		return "", NewPayloadError("action", fmt.Sprintf("unsupported value %q, expected long, short, buy or sell", action))
	}
}

// parsePositive reads an optional decimal field; null and absent are the same.
func parsePositive(field string, raw json.RawMessage) (decimal.Decimal, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, false, nil
	}

	var d decimal.Decimal
	if err := d.UnmarshalJSON(trimmed); err != nil {
		return decimal.Zero, false, NewPayloadError(field, "must be a number")
	}
	if !d.IsPositive() {
		return decimal.Zero, false, NewPayloadError(field, "must be greater than zero")
	}
	// Exponent notation keeps huge values tiny on the wire; String() would expand them.
	if d.Exponent() < -maxAmountScale || d.Exponent() > maxAmountScale || d.NumDigits() > maxAmountDigits {
		return decimal.Zero, false, NewPayloadError(field, "is out of range")
	}
	return d, true, nil
}

func fieldError(fe validator.FieldError) *PayloadError {
	switch fe.Tag() {
	case "required":
		return NewPayloadError(fe.Field(), "is required")
	case "alphanum":
		return NewPayloadError(fe.Field(), "must be alphanumeric")
	case "max":
		return NewPayloadError(fe.Field(), "must be at most "+fe.Param()+" characters")
	case "oneof":
		return NewPayloadError(fe.Field(), "must be one of: "+fe.Param())
	default:
		return NewPayloadError(fe.Field(), "failed "+fe.Tag()+" check")
	}
}
