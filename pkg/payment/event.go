package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Provider identifies an external payment provider. Its value is also the
// payment method stored on the ledger.
type Provider string

const (
	CryptoBot   Provider = "cryptobot"
	NOWPayments Provider = "nowpayments"
	CrystalPay  Provider = "crystalpay"
	Stripe      Provider = "stripe"
)

// Providers lists every supported provider.
var Providers = []Provider{CryptoBot, NOWPayments, CrystalPay, Stripe}

var ErrUnknownProvider = errors.New("unknown payment provider")

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Event is the provider-agnostic form of a settled-payment callback.
// The same Event may be produced more than once when a provider redelivers.
type Event struct {
	Provider   Provider
	ExternalID string
	Amount     decimal.Decimal // in Currency units
	Currency   string
	RawIntent  string
}

// ErrMalformed marks a callback that claims a settled payment but is missing
// or has unusable critical fields.
var ErrMalformed = errors.New("malformed webhook body")

type NormalizeError struct {
	Provider Provider
	Field    string
	Reason   string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("%s webhook: %s: %s", e.Provider, e.Field, e.Reason)
}

func (e *NormalizeError) Unwrap() error { return ErrMalformed }

func malformed(p Provider, field, reason string) error {
	return &NormalizeError{Provider: p, Field: field, Reason: reason}
}

// MaxAmount bounds any single amount accepted from a provider or a user.
// Anything above it is a broken payload, and staying far below the int64 cent
// range keeps all ledger arithmetic exact.
var MaxAmount = decimal.New(1, 12)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts an amount to cents, rounding half up. Amounts beyond
// the int64 cent range saturate instead of wrapping.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return saturatingInt64(amount.Shift(2).Round(0))
}

// saturatingInt64 clamps an integral decimal to the int64 range.
func saturatingInt64(d decimal.Decimal) int64 {
	if d.GreaterThan(maxCents) {
		return math.MaxInt64
	}
	if d.LessThan(maxCents.Neg()) {
		return -math.MaxInt64
	}
	return d.IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatMinorUnits renders cents as a two-decimal string, e.g. 2500 -> "25.00".
func FormatMinorUnits(cents int64) string {
	return FromMinorUnits(cents).StringFixed(2)
}

// parseAmount accepts a JSON number or a quoted decimal string and requires a
// strictly positive value.
func parseAmount(p Provider, field string, raw json.RawMessage) (decimal.Decimal, error) {
	s, ok := rawScalar(raw)
	if !ok || s == "" {
		return decimal.Zero, malformed(p, field, "missing")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, malformed(p, field, fmt.Sprintf("not a number: %q", s))
	}
	if !d.IsPositive() {
		return decimal.Zero, malformed(p, field, fmt.Sprintf("not positive: %s", d))
	}
	if d.GreaterThan(MaxAmount) {
		return decimal.Zero, malformed(p, field, fmt.Sprintf("implausibly large: %s", d))
	}
	return d, nil
}

// parseExternalID reads an identifier that providers send either as a number or a string.
func parseExternalID(p Provider, field string, raw json.RawMessage) (string, error) {
	s, ok := rawScalar(raw)
	if !ok || s == "" {
		return "", malformed(p, field, "missing")
	}
	return s, nil
}

func rawScalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", false
	}
	return string(raw), true
}
