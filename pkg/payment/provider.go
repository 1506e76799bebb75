package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

var (
	ErrUnreachable = errors.New("payment provider unreachable")
	ErrRejected    = errors.New("payment provider rejected the invoice")
)

// ProviderError is returned by invoice creation. Kind is ErrUnreachable or ErrRejected.
type ProviderError struct {
	Provider Provider
	Kind     error
	Details  string
}

func (e *ProviderError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Provider, e.Kind, e.Details)
}

func (e *ProviderError) Unwrap() error { return e.Kind }

func unreachable(p Provider, err error) error {
	return &ProviderError{Provider: p, Kind: ErrUnreachable, Details: err.Error()}
}

func rejected(p Provider, details string) error {
	return &ProviderError{Provider: p, Kind: ErrRejected, Details: details}
}

// InvoiceRequest is what every adapter needs to open an invoice.
type InvoiceRequest struct {
	UserID      int64
	AmountUSD   decimal.Decimal
	Intent      Intent
	Description string
}

// Invoicer creates an invoice at one provider and returns the URL the user pays at.
type Invoicer interface {
	Provider() Provider
	CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error)
}

const defaultTimeout = 30 * time.Second

func newRestyClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return resty.New().SetTimeout(timeout)
}

func responseDetails(resp *resty.Response) string {
	if resp == nil {
		return ""
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func logInvoice(p Provider, req InvoiceRequest) {
	slog.Info("creating invoice",
		"component", "invoice",
		"provider", string(p),
		"user_id", req.UserID,
		"amount_usd", req.AmountUSD.StringFixed(2),
		"intent", req.Intent.Encode(),
	)
}
