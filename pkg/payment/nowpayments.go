package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const nowPaymentsURL = "https://api.nowpayments.io"

type NOWPaymentsConfig struct {
	APIKey      string
	BaseURL     string
	CallbackURL string
	SuccessURL  string
	PayCurrency string
	Timeout     time.Duration
}

type NOWPaymentsProvider struct {
	cfg    NOWPaymentsConfig
	client *resty.Client
	now    func() time.Time
}

func NewNOWPaymentsProvider(cfg NOWPaymentsConfig) *NOWPaymentsProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = nowPaymentsURL
	}
	if cfg.PayCurrency == "" {
		cfg.PayCurrency = "usdttrc20"
	}
	return &NOWPaymentsProvider{cfg: cfg, client: newRestyClient(cfg.Timeout), now: time.Now}
}

func (p *NOWPaymentsProvider) Provider() Provider { return NOWPayments }

// CreateInvoice suffixes the intent with "_<unix>" because NOWPayments wants
// order ids to be unique per invoice. The suffix is stripped on callback.
func (p *NOWPaymentsProvider) CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error) {
	logInvoice(NOWPayments, req)
	body := map[string]interface{}{
		"price_amount":      req.AmountUSD.StringFixed(2),
		"price_currency":    "usd",
		"pay_currency":      p.cfg.PayCurrency,
		"order_id":          fmt.Sprintf("%s_%d", req.Intent.Encode(), p.now().Unix()),
		"order_description": req.Description,
		"ipn_callback_url":  p.cfg.CallbackURL,
		"success_url":       p.cfg.SuccessURL,
		"cancel_url":        p.cfg.SuccessURL,
	}

	var out struct {
		ID         json.RawMessage `json:"id"`
		InvoiceURL string          `json:"invoice_url"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", p.cfg.APIKey).
		SetBody(body).
		SetResult(&out).
		Post(strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/invoice")
	if err != nil {
		return "", unreachable(NOWPayments, err)
	}
	if resp.IsError() || out.InvoiceURL == "" {
		return "", rejected(NOWPayments, responseDetails(resp))
	}
	return out.InvoiceURL, nil
}

type nowPaymentsIPN struct {
	PaymentID     json.RawMessage `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PriceAmount   json.RawMessage `json:"price_amount"`
	PriceCurrency string          `json:"price_currency"`
	OrderID       string          `json:"order_id"`
}

// normalizeNOWPayments credits price_amount in price_currency, the amount the
// invoice was opened for, rather than pay_amount which is in the paid coin.
func normalizeNOWPayments(body []byte) (*Event, error) {
	var n nowPaymentsIPN
	if err := decodeBody(NOWPayments, body, &n); err != nil {
		return nil, err
	}
	if n.PaymentStatus != "finished" {
		return nil, nil
	}

	amount, err := parseAmount(NOWPayments, "price_amount", n.PriceAmount)
	if err != nil {
		return nil, err
	}
	id, err := parseExternalID(NOWPayments, "payment_id", n.PaymentID)
	if err != nil {
		return nil, err
	}
	intent := strings.TrimSpace(strings.SplitN(n.OrderID, "_", 2)[0])
	if intent == "" {
		return nil, malformed(NOWPayments, "order_id", "missing")
	}
	currency := strings.ToUpper(strings.TrimSpace(n.PriceCurrency))
	if currency == "" {
		return nil, malformed(NOWPayments, "price_currency", "missing")
	}
	return &Event{
		Provider:   NOWPayments,
		ExternalID: id,
		Amount:     amount,
		Currency:   currency,
		RawIntent:  intent,
	}, nil
}
