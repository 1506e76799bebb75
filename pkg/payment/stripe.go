package payment

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const stripeURL = "https://api.stripe.com"

type StripeConfig struct {
	SecretKey   string
	BaseURL     string
	SuccessURL  string
	CancelURL   string
	ProductName string
	Timeout     time.Duration
}

type StripeProvider struct {
	cfg    StripeConfig
	client *resty.Client
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = stripeURL
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Balance Top-up"
	}
	if cfg.CancelURL == "" {
		cfg.CancelURL = cfg.SuccessURL
	}
	return &StripeProvider{cfg: cfg, client: newRestyClient(cfg.Timeout)}
}

func (p *StripeProvider) Provider() Provider { return Stripe }

type stripeSessionResp struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *StripeProvider) CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error) {
	logInvoice(Stripe, req)
	name := p.cfg.ProductName
	if req.Description != "" {
		name = req.Description
	}
	form := map[string]string{
		"mode":                                          "payment",
		"success_url":                                   p.cfg.SuccessURL,
		"cancel_url":                                    p.cfg.CancelURL,
		"client_reference_id":                           req.Intent.Encode(),
		"line_items[0][price_data][currency]":           "usd",
		"line_items[0][price_data][product_data][name]": name,
		"line_items[0][price_data][unit_amount]":        strconv.FormatInt(ToMinorUnits(req.AmountUSD), 10),
		"line_items[0][quantity]":                       "1",
	}

	var out stripeSessionResp
	resp, err := p.client.R().
		SetContext(ctx).
		SetBasicAuth(p.cfg.SecretKey, "").
		SetFormData(form).
		SetResult(&out).
		SetError(&out).
		Post(strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/checkout/sessions")
	if err != nil {
		return "", unreachable(Stripe, err)
	}
	if out.Error != nil {
		return "", rejected(Stripe, out.Error.Type+": "+out.Error.Message)
	}
	if resp.IsError() || out.URL == "" {
		return "", rejected(Stripe, responseDetails(resp))
	}
	return out.URL, nil
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                json.RawMessage `json:"id"`
			AmountTotal       json.RawMessage `json:"amount_total"`
			Currency          string          `json:"currency"`
			PaymentStatus     string          `json:"payment_status"`
			ClientReferenceID string          `json:"client_reference_id"`
		} `json:"object"`
	} `json:"data"`
}

func isStripePaidEvent(t string) bool {
	return t == "checkout.session.completed" || t == "checkout.session.async_payment_succeeded"
}

// normalizeStripe reads amount_total, which Stripe reports in minor units.
// Only payment_status "paid" is terminal; processing and unpaid sessions are not.
func normalizeStripe(body []byte) (*Event, error) {
	var e stripeEvent
	if err := decodeBody(Stripe, body, &e); err != nil {
		return nil, err
	}
	if !isStripePaidEvent(e.Type) {
		return nil, nil
	}
	s := e.Data.Object
	if s.PaymentStatus != "paid" {
		return nil, nil
	}

	raw, ok := rawScalar(s.AmountTotal)
	if !ok || raw == "" {
		return nil, malformed(Stripe, "data.object.amount_total", "missing")
	}
	cents, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, malformed(Stripe, "data.object.amount_total", "not an integer: "+raw)
	}
	if cents <= 0 {
		return nil, malformed(Stripe, "data.object.amount_total", "not positive: "+raw)
	}
	if FromMinorUnits(cents).GreaterThan(MaxAmount) {
		return nil, malformed(Stripe, "data.object.amount_total", "implausibly large: "+raw)
	}
	id, err := parseExternalID(Stripe, "data.object.id", s.ID)
	if err != nil {
		return nil, err
	}
	intent := strings.TrimSpace(s.ClientReferenceID)
	if intent == "" {
		return nil, malformed(Stripe, "data.object.client_reference_id", "missing")
	}
	currency := strings.ToUpper(strings.TrimSpace(s.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Event{
		Provider:   Stripe,
		ExternalID: id,
		Amount:     decimal.New(cents, -2),
		Currency:   currency,
		RawIntent:  intent,
	}, nil
}
