package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const crystalPayURL = "https://api.crystalpay.io"

type CrystalPayConfig struct {
	Login       string
	Secret      string
	BaseURL     string
	CallbackURL string
	RedirectURL string
	Lifetime    int // minutes
	Timeout     time.Duration
}

type CrystalPayProvider struct {
	cfg    CrystalPayConfig
	client *resty.Client
}

func NewCrystalPayProvider(cfg CrystalPayConfig) *CrystalPayProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = crystalPayURL
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 60
	}
	return &CrystalPayProvider{cfg: cfg, client: newRestyClient(cfg.Timeout)}
}

func (p *CrystalPayProvider) Provider() Provider { return CrystalPay }

type crystalPayCreateResp struct {
	Error  bool            `json:"error"`
	Errors json.RawMessage `json:"errors"`
	ID     string          `json:"id"`
	URL    string          `json:"url"`
	Data   *struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
}

func (p *CrystalPayProvider) CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error) {
	logInvoice(CrystalPay, req)
	desc := req.Description
	if desc == "" {
		desc = fmt.Sprintf("User %d", req.UserID)
	}
	body := map[string]interface{}{
		"auth_login":      p.cfg.Login,
		"auth_secret":     p.cfg.Secret,
		"amount":          req.AmountUSD.StringFixed(2),
		"amount_currency": "USD",
		"type":            "purchase",
		"lifetime":        p.cfg.Lifetime,
		"description":     desc,
		"redirect_url":    p.cfg.RedirectURL,
		"callback_url":    p.cfg.CallbackURL,
		"extra":           req.Intent.Encode(),
	}

	var out crystalPayCreateResp
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(strings.TrimRight(p.cfg.BaseURL, "/") + "/v2/invoice/create/")
	if err != nil {
		return "", unreachable(CrystalPay, err)
	}
	if resp.IsError() || out.Error {
		return "", rejected(CrystalPay, responseDetails(resp))
	}
	url := out.URL
	if url == "" && out.Data != nil {
		url = out.Data.URL
	}
	if url == "" {
		return "", rejected(CrystalPay, responseDetails(resp))
	}
	return url, nil
}

type crystalPayCallback struct {
	ID              json.RawMessage `json:"id"`
	Type            string          `json:"type"`
	State           string          `json:"state"`
	Amount          json.RawMessage `json:"amount"`
	Currency        string          `json:"currency"`
	InitialCurrency string          `json:"initial_currency"`
	Extra           string          `json:"extra"`
}

func normalizeCrystalPay(body []byte) (*Event, error) {
	var c crystalPayCallback
	if err := decodeBody(CrystalPay, body, &c); err != nil {
		return nil, err
	}
	if c.State != "payed" || (c.Type != "payment" && c.Type != "purchase") {
		return nil, nil
	}

	amount, err := parseAmount(CrystalPay, "amount", c.Amount)
	if err != nil {
		return nil, err
	}
	id, err := parseExternalID(CrystalPay, "id", c.ID)
	if err != nil {
		return nil, err
	}
	intent := strings.TrimSpace(c.Extra)
	if intent == "" {
		return nil, malformed(CrystalPay, "extra", "missing")
	}

	currency := c.InitialCurrency
	if currency == "" {
		currency = c.Currency
	}
	if currency == "" {
		currency = "USD"
	}
	return &Event{
		Provider:   CrystalPay,
		ExternalID: id,
		Amount:     amount,
		Currency:   strings.ToUpper(currency),
		RawIntent:  intent,
	}, nil
}
