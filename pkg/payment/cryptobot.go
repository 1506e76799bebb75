package payment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	cryptoBotMainnetURL = "https://pay.crypt.bot/api"
	cryptoBotTestnetURL = "https://testnet-pay.crypt.bot/api"
)

type CryptoBotConfig struct {
	Token   string
	Testnet bool
	// BaseURL overrides the mainnet/testnet endpoint when set.
	BaseURL string
	Asset   string
	Timeout time.Duration
}

// CryptoBotProvider opens invoices through the Crypto Pay API.
type CryptoBotProvider struct {
	cfg    CryptoBotConfig
	client *resty.Client
}

func NewCryptoBotProvider(cfg CryptoBotConfig) *CryptoBotProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = cryptoBotMainnetURL
		if cfg.Testnet {
			cfg.BaseURL = cryptoBotTestnetURL
		}
	}
	if cfg.Asset == "" {
		cfg.Asset = "USDT"
	}
	return &CryptoBotProvider{cfg: cfg, client: newRestyClient(cfg.Timeout)}
}

func (p *CryptoBotProvider) Provider() Provider { return CryptoBot }

type cryptoBotCreateResp struct {
	OK     bool `json:"ok"`
	Result *struct {
		InvoiceID     int64  `json:"invoice_id"`
		BotInvoiceURL string `json:"bot_invoice_url"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

func (p *CryptoBotProvider) CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error) {
	logInvoice(CryptoBot, req)
	body := map[string]interface{}{
		"asset":           p.cfg.Asset,
		"amount":          req.AmountUSD.StringFixed(2),
		"description":     req.Description,
		"payload":         req.Intent.Encode(),
		"allow_anonymous": false,
		"allow_comments":  false,
	}

	var out cryptoBotCreateResp
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Crypto-Pay-API-Token", p.cfg.Token).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(strings.TrimRight(p.cfg.BaseURL, "/") + "/createInvoice")
	if err != nil {
		return "", unreachable(CryptoBot, err)
	}
	if !out.OK || out.Result == nil || out.Result.BotInvoiceURL == "" {
		return "", rejected(CryptoBot, responseDetails(resp))
	}
	return out.Result.BotInvoiceURL, nil
}

type cryptoBotUpdate struct {
	UpdateType    string `json:"update_type"`
	UpdatePayload struct {
		InvoiceID    json.RawMessage `json:"invoice_id"`
		Status       string          `json:"status"`
		Amount       json.RawMessage `json:"amount"`
		Asset        string          `json:"asset"`
		CurrencyType string          `json:"currency_type"`
		Fiat         string          `json:"fiat"`
		Payload      string          `json:"payload"`
	} `json:"update_payload"`
}

func normalizeCryptoBot(body []byte) (*Event, error) {
	var u cryptoBotUpdate
	if err := decodeBody(CryptoBot, body, &u); err != nil {
		return nil, err
	}
	if u.UpdateType != "invoice_paid" || u.UpdatePayload.Status != "paid" {
		return nil, nil
	}
	inv := u.UpdatePayload

	amount, err := parseAmount(CryptoBot, "update_payload.amount", inv.Amount)
	if err != nil {
		return nil, err
	}
	id, err := parseExternalID(CryptoBot, "update_payload.invoice_id", inv.InvoiceID)
	if err != nil {
		return nil, err
	}
	intent := strings.TrimSpace(inv.Payload)
	if intent == "" {
		return nil, malformed(CryptoBot, "update_payload.payload", "missing")
	}

	currency := inv.Asset
	if inv.CurrencyType == "fiat" {
		currency = inv.Fiat
	}
	if currency == "" {
		currency = "USDT"
	}
	return &Event{
		Provider:   CryptoBot,
		ExternalID: id,
		Amount:     amount,
		Currency:   strings.ToUpper(currency),
		RawIntent:  intent,
	}, nil
}
