package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, status int, resp string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func topupRequest() InvoiceRequest {
	return InvoiceRequest{UserID: 42, AmountUSD: dec("25"), Intent: Topup(42), Description: "Top-up"}
}

func TestCryptoBotCreateInvoice(t *testing.T) {
	var got map[string]interface{}
	srv := jsonServer(t, http.StatusOK, `{"ok":true,"result":{"invoice_id":1,"bot_invoice_url":"https://t.me/CryptoBot?start=IV1"}}`,
		func(r *http.Request) {
			assert.Equal(t, "/createInvoice", r.URL.Path)
			assert.Equal(t, "tok", r.Header.Get("Crypto-Pay-API-Token"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		})

	p := NewCryptoBotProvider(CryptoBotConfig{Token: "tok", BaseURL: srv.URL})
	url, err := p.CreateInvoice(context.Background(), topupRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/CryptoBot?start=IV1", url)
	assert.Equal(t, "42:bal:0", got["payload"])
	assert.Equal(t, "25.00", got["amount"])
	assert.Equal(t, "USDT", got["asset"])
}

func TestCryptoBotTestnetURL(t *testing.T) {
	p := NewCryptoBotProvider(CryptoBotConfig{Testnet: true})
	assert.Equal(t, cryptoBotTestnetURL, p.cfg.BaseURL)
	assert.Equal(t, CryptoBot, p.Provider())
}

func TestCryptoBotRejected(t *testing.T) {
	srv := jsonServer(t, http.StatusBadRequest, `{"ok":false,"error":{"code":400,"name":"AMOUNT_TOO_SMALL"}}`, nil)
	p := NewCryptoBotProvider(CryptoBotConfig{Token: "tok", BaseURL: srv.URL})

	_, err := p.CreateInvoice(context.Background(), topupRequest())
	require.ErrorIs(t, err, ErrRejected)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CryptoBot, pe.Provider)
	assert.Contains(t, pe.Details, "AMOUNT_TOO_SMALL")
}

func TestNOWPaymentsCreateInvoice(t *testing.T) {
	var got map[string]interface{}
	srv := jsonServer(t, http.StatusOK, `{"id":"4522625843","invoice_url":"https://nowpayments.io/payment/?iid=4522625843"}`,
		func(r *http.Request) {
			assert.Equal(t, "/v1/invoice", r.URL.Path)
			assert.Equal(t, "key", r.Header.Get("x-api-key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		})

	p := NewNOWPaymentsProvider(NOWPaymentsConfig{APIKey: "key", BaseURL: srv.URL})
	p.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := p.CreateInvoice(context.Background(), InvoiceRequest{UserID: 42, AmountUSD: dec("9.99"), Intent: OrderPurchase(42, 7)})
	require.NoError(t, err)
	assert.Equal(t, "https://nowpayments.io/payment/?iid=4522625843", url)
	assert.Equal(t, "42:ord:7_1700000000", got["order_id"])
	assert.Equal(t, "usd", got["price_currency"])

	// The suffixed order id must normalize back to the original intent.
	ev, err := Normalize(NOWPayments, []byte(`{"payment_id":1,"payment_status":"finished","price_amount":9.99,"price_currency":"usd","order_id":"42:ord:7_1700000000"}`))
	require.NoError(t, err)
	intent, err := DecodeIntent(ev.RawIntent)
	require.NoError(t, err)
	assert.Equal(t, OrderPurchase(42, 7), intent)
}

func TestNOWPaymentsRejected(t *testing.T) {
	srv := jsonServer(t, http.StatusForbidden, `{"status":false,"statusCode":403,"message":"Invalid api key"}`, nil)
	p := NewNOWPaymentsProvider(NOWPaymentsConfig{APIKey: "bad", BaseURL: srv.URL})

	_, err := p.CreateInvoice(context.Background(), topupRequest())
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "403")
}

func TestCrystalPayCreateInvoice(t *testing.T) {
	t.Run("url at top level", func(t *testing.T) {
		srv := jsonServer(t, http.StatusOK, `{"error":false,"errors":[],"id":"inv1","url":"https://pay.crystalpay.io/?i=inv1"}`,
			func(r *http.Request) {
				var got map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, "/v2/invoice/create/", r.URL.Path)
				assert.Equal(t, "login", got["auth_login"])
				assert.Equal(t, "42:bal:0", got["extra"])
				assert.Equal(t, "USD", got["amount_currency"])
			})
		p := NewCrystalPayProvider(CrystalPayConfig{Login: "login", Secret: "s", BaseURL: srv.URL})
		url, err := p.CreateInvoice(context.Background(), topupRequest())
		require.NoError(t, err)
		assert.Equal(t, "https://pay.crystalpay.io/?i=inv1", url)
	})

	t.Run("url nested in data", func(t *testing.T) {
		srv := jsonServer(t, http.StatusOK, `{"error":false,"data":{"id":"inv2","url":"https://pay.crystalpay.io/?i=inv2"}}`, nil)
		p := NewCrystalPayProvider(CrystalPayConfig{BaseURL: srv.URL})
		url, err := p.CreateInvoice(context.Background(), topupRequest())
		require.NoError(t, err)
		assert.Equal(t, "https://pay.crystalpay.io/?i=inv2", url)
	})

	t.Run("error flag", func(t *testing.T) {
		srv := jsonServer(t, http.StatusOK, `{"error":true,"errors":["Auth error"]}`, nil)
		p := NewCrystalPayProvider(CrystalPayConfig{BaseURL: srv.URL})
		_, err := p.CreateInvoice(context.Background(), topupRequest())
		require.ErrorIs(t, err, ErrRejected)
	})
}

func TestStripeCreateInvoice(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`,
		func(r *http.Request) {
			assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
			user, _, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "sk_test", user)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "42:bal:0", r.PostForm.Get("client_reference_id"))
			assert.Equal(t, "1001", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		})

	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL, SuccessURL: "https://example.com"})
	url, err := p.CreateInvoice(context.Background(), InvoiceRequest{UserID: 42, AmountUSD: dec("10.005"), Intent: Topup(42)})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", url)
}

func TestStripeRejected(t *testing.T) {
	srv := jsonServer(t, http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`, nil)
	p := NewStripeProvider(StripeConfig{SecretKey: "bad", BaseURL: srv.URL})

	_, err := p.CreateInvoice(context.Background(), topupRequest())
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid API Key provided")
}

func TestProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	invoicers := []Invoicer{
		NewCryptoBotProvider(CryptoBotConfig{BaseURL: base, Timeout: time.Second}),
		NewNOWPaymentsProvider(NOWPaymentsConfig{BaseURL: base, Timeout: time.Second}),
		NewCrystalPayProvider(CrystalPayConfig{BaseURL: base, Timeout: time.Second}),
		NewStripeProvider(StripeConfig{BaseURL: base, Timeout: time.Second}),
	}
	for _, inv := range invoicers {
		t.Run(string(inv.Provider()), func(t *testing.T) {
			_, err := inv.CreateInvoice(context.Background(), topupRequest())
			require.ErrorIs(t, err, ErrUnreachable)
			assert.NotErrorIs(t, err, ErrRejected)
		})
	}
}
