package payment

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalizeSettled(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		body     string
		want     Event
	}{
		{
			name:     "cryptobot crypto asset",
			provider: CryptoBot,
			body: `{"update_type":"invoice_paid","update_payload":{"invoice_id":528890,"status":"paid",
				"amount":"25.00","asset":"usdt","currency_type":"crypto","payload":"42:bal:0"}}`,
			want: Event{Provider: CryptoBot, ExternalID: "528890", Amount: dec("25"), Currency: "USDT", RawIntent: "42:bal:0"},
		},
		{
			name:     "cryptobot fiat invoice",
			provider: CryptoBot,
			body: `{"update_type":"invoice_paid","update_payload":{"invoice_id":"77","status":"paid",
				"amount":"10.5","currency_type":"fiat","fiat":"USD","payload":"42:ord:7"}}`,
			want: Event{Provider: CryptoBot, ExternalID: "77", Amount: dec("10.5"), Currency: "USD", RawIntent: "42:ord:7"},
		},
		{
			name:     "nowpayments strips order suffix",
			provider: NOWPayments,
			body: `{"payment_id":5077125051,"payment_status":"finished","pay_amount":24.87,
				"price_amount":25,"price_currency":"usd","order_id":"42:bal:0_1700000000"}`,
			want: Event{Provider: NOWPayments, ExternalID: "5077125051", Amount: dec("25"), Currency: "USD", RawIntent: "42:bal:0"},
		},
		{
			name:     "crystalpay payment",
			provider: CrystalPay,
			body: `{"id":"123456789_abcdef","type":"purchase","state":"payed","amount":"25.00",
				"currency":"RUB","initial_currency":"USD","extra":"42:bal:0"}`,
			want: Event{Provider: CrystalPay, ExternalID: "123456789_abcdef", Amount: dec("25"), Currency: "USD", RawIntent: "42:bal:0"},
		},
		{
			name:     "crystalpay without currency",
			provider: CrystalPay,
			body:     `{"id":"c1","type":"payment","state":"payed","amount":3.2,"extra":"42"}`,
			want:     Event{Provider: CrystalPay, ExternalID: "c1", Amount: dec("3.2"), Currency: "USD", RawIntent: "42"},
		},
		{
			name:     "stripe checkout completed",
			provider: Stripe,
			body: `{"type":"checkout.session.completed","data":{"object":{"id":"cs_test_a1",
				"amount_total":2500,"currency":"usd","payment_status":"paid","client_reference_id":"42:bal:0"}}}`,
			want: Event{Provider: Stripe, ExternalID: "cs_test_a1", Amount: dec("25"), Currency: "USD", RawIntent: "42:bal:0"},
		},
		{
			name:     "stripe async success",
			provider: Stripe,
			body: `{"type":"checkout.session.async_payment_succeeded","data":{"object":{"id":"cs_2",
				"amount_total":999,"currency":"usd","payment_status":"paid","client_reference_id":"42:ord:7"}}}`,
			want: Event{Provider: Stripe, ExternalID: "cs_2", Amount: dec("9.99"), Currency: "USD", RawIntent: "42:ord:7"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize(tt.provider, []byte(tt.body))
			require.NoError(t, err)
			require.NotNil(t, ev)
			assert.Equal(t, tt.want.Provider, ev.Provider)
			assert.Equal(t, tt.want.ExternalID, ev.ExternalID)
			assert.True(t, tt.want.Amount.Equal(ev.Amount), "amount %s != %s", ev.Amount, tt.want.Amount)
			assert.Equal(t, tt.want.Currency, ev.Currency)
			assert.Equal(t, tt.want.RawIntent, ev.RawIntent)
		})
	}
}

func TestNormalizeNonTerminal(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		body     string
	}{
		{"cryptobot other update", CryptoBot, `{"update_type":"invoice_created","update_payload":{"status":"active"}}`},
		{"cryptobot not paid", CryptoBot, `{"update_type":"invoice_paid","update_payload":{"status":"expired"}}`},
		{"nowpayments waiting", NOWPayments, `{"payment_id":1,"payment_status":"waiting","order_id":"42:bal:0_1"}`},
		{"nowpayments partially paid", NOWPayments, `{"payment_id":1,"payment_status":"partially_paid"}`},
		{"crystalpay processing", CrystalPay, `{"id":"x","type":"purchase","state":"processing"}`},
		{"crystalpay withdraw", CrystalPay, `{"id":"x","type":"withdraw","state":"payed","amount":1}`},
		{"stripe other event", Stripe, `{"type":"payment_intent.created","data":{"object":{}}}`},
		{"stripe unpaid session", Stripe, `{"type":"checkout.session.completed","data":{"object":{"id":"cs","amount_total":100,"payment_status":"unpaid"}}}`},
		{"stripe session without payment status", Stripe, `{"type":"checkout.session.completed","data":{"object":{"id":"cs","amount_total":100,"client_reference_id":"42:bal:0"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize(tt.provider, []byte(tt.body))
			require.NoError(t, err)
			assert.Nil(t, ev)
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		body     string
		field    string
	}{
		{"not json", CryptoBot, `{`, "body"},
		{"cryptobot missing amount", CryptoBot, `{"update_type":"invoice_paid","update_payload":{"invoice_id":1,"status":"paid","payload":"42:bal:0"}}`, "update_payload.amount"},
		{"cryptobot zero amount", CryptoBot, `{"update_type":"invoice_paid","update_payload":{"invoice_id":1,"status":"paid","amount":"0","payload":"42:bal:0"}}`, "update_payload.amount"},
		{"cryptobot implausible amount", CryptoBot, `{"update_type":"invoice_paid","update_payload":{"invoice_id":1,"status":"paid","amount":"2000000000000","payload":"42:bal:0"}}`, "update_payload.amount"},
		{"cryptobot amount text", CryptoBot, `{"update_type":"invoice_paid","update_payload":{"invoice_id":1,"status":"paid","amount":"ten","payload":"42:bal:0"}}`, "update_payload.amount"},
		{"cryptobot missing payload", CryptoBot, `{"update_type":"invoice_paid","update_payload":{"invoice_id":1,"status":"paid","amount":"5"}}`, "update_payload.payload"},
		{"cryptobot missing id", CryptoBot, `{"update_type":"invoice_paid","update_payload":{"status":"paid","amount":"5","payload":"42:bal:0"}}`, "update_payload.invoice_id"},
		{"nowpayments negative", NOWPayments, `{"payment_id":1,"payment_status":"finished","price_amount":-1,"price_currency":"usd","order_id":"42:bal:0_1"}`, "price_amount"},
		{"nowpayments no order", NOWPayments, `{"payment_id":1,"payment_status":"finished","price_amount":1,"price_currency":"usd"}`, "order_id"},
		{"nowpayments no currency", NOWPayments, `{"payment_id":1,"payment_status":"finished","price_amount":1,"order_id":"42:bal:0_1"}`, "price_currency"},
		{"crystalpay null amount", CrystalPay, `{"id":"x","type":"purchase","state":"payed","amount":null,"extra":"42:bal:0"}`, "amount"},
		{"crystalpay missing extra", CrystalPay, `{"id":"x","type":"purchase","state":"payed","amount":1}`, "extra"},
		{"stripe fractional minor units", Stripe, `{"type":"checkout.session.completed","data":{"object":{"id":"cs","amount_total":12.5,"payment_status":"paid","client_reference_id":"42:bal:0"}}}`, "data.object.amount_total"},
		{"stripe implausible amount", Stripe, `{"type":"checkout.session.completed","data":{"object":{"id":"cs","amount_total":9000000000000000000,"payment_status":"paid","client_reference_id":"42:bal:0"}}}`, "data.object.amount_total"},
		{"stripe missing amount", Stripe, `{"type":"checkout.session.completed","data":{"object":{"id":"cs","payment_status":"paid","client_reference_id":"42:bal:0"}}}`, "data.object.amount_total"},
		{"stripe missing reference", Stripe, `{"type":"checkout.session.completed","data":{"object":{"id":"cs","amount_total":100,"payment_status":"paid"}}}`, "data.object.client_reference_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize(tt.provider, []byte(tt.body))
			require.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, ev)
			var ne *NormalizeError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.field, ne.Field)
			assert.Equal(t, tt.provider, ne.Provider)
		})
	}
}

func TestNormalizeUnknownProvider(t *testing.T) {
	_, err := Normalize(Provider("paypal"), []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" Stripe ")
	require.NoError(t, err)
	assert.Equal(t, Stripe, p)

	_, err = ParseProvider("mpesa")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"25.00", 2500},
		{"0.01", 1},
		{"10.005", 1001},
		{"10.004", 1000},
		{"19.995", 2000},
		{"3", 300},
		{"1e30", math.MaxInt64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(dec(tt.in)), tt.in)
	}
	assert.Equal(t, "25.00", FormatMinorUnits(2500))
	assert.True(t, dec("0.07").Equal(FromMinorUnits(7)))
}
