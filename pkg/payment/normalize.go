package payment

import (
	"encoding/json"
	"fmt"
)

// Normalize turns a provider callback body into an Event.
// It returns (nil, nil) for callbacks that do not report a settled payment,
// such as pending invoices or unrelated event types.
func Normalize(p Provider, body []byte) (*Event, error) {
	switch p {
	case CryptoBot:
		return normalizeCryptoBot(body)
	case NOWPayments:
		return normalizeNOWPayments(body)
	case CrystalPay:
		return normalizeCrystalPay(body)
	case Stripe:
		return normalizeStripe(body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
}

func decodeBody(p Provider, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return malformed(p, "body", err.Error())
	}
	return nil
}
