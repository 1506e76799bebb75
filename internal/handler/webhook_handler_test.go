package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"ledgerpay/internal/service"
	"ledgerpay/pkg/payment"

	"github.com/stretchr/testify/assert"
)

func TestWebhookStatus(t *testing.T) {
	ev := &service.ReconcileError{Provider: payment.Stripe, ExternalID: "cs_1"}
	kind := func(k error) error {
		e := *ev
		e.Kind = k
		return &e
	}
	_, malformed := payment.Normalize(payment.Stripe, []byte(`{"type":"checkout.session.completed","data":{"object":{"payment_status":"paid"}}}`))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"invalid intent", kind(service.ErrInvalidIntent), http.StatusOK},
		{"malformed", malformed, http.StatusBadRequest},
		{"invalid amount", kind(service.ErrInvalidAmount), http.StatusBadRequest},
		{"order invalid", kind(service.ErrOrderInvalid), http.StatusConflict},
		{"unsupported currency", kind(service.ErrUnsupportedCurrency), http.StatusConflict},
		{"store failure", kind(service.ErrStoreFailure), http.StatusInternalServerError},
		{"wrapped store failure", fmt.Errorf("ingest: %w", kind(service.ErrStoreFailure)), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WebhookStatus(tt.err))
		})
	}
}
