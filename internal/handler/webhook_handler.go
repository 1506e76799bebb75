package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"ledgerpay/internal/metrics"
	"ledgerpay/internal/service"
	"ledgerpay/pkg/payment"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	svc *service.WebhookService
}

func NewWebhookHandler(svc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// Handle serves POST /webhooks/:provider. The status code tells the provider
// whether to redeliver: only store failures ask for a retry.
func (h *WebhookHandler) Handle(c *gin.Context) {
	provider, err := payment.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.respond(c, provider, http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	res, err := h.svc.Ingest(c.Request.Context(), provider, body)
	if err != nil {
		status := WebhookStatus(err)
		resp := gin.H{"error": service.ErrorKind(err)}
		if status == http.StatusOK {
			resp = gin.H{"received": true, "outcome": res.Outcome}
		}
		h.respond(c, provider, status, resp)
		return
	}
	h.respond(c, provider, http.StatusOK, gin.H{"received": true, "outcome": res.Outcome})
}

func (h *WebhookHandler) respond(c *gin.Context, provider payment.Provider, status int, body gin.H) {
	metrics.WebhooksReceived.WithLabelValues(string(provider), strconv.Itoa(status)).Inc()
	c.JSON(status, body)
}

// WebhookStatus maps an ingestion error to the HTTP status returned to the
// provider. Invalid intents are acknowledged because redelivery cannot fix them.
func WebhookStatus(err error) int {
	switch {
	case err == nil, errors.Is(err, service.ErrInvalidIntent):
		return http.StatusOK
	case errors.Is(err, payment.ErrMalformed), errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderInvalid), errors.Is(err, service.ErrUnsupportedCurrency):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
