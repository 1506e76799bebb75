package handler

import (
	"errors"
	"net/http"
	"strconv"

	"ledgerpay/internal/middleware"
	"ledgerpay/internal/repository"
	"ledgerpay/internal/service"
	"ledgerpay/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	invoiceSvc  *service.InvoiceService
	paymentRepo *repository.PaymentRepository
	walletRepo  *repository.WalletRepository
}

func NewPaymentHandler(invoiceSvc *service.InvoiceService, paymentRepo *repository.PaymentRepository, walletRepo *repository.WalletRepository) *PaymentHandler {
	return &PaymentHandler{invoiceSvc: invoiceSvc, paymentRepo: paymentRepo, walletRepo: walletRepo}
}

// Providers handles GET /payments/providers.
func (h *PaymentHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.invoiceSvc.Providers()})
}

// CreateInvoice handles POST /payments/:provider/invoice.
func (h *PaymentHandler) CreateInvoice(c *gin.Context) {
	provider, err := payment.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	var req struct {
		AmountUSD decimal.Decimal `json:"amount_usd"`
		OrderID   uint            `json:"order_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	url, err := h.invoiceSvc.CreateInvoice(c.Request.Context(), provider, middleware.GetUserID(c), req.AmountUSD, req.OrderID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"url": url})
	case errors.Is(err, service.ErrProviderDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not available"})
	case errors.Is(err, service.ErrInvoiceAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotPayable):
		c.JSON(http.StatusConflict, gin.H{"error": "order cannot be paid"})
	case errors.Is(err, payment.ErrUnreachable), errors.Is(err, payment.ErrRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment initiation failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment initiation failed"})
	}
}

// MyPayments handles GET /me/payments.
func (h *PaymentHandler) MyPayments(c *gin.Context) {
	page, limit := parsePagination(c)
	list, err := h.paymentRepo.ListByUserID(middleware.GetUserID(c), limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "page": page, "limit": limit})
}

// Balance handles GET /me/balance with the latest balance history.
func (h *PaymentHandler) Balance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	cents, err := h.walletRepo.BalanceCents(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance"})
		return
	}
	history, err := h.walletRepo.ListTransactions(userID, 20, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance_cents": cents,
		"balance":       payment.FormatMinorUnits(cents),
		"currency":      "USD",
		"transactions":  history,
	})
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
