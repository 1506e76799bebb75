package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ledgerpay/internal/domain"
	"ledgerpay/internal/repository"
	"ledgerpay/internal/service"
	"ledgerpay/pkg/payment"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	authSvc     *service.AuthService
	webhookSvc  *service.WebhookService
	paymentRepo *repository.PaymentRepository
	journalRepo *repository.WebhookEventRepository
	settingRepo *repository.SettingRepository
	revenue     *service.RevenueTracker
}

func NewAdminHandler(
	authSvc *service.AuthService,
	webhookSvc *service.WebhookService,
	paymentRepo *repository.PaymentRepository,
	journalRepo *repository.WebhookEventRepository,
	settingRepo *repository.SettingRepository,
	revenue *service.RevenueTracker,
) *AdminHandler {
	return &AdminHandler{
		authSvc:     authSvc,
		webhookSvc:  webhookSvc,
		paymentRepo: paymentRepo,
		journalRepo: journalRepo,
		settingRepo: settingRepo,
		revenue:     revenue,
	}
}

// Login handles POST /admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, token, err := h.authSvc.OperatorLogin(req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrNotOperator):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
		return
	case err != nil:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "access_token": token})
}

// ListPayments handles GET /admin/payments?method=&user_id=.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, limit := parsePagination(c)
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 64)
	list, total, err := h.paymentRepo.List(repository.PaymentFilter{
		Method: c.Query("method"),
		UserID: uint(userID),
	}, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// ListWebhookEvents handles GET /admin/webhook-events?provider=&outcome=.
func (h *AdminHandler) ListWebhookEvents(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.journalRepo.List(repository.WebhookEventFilter{
		Provider: c.Query("provider"),
		Outcome:  c.Query("outcome"),
	}, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load webhook events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// ReplayWebhookEvent handles POST /admin/webhook-events/:id/replay.
func (h *AdminHandler) ReplayWebhookEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.webhookSvc.Replay(c.Request.Context(), id)
	if errors.Is(err, service.ErrWebhookEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook event not found"})
		return
	}
	if res == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"id": id, "outcome": res.Outcome}
	if err != nil {
		resp["error"] = err.Error()
	}
	if res.Receipt != nil {
		resp["payment_id"] = res.Receipt.PaymentID
	}
	// Replays report the reconcile result rather than provider-facing codes.
	c.JSON(http.StatusOK, resp)
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	if h.revenue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "revenue tracking disabled"})
		return
	}
	providers := make([]string, 0, len(payment.Providers))
	for _, p := range payment.Providers {
		providers = append(providers, string(p))
	}
	totals, err := h.revenue.Totals(c.Request.Context(), time.Now(), providers)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, totals)
}

// GetSettings handles GET /admin/settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingRepo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

var numericSettings = map[string]int64{
	domain.SettingReferralBonusBPS: 10000,
	domain.SettingReferralMaxBonus: 1 << 31,
}

// UpdateSettings handles PUT /admin/settings.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		Settings map[string]string `json:"settings" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for k, v := range req.Settings {
		if max, ok := numericSettings[k]; ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 || n > max {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for " + k})
				return
			}
		}
	}
	for k, v := range req.Settings {
		if err := h.settingRepo.Set(k, v); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting: " + k})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
