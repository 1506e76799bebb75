package router

import (
	"net/http"
	"time"

	"ledgerpay/internal/app"
	"ledgerpay/internal/domain"
	"ledgerpay/internal/handler"
	"ledgerpay/internal/middleware"
	"ledgerpay/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func Setup(a *app.App) (*gin.Engine, func()) {
	cfg := a.Cfg
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, time.Minute)
	limited := middleware.RateLimit(limiter)

	webhookHandler := handler.NewWebhookHandler(a.Webhooks)
	paymentHandler := handler.NewPaymentHandler(a.Invoices, a.Payments, a.Wallets)
	notificationHandler := handler.NewNotificationHandler(a.Notifications)
	referralHandler := handler.NewReferralHandler(a.Referrals)
	adminHandler := handler.NewAdminHandler(a.Auth, a.Webhooks, a.Payments, a.Journal, a.Settings, a.Revenue)

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := a.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/notifications", ws.UpgradeNotificationsWS(&cfg.JWT, a.Hub))

	api := r.Group("/api/v1")

	// Providers retry on their own schedule; they are not rate limited.
	api.POST("/webhooks/:provider", middleware.WebhookSignature(cfg.Webhook.Secret), webhookHandler.Handle)

	public := api.Group("", limited)
	public.GET("/referrals/leaderboard", referralHandler.Leaderboard)
	public.GET("/payments/providers", paymentHandler.Providers)
	public.POST("/admin/login", adminHandler.Login)

	authed := api.Group("", limited, middleware.AuthRequired(&cfg.JWT))
	authed.POST("/payments/:provider/invoice", paymentHandler.CreateInvoice)
	authed.GET("/me/payments", paymentHandler.MyPayments)
	authed.GET("/me/balance", paymentHandler.Balance)
	authed.GET("/me/notifications", notificationHandler.List)
	authed.PATCH("/me/notifications/:id/read", notificationHandler.MarkRead)

	admin := api.Group("/admin", limited, middleware.AuthRequired(&cfg.JWT), middleware.RequireRole(domain.RoleAdmin))
	admin.GET("/payments", adminHandler.ListPayments)
	admin.GET("/webhook-events", adminHandler.ListWebhookEvents)
	admin.POST("/webhook-events/:id/replay", adminHandler.ReplayWebhookEvent)
	admin.GET("/stats", adminHandler.Stats)
	admin.GET("/settings", adminHandler.GetSettings)
	admin.PUT("/settings", adminHandler.UpdateSettings)

	return r, limiter.Stop
}
