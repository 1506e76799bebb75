package app

import (
	"context"
	"errors"
	"log/slog"

	"ledgerpay/config"
	"ledgerpay/internal/repository"
	"ledgerpay/internal/service"
	"ledgerpay/internal/ws"

	"gorm.io/gorm"
)

// App holds the wired repositories and services shared by the HTTP server
// and the CLI commands.
type App struct {
	Cfg *config.Config
	DB  *gorm.DB

	Users    *repository.UserRepository
	Payments *repository.PaymentRepository
	Wallets  *repository.WalletRepository
	Journal  *repository.WebhookEventRepository
	Settings *repository.SettingRepository

	Hub           *ws.Hub
	Dispatcher    *service.Dispatcher
	Revenue       *service.RevenueTracker
	Notifications *service.NotificationService
	Referrals     *service.ReferralService
	Reconciler    *service.Reconciler
	Webhooks      *service.WebhookService
	Invoices      *service.InvoiceService
	Auth          *service.AuthService
}

func New(ctx context.Context, cfg *config.Config, db *gorm.DB) *App {
	a := &App{
		Cfg:      cfg,
		DB:       db,
		Users:    repository.NewUserRepository(db),
		Payments: repository.NewPaymentRepository(db),
		Wallets:  repository.NewWalletRepository(db),
		Journal:  repository.NewWebhookEventRepository(db),
		Settings: repository.NewSettingRepository(db),
		Hub:      ws.NewHub(),
	}

	fcm := service.NewFCMService(ctx, cfg.Firebase.CredentialsFile)
	if fcm != nil {
		slog.Info("push notifications enabled", "component", "fcm")
	} else if cfg.Firebase.CredentialsFile != "" {
		slog.Warn("push notifications disabled: failed to init, check credentials file", "component", "fcm")
	}
	a.Notifications = service.NewNotificationService(repository.NewNotificationRepository(db), a.Users, fcm, a.Hub)

	sinks := []service.Sink{a.Notifications}
	if a.Revenue = service.NewRevenueTracker(cfg.Redis); a.Revenue != nil {
		sinks = append(sinks, a.Revenue)
	}
	a.Dispatcher = service.NewDispatcher(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, sinks...)

	a.Referrals = service.NewReferralService(repository.NewReferralRepository(db), a.Settings, cfg.Referral)
	a.Reconciler = service.NewReconciler(repository.NewLedgerStore(db), a.Referrals, a.Dispatcher)
	a.Webhooks = service.NewWebhookService(a.Journal, a.Reconciler)
	a.Invoices = service.NewInvoiceService(repository.NewOrderRepository(db), cfg.Providers.Invoicers()...)
	a.Auth = service.NewAuthService(&cfg.JWT, a.Users)

	if len(a.Invoices.Providers()) == 0 {
		slog.Warn("no payment provider credentials configured; invoice creation disabled", "component", "invoice")
	}
	return a
}

// Close drains pending side effects, then releases external clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Dispatcher.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.Revenue != nil {
		if err := a.Revenue.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
