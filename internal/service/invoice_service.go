package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"ledgerpay/internal/domain"
	"ledgerpay/internal/metrics"
	"ledgerpay/internal/repository"
	"ledgerpay/pkg/payment"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var (
	ErrProviderDisabled = errors.New("payment provider not configured")
	ErrInvoiceAmount    = errors.New("invoice amount must be between one cent and the maximum amount")
	ErrOrderNotPayable  = errors.New("order cannot be paid")
)

// InvoiceService opens invoices at the configured providers with the intent
// embedded, so the later callback can be reconciled.
type InvoiceService struct {
	invoicers map[payment.Provider]payment.Invoicer
	orderRepo *repository.OrderRepository
	tracer    trace.Tracer
}

func NewInvoiceService(orderRepo *repository.OrderRepository, invoicers ...payment.Invoicer) *InvoiceService {
	m := make(map[payment.Provider]payment.Invoicer, len(invoicers))
	for _, inv := range invoicers {
		m[inv.Provider()] = inv
	}
	return &InvoiceService{
		invoicers: m,
		orderRepo: orderRepo,
		tracer:    otel.Tracer("ledgerpay/service"),
	}
}

// Providers lists enabled providers in a stable order.
func (s *InvoiceService) Providers() []payment.Provider {
	out := make([]payment.Provider, 0, len(s.invoicers))
	for p := range s.invoicers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CreateInvoice returns the URL the user pays at. With orderID set the
// amount is the order price and amountUSD is ignored.
func (s *InvoiceService) CreateInvoice(ctx context.Context, provider payment.Provider, userID uint, amountUSD decimal.Decimal, orderID uint) (string, error) {
	ctx, span := s.tracer.Start(ctx, "invoice.create", trace.WithAttributes(
		attribute.String("payment.provider", string(provider)),
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()

	url, err := s.create(ctx, provider, userID, amountUSD, orderID)
	result := "ok"
	if err != nil {
		result = invoiceResult(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		slog.Warn("invoice creation failed", "component", "invoice", "provider", string(provider), "user_id", userID, "error", err)
	}
	metrics.InvoicesCreated.WithLabelValues(string(provider), result).Inc()
	return url, err
}

func (s *InvoiceService) create(ctx context.Context, provider payment.Provider, userID uint, amountUSD decimal.Decimal, orderID uint) (string, error) {
	inv, ok := s.invoicers[provider]
	if !ok {
		return "", fmt.Errorf("%s: %w", provider, ErrProviderDisabled)
	}

	req := payment.InvoiceRequest{UserID: int64(userID)}
	if orderID != 0 {
		order, err := s.orderRepo.GetByID(orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", fmt.Errorf("order %d not found: %w", orderID, ErrOrderNotPayable)
			}
			return "", err
		}
		if order.UserID != userID || order.Status != domain.OrderStatusPending {
			return "", fmt.Errorf("order %d: %w", orderID, ErrOrderNotPayable)
		}
		req.AmountUSD = payment.FromMinorUnits(order.PriceCents)
		req.Intent = payment.OrderPurchase(int64(userID), int64(orderID))
		req.Description = order.Title
	} else {
		if payment.ToMinorUnits(amountUSD) <= 0 || amountUSD.GreaterThan(payment.MaxAmount) {
			return "", ErrInvoiceAmount
		}
		req.AmountUSD = payment.FromMinorUnits(payment.ToMinorUnits(amountUSD))
		req.Intent = payment.Topup(int64(userID))
		req.Description = "Balance top-up"
	}
	return inv.CreateInvoice(ctx, req)
}

func invoiceResult(err error) string {
	switch {
	case errors.Is(err, payment.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, payment.ErrRejected):
		return "rejected"
	case errors.Is(err, ErrProviderDisabled), errors.Is(err, ErrInvoiceAmount), errors.Is(err, ErrOrderNotPayable):
		return "invalid"
	default:
		return "error"
	}
}
