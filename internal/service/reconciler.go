package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerpay/internal/domain"
	"ledgerpay/internal/metrics"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"
	"ledgerpay/pkg/payment"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Outcome int

const (
	OutcomeCommitted Outcome = iota + 1
	OutcomeAlreadyProcessed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return domain.WebhookOutcomeCommitted
	case OutcomeAlreadyProcessed:
		return domain.WebhookOutcomeAlreadyProcessed
	default:
		return "unknown"
	}
}

// Receipt describes what a reconciliation did. For OutcomeAlreadyProcessed it
// describes the payment recorded by the earlier delivery.
type Receipt struct {
	Outcome     Outcome
	PaymentID   uint
	UserID      uint
	Kind        payment.Kind
	OrderID     uint
	AmountCents int64
	Bonus       *ReferralBonus
}

// SettledEvent is handed to post-commit side effects.
type SettledEvent struct {
	PaymentID   uint
	Provider    payment.Provider
	UserID      uint
	Kind        payment.Kind
	OrderID     uint
	AmountCents int64
	Bonus       *ReferralBonus
	SettledAt   time.Time
}

// Publisher accepts settled events without blocking the caller.
type Publisher interface {
	Publish(ev SettledEvent) bool
}

// creditableCurrencies are credited 1:1 as USD. Everything we invoice is USD
// or a dollar stablecoin; other units need a manual decision.
var creditableCurrencies = map[string]bool{
	"USD":  true,
	"USDT": true,
	"USDC": true,
}

func IsCreditableCurrency(c string) bool {
	return creditableCurrencies[strings.ToUpper(strings.TrimSpace(c))]
}

// Reconciler applies settled payment events to the ledger exactly once per
// (provider, external_id).
type Reconciler struct {
	store    repository.LedgerStore
	referral *ReferralService
	events   Publisher
	tracer   trace.Tracer
	now      func() time.Time
}

func NewReconciler(store repository.LedgerStore, referral *ReferralService, events Publisher) *Reconciler {
	return &Reconciler{
		store:    store,
		referral: referral,
		events:   events,
		tracer:   otel.Tracer("ledgerpay/service"),
		now:      time.Now,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, ev payment.Event) (*Receipt, error) {
	start := r.now()
	ctx, span := r.tracer.Start(ctx, "ledger.reconcile", trace.WithAttributes(
		attribute.String("payment.provider", string(ev.Provider)),
		attribute.String("payment.external_id", ev.ExternalID),
	))
	defer span.End()

	receipt, err := r.reconcile(ctx, ev)
	metrics.ReconcileDuration.WithLabelValues(string(ev.Provider)).Observe(time.Since(start).Seconds())

	log := slog.With("component", "ledger", "provider", string(ev.Provider), "external_id", ev.ExternalID)
	if err != nil {
		metrics.ReconcileOutcomes.WithLabelValues(string(ev.Provider), ErrorKind(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
		log.Error("reconcile failed", "intent", ev.RawIntent, "amount", ev.Amount.String(), "currency", ev.Currency, "error", err)
		return nil, err
	}

	metrics.ReconcileOutcomes.WithLabelValues(string(ev.Provider), receipt.Outcome.String()).Inc()
	span.SetAttributes(
		attribute.String("ledger.outcome", receipt.Outcome.String()),
		attribute.Int64("ledger.payment_id", int64(receipt.PaymentID)),
	)
	if receipt.Outcome == OutcomeAlreadyProcessed {
		log.Info("duplicate delivery ignored", "payment_id", receipt.PaymentID)
		return receipt, nil
	}

	metrics.CreditedCents.WithLabelValues(string(ev.Provider), receipt.Kind.String()).Add(float64(receipt.AmountCents))
	log.Info("payment committed",
		"payment_id", receipt.PaymentID,
		"user_id", receipt.UserID,
		"kind", receipt.Kind.String(),
		"amount_cents", receipt.AmountCents,
	)
	if receipt.Bonus != nil {
		metrics.ReferralBonusCents.Add(float64(receipt.Bonus.AmountCents))
	}
	r.publish(ev.Provider, receipt)
	return receipt, nil
}

func (r *Reconciler) reconcile(ctx context.Context, ev payment.Event) (*Receipt, error) {
	intent, err := payment.DecodeIntent(ev.RawIntent)
	if err != nil {
		return nil, reconcileErr(ErrInvalidIntent, ev, err)
	}
	if !IsCreditableCurrency(ev.Currency) {
		return nil, reconcileErr(ErrUnsupportedCurrency, ev, fmt.Errorf("currency %q", ev.Currency))
	}
	cents := payment.ToMinorUnits(ev.Amount)
	if cents <= 0 {
		return nil, reconcileErr(ErrInvalidAmount, ev, fmt.Errorf("amount %s", ev.Amount))
	}

	if prior, err := r.store.FindPayment(ctx, string(ev.Provider), ev.ExternalID); err != nil {
		return nil, reconcileErr(ErrStoreFailure, ev, err)
	} else if prior != nil {
		return alreadyProcessed(prior), nil
	}

	// Settings are read before the transaction opens so no read competes with it.
	var policy ReferralPolicy
	if intent.Kind == payment.KindTopup && r.referral != nil {
		policy = r.referral.Policy()
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, reconcileErr(ErrStoreFailure, ev, err)
	}
	defer tx.Rollback()

	receipt, err := r.apply(tx, ev, intent, cents, policy)
	if err == nil {
		if err = tx.Commit(); err != nil {
			err = reconcileErr(ErrStoreFailure, ev, err)
		}
	}
	if err == nil {
		return receipt, nil
	}

	// A concurrent delivery of the same event may have committed first. Its
	// payment row, not this error, is the answer.
	if errors.Is(err, repository.ErrDuplicatePayment) || errors.Is(err, ErrOrderInvalid) {
		_ = tx.Rollback()
		if prior, findErr := r.store.FindPayment(ctx, string(ev.Provider), ev.ExternalID); findErr == nil && prior != nil {
			return alreadyProcessed(prior), nil
		}
	}
	var rerr *ReconcileError
	if !errors.As(err, &rerr) {
		err = reconcileErr(ErrStoreFailure, ev, err)
	}
	return nil, err
}

// apply performs every mutation of one event inside tx.
func (r *Reconciler) apply(tx repository.LedgerTx, ev payment.Event, intent payment.Intent, cents int64, policy ReferralPolicy) (*Receipt, error) {
	userID := uint(intent.UserID)
	p := &models.Payment{
		UserID:         userID,
		Method:         string(ev.Provider),
		ExternalID:     ev.ExternalID,
		AmountCents:    cents,
		Currency:       strings.ToUpper(ev.Currency),
		ProviderAmount: ev.Amount.String(),
		Status:         domain.PaymentStatusPaid,
	}
	receipt := &Receipt{
		Outcome:     OutcomeCommitted,
		UserID:      userID,
		Kind:        intent.Kind,
		AmountCents: cents,
	}

	switch intent.Kind {
	case payment.KindTopup:
		p.Kind = domain.PaymentKindTopup
		if err := tx.CreditBalance(userID, cents); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, reconcileErr(ErrInvalidIntent, ev, err)
			}
			return nil, reconcileErr(ErrStoreFailure, ev, err)
		}
		if err := r.insertPayment(tx, ev, p); err != nil {
			return nil, err
		}
		if err := tx.RecordEntry(&models.WalletTransaction{
			UserID:      userID,
			AmountCents: cents,
			Type:        domain.TxTypeTopup,
			PaymentID:   p.ID,
			Reference:   fmt.Sprintf("%s:%s", ev.Provider, ev.ExternalID),
		}); err != nil {
			return nil, reconcileErr(ErrStoreFailure, ev, err)
		}
		if r.referral != nil {
			bonus, err := r.referral.Apply(tx, policy, userID, cents, p.ID)
			if err != nil {
				return nil, reconcileErr(ErrStoreFailure, ev, err)
			}
			receipt.Bonus = bonus
		}

	case payment.KindOrderPurchase:
		orderID := uint(intent.OrderID)
		p.Kind = domain.PaymentKindOrder
		p.OrderID = &orderID
		receipt.OrderID = orderID
		if err := tx.SettleOrder(orderID, userID, cents); err != nil {
			if errors.Is(err, repository.ErrOrderNotSettleable) {
				return nil, reconcileErr(ErrOrderInvalid, ev, fmt.Errorf("order %d: %w", orderID, err))
			}
			return nil, reconcileErr(ErrStoreFailure, ev, err)
		}
		if err := r.insertPayment(tx, ev, p); err != nil {
			return nil, err
		}

	default:
		return nil, reconcileErr(ErrInvalidIntent, ev, fmt.Errorf("kind %v", intent.Kind))
	}

	receipt.PaymentID = p.ID
	return receipt, nil
}

func (r *Reconciler) insertPayment(tx repository.LedgerTx, ev payment.Event, p *models.Payment) error {
	if err := tx.InsertPayment(p); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			return err
		}
		return reconcileErr(ErrStoreFailure, ev, err)
	}
	return nil
}

func (r *Reconciler) publish(provider payment.Provider, receipt *Receipt) {
	if r.events == nil {
		return
	}
	r.events.Publish(SettledEvent{
		PaymentID:   receipt.PaymentID,
		Provider:    provider,
		UserID:      receipt.UserID,
		Kind:        receipt.Kind,
		OrderID:     receipt.OrderID,
		AmountCents: receipt.AmountCents,
		Bonus:       receipt.Bonus,
		SettledAt:   r.now(),
	})
}

func alreadyProcessed(p *models.Payment) *Receipt {
	kind := payment.KindTopup
	var orderID uint
	if p.Kind == domain.PaymentKindOrder {
		kind = payment.KindOrderPurchase
		if p.OrderID != nil {
			orderID = *p.OrderID
		}
	}
	return &Receipt{
		Outcome:     OutcomeAlreadyProcessed,
		PaymentID:   p.ID,
		UserID:      p.UserID,
		Kind:        kind,
		OrderID:     orderID,
		AmountCents: p.AmountCents,
	}
}
