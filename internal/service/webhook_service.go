package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledgerpay/internal/domain"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"
	"ledgerpay/pkg/payment"

	"gorm.io/gorm"
)

var ErrWebhookEventNotFound = errors.New("webhook event not found")

// WebhookResult is what one callback (or replay) amounted to.
type WebhookResult struct {
	JournalID uint
	Outcome   string
	Event     *payment.Event
	Receipt   *Receipt
}

// WebhookService journals provider callbacks, normalizes them and hands
// settled events to the reconciler.
type WebhookService struct {
	journal    *repository.WebhookEventRepository
	reconciler *Reconciler
}

func NewWebhookService(journal *repository.WebhookEventRepository, reconciler *Reconciler) *WebhookService {
	return &WebhookService{journal: journal, reconciler: reconciler}
}

// Ingest records body and processes it. The journal is best-effort: a
// failed journal write never blocks reconciliation.
func (s *WebhookService) Ingest(ctx context.Context, provider payment.Provider, body []byte) (*WebhookResult, error) {
	entry := &models.WebhookEvent{
		Provider: string(provider),
		Payload:  string(body),
		Outcome:  domain.WebhookOutcomeReceived,
	}
	if s.journal != nil {
		if err := s.journal.Create(entry); err != nil {
			slog.Error("journal callback failed", "component", "webhook", "provider", string(provider), "error", err)
		}
	}
	res, err := s.process(ctx, provider, body)
	res.JournalID = entry.ID
	s.record(entry.ID, res, err)
	return res, err
}

// Replay re-runs a journaled callback. Idempotency makes this safe for
// bodies that were already committed.
func (s *WebhookService) Replay(ctx context.Context, id uint) (*WebhookResult, error) {
	entry, err := s.journal.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrWebhookEventNotFound, id)
		}
		return nil, err
	}
	provider, err := payment.ParseProvider(entry.Provider)
	if err != nil {
		return nil, err
	}
	if err := s.journal.IncrementReplays(id); err != nil {
		slog.Warn("count replay failed", "component", "webhook", "journal_id", id, "error", err)
	}
	slog.Info("replaying callback", "component", "webhook", "journal_id", id, "provider", entry.Provider, "previous_outcome", entry.Outcome)

	res, err := s.process(ctx, provider, []byte(entry.Payload))
	res.JournalID = id
	s.record(id, res, err)
	return res, err
}

func (s *WebhookService) process(ctx context.Context, provider payment.Provider, body []byte) (*WebhookResult, error) {
	res := &WebhookResult{}
	ev, err := payment.Normalize(provider, body)
	if err != nil {
		res.Outcome = domain.WebhookOutcomeRejected
		slog.Error("callback not understood", "component", "webhook", "provider", string(provider), "alert", true, "error", err)
		return res, err
	}
	if ev == nil {
		res.Outcome = domain.WebhookOutcomeIgnored
		return res, nil
	}
	res.Event = ev

	receipt, err := s.reconciler.Reconcile(ctx, *ev)
	if err != nil {
		res.Outcome = domain.WebhookOutcomeRejected
		var rerr *ReconcileError
		if errors.As(err, &rerr) && rerr.Retryable() {
			res.Outcome = domain.WebhookOutcomeFailed
		}
		return res, err
	}
	res.Receipt = receipt
	res.Outcome = receipt.Outcome.String()
	return res, nil
}

func (s *WebhookService) record(id uint, res *WebhookResult, err error) {
	if s.journal == nil || id == 0 {
		return
	}
	var externalID, errText string
	if res.Event != nil {
		externalID = res.Event.ExternalID
	}
	if err != nil {
		errText = err.Error()
	}
	if jerr := s.journal.SetOutcome(id, externalID, res.Outcome, errText); jerr != nil {
		slog.Error("journal outcome failed", "component", "webhook", "journal_id", id, "error", jerr)
	}
}
