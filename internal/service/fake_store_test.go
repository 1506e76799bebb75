package service

import (
	"context"
	"errors"
	"sync"

	"ledgerpay/internal/domain"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"
)

var errCommitFailed = errors.New("disk full")

type ledgerState struct {
	users     map[uint]bool
	balances  map[uint]int64
	payments  []models.Payment
	orders    map[uint]models.Order
	referrals map[uint]models.Referral // by referred user
	entries   []models.WalletTransaction
	nextID    uint
}

func (s ledgerState) clone() ledgerState {
	c := ledgerState{
		users:     make(map[uint]bool, len(s.users)),
		balances:  make(map[uint]int64, len(s.balances)),
		payments:  append([]models.Payment(nil), s.payments...),
		orders:    make(map[uint]models.Order, len(s.orders)),
		referrals: make(map[uint]models.Referral, len(s.referrals)),
		entries:   append([]models.WalletTransaction(nil), s.entries...),
		nextID:    s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.referrals {
		c.referrals[k] = v
	}
	return c
}

// fakeStore serializes transactions: Begin holds txMu until Commit or
// Rollback, and each transaction works on a private copy of the state.
type fakeStore struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex
	state  ledgerState

	failCommit   bool
	claimErr     error
	hideNextFind bool // makes the next FindPayment miss, as if a concurrent delivery had not committed yet
}

func newFakeStore(userIDs ...uint) *fakeStore {
	s := &fakeStore{state: ledgerState{
		users:     map[uint]bool{},
		balances:  map[uint]int64{},
		orders:    map[uint]models.Order{},
		referrals: map[uint]models.Referral{},
		nextID:    1,
	}}
	for _, id := range userIDs {
		s.state.users[id] = true
	}
	return s
}

func (s *fakeStore) addOrder(o models.Order) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.state.orders[o.ID] = o
}

func (s *fakeStore) addReferral(referrerID, referredID uint) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.state.referrals[referredID] = models.Referral{ID: referredID, ReferrerID: referrerID, ReferredUserID: referredID}
}

func (s *fakeStore) balance(userID uint) int64 {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.state.balances[userID]
}

func (s *fakeStore) paymentCount() int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return len(s.state.payments)
}

func (s *fakeStore) order(id uint) models.Order {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.state.orders[id]
}

func (s *fakeStore) entries() []models.WalletTransaction {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return append([]models.WalletTransaction(nil), s.state.entries...)
}

func (s *fakeStore) FindPayment(_ context.Context, method, externalID string) (*models.Payment, error) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if s.hideNextFind {
		s.hideNextFind = false
		return nil, nil
	}
	for _, p := range s.state.payments {
		if p.Method == method && p.ExternalID == externalID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Begin(_ context.Context) (repository.LedgerTx, error) {
	s.txMu.Lock()
	s.dataMu.RLock()
	work := s.state.clone()
	s.dataMu.RUnlock()
	return &fakeTx{store: s, state: work}, nil
}

type fakeTx struct {
	store *fakeStore
	state ledgerState
	done  bool
}

func (t *fakeTx) InsertPayment(p *models.Payment) error {
	for _, existing := range t.state.payments {
		if existing.Method == p.Method && existing.ExternalID == p.ExternalID {
			return repository.ErrDuplicatePayment
		}
	}
	p.ID = t.state.nextID
	t.state.nextID++
	t.state.payments = append(t.state.payments, *p)
	return nil
}

func (t *fakeTx) CreditBalance(userID uint, amountCents int64) error {
	if !t.state.users[userID] {
		return repository.ErrUserNotFound
	}
	t.state.balances[userID] += amountCents
	return nil
}

func (t *fakeTx) SettleOrder(orderID, userID uint, paidCents int64) error {
	o, ok := t.state.orders[orderID]
	if !ok || o.UserID != userID || o.Status != domain.OrderStatusPending || o.PriceCents > paidCents {
		return repository.ErrOrderNotSettleable
	}
	o.Status = domain.OrderStatusSettled
	t.state.orders[orderID] = o
	return nil
}

func (t *fakeTx) RecordEntry(e *models.WalletTransaction) error {
	e.ID = t.state.nextID
	t.state.nextID++
	t.state.entries = append(t.state.entries, *e)
	return nil
}

func (t *fakeTx) ClaimReferralBonus(referredUserID uint, maxBonuses int64) (uint, bool, error) {
	if t.store.claimErr != nil {
		return 0, false, t.store.claimErr
	}
	ref, ok := t.state.referrals[referredUserID]
	if !ok || !t.state.users[ref.ReferrerID] {
		return 0, false, nil
	}
	if maxBonuses > 0 && ref.CompletedCount >= maxBonuses {
		return ref.ReferrerID, false, nil
	}
	ref.CompletedCount++
	t.state.referrals[referredUserID] = ref
	return ref.ReferrerID, true, nil
}

func (t *fakeTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	defer t.store.txMu.Unlock()
	if t.store.failCommit {
		return errCommitFailed
	}
	t.store.dataMu.Lock()
	t.store.state = t.state
	t.store.dataMu.Unlock()
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []SettledEvent
}

func (p *recordingPublisher) Publish(ev SettledEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) published() []SettledEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SettledEvent(nil), p.events...)
}
