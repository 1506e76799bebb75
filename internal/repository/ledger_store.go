package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"ledgerpay/internal/domain"
	"ledgerpay/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDuplicatePayment means a payment with the same (method, external_id) already exists.
	ErrDuplicatePayment = errors.New("payment already recorded")
	// ErrOrderNotSettleable covers a missing order, one owned by another user,
	// one that is no longer pending, and an underpaid order.
	ErrOrderNotSettleable = errors.New("order cannot be settled")
	ErrUserNotFound       = errors.New("user not found")
)

// LedgerStore is the only write path to balances, payments and orders.
type LedgerStore interface {
	// FindPayment returns nil, nil when no payment matches.
	FindPayment(ctx context.Context, method, externalID string) (*models.Payment, error)
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is one atomic unit of ledger work. Rollback after Commit is a no-op.
type LedgerTx interface {
	InsertPayment(p *models.Payment) error
	CreditBalance(userID uint, amountCents int64) error
	SettleOrder(orderID, userID uint, paidCents int64) error
	RecordEntry(e *models.WalletTransaction) error
	// ClaimReferralBonus reserves one bonus slot on the user's referral link.
	// ok is false when the user has no referrer or the link has used maxBonuses
	// slots (maxBonuses <= 0 means unlimited).
	ClaimReferralBonus(referredUserID uint, maxBonuses int64) (referrerID uint, ok bool, err error)
	Commit() error
	Rollback() error
}

type GormLedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func (s *GormLedgerStore) FindPayment(ctx context.Context, method, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Where("method = ? AND external_id = ?", method, externalID).
		Limit(1).Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

// Begin detaches the transaction from ctx cancellation: once opened it runs
// to commit or rollback even if the HTTP request that started it goes away.
func (s *GormLedgerStore) Begin(ctx context.Context) (LedgerTx, error) {
	tx := s.db.WithContext(context.WithoutCancel(ctx)).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormLedgerTx{tx: tx}, nil
}

type gormLedgerTx struct {
	tx   *gorm.DB
	done bool
}

func (t *gormLedgerTx) InsertPayment(p *models.Payment) error {
	if err := t.tx.Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

func (t *gormLedgerTx) CreditBalance(userID uint, amountCents int64) error {
	res := t.tx.Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance_cents": gorm.Expr("balance_cents + ?", amountCents),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := t.tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return addToWallet(t.tx, userID, amountCents)
}

// addToWallet creates the user's wallet, or adds to it when a concurrent
// first credit created it in the meantime.
func addToWallet(tx *gorm.DB, userID uint, amountCents int64) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance_cents": gorm.Expr("wallets.balance_cents + ?", amountCents),
			"updated_at":    time.Now(),
		}),
	}).Create(&models.Wallet{
		UserID:       userID,
		BalanceCents: amountCents,
		Currency:     domain.DefaultCurrency,
	}).Error
}

func (t *gormLedgerTx) SettleOrder(orderID, userID uint, paidCents int64) error {
	now := time.Now()
	res := t.tx.Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND status = ? AND price_cents <= ?",
			orderID, userID, domain.OrderStatusPending, paidCents).
		Updates(map[string]interface{}{
			"status":     domain.OrderStatusSettled,
			"settled_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrOrderNotSettleable
	}
	return nil
}

func (t *gormLedgerTx) RecordEntry(e *models.WalletTransaction) error {
	return t.tx.Create(e).Error
}

func (t *gormLedgerTx) ClaimReferralBonus(referredUserID uint, maxBonuses int64) (uint, bool, error) {
	var ref models.Referral
	if err := t.tx.Where("referred_user_id = ?", referredUserID).Limit(1).Find(&ref).Error; err != nil {
		return 0, false, err
	}
	if ref.ID == 0 || ref.ReferrerID == referredUserID {
		return 0, false, nil
	}
	// A deleted referrer earns nothing; the referred user's topup still goes through.
	var live int64
	if err := t.tx.Model(&models.User{}).Where("id = ?", ref.ReferrerID).Count(&live).Error; err != nil {
		return 0, false, err
	}
	if live == 0 {
		return 0, false, nil
	}

	q := t.tx.Model(&models.Referral{}).Where("id = ?", ref.ID)
	if maxBonuses > 0 {
		q = q.Where("completed_count < ?", maxBonuses)
	}
	res := q.Updates(map[string]interface{}{
		"completed_count": gorm.Expr("completed_count + 1"),
		"updated_at":      time.Now(),
	})
	if res.Error != nil {
		return 0, false, res.Error
	}
	return ref.ReferrerID, res.RowsAffected == 1, nil
}

func (t *gormLedgerTx) Commit() error {
	if t.done {
		return gorm.ErrInvalidTransaction
	}
	t.done = true
	return t.tx.Commit().Error
}

func (t *gormLedgerTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback().Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
