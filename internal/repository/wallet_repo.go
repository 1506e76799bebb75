package repository

import (
	"errors"

	"ledgerpay/internal/models"

	"gorm.io/gorm"
)

// WalletRepository reads balances. Balance writes go through LedgerTx.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// BalanceCents returns 0 for users that were never credited.
func (r *WalletRepository) BalanceCents(userID uint) (int64, error) {
	w, err := r.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.BalanceCents, nil
}

func (r *WalletRepository) ListTransactions(userID uint, limit, offset int) ([]models.WalletTransaction, error) {
	var list []models.WalletTransaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}
