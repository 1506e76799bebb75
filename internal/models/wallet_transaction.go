package models

import (
	"time"
)

// WalletTransaction is one line of balance history, written in the same
// transaction as the balance change it describes.
type WalletTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	AmountCents  int64     `gorm:"not null" json:"amount_cents"`
	Type         string    `gorm:"size:30;not null;index" json:"type"` // TOPUP, REFERRAL_BONUS
	PaymentID    uint      `gorm:"not null;index" json:"payment_id"`
	SourceUserID *uint     `json:"source_user_id,omitempty"` // referred user for REFERRAL_BONUS
	Reference    string    `gorm:"size:128" json:"reference"`
	CreatedAt    time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
