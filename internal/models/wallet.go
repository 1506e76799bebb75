package models

import (
	"time"
)

// Wallet holds a user's spendable balance in cents. Only the ledger engine writes it.
type Wallet struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceCents int64     `gorm:"not null;default:0" json:"balance_cents"`
	Currency     string    `gorm:"size:3;default:'USD'" json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
