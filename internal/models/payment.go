package models

import (
	"time"
)

// Payment is a settled provider payment. (method, external_id) is unique so a
// redelivered webhook can never insert a second row for the same payment.
type Payment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Method         string    `gorm:"size:32;not null;uniqueIndex:idx_payments_method_external" json:"method"`
	ExternalID     string    `gorm:"size:191;not null;uniqueIndex:idx_payments_method_external" json:"external_id"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	Currency       string    `gorm:"size:10;not null;default:'USD'" json:"currency"`
	ProviderAmount string    `gorm:"size:64" json:"provider_amount"` // amount as reported by the provider
	Kind           string    `gorm:"size:20;not null" json:"kind"`   // topup | order_purchase
	OrderID        *uint     `gorm:"index" json:"order_id,omitempty"`
	Status         string    `gorm:"size:20;not null;index" json:"status"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
