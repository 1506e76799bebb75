package models

import (
	"time"

	"gorm.io/gorm"
)

// Order is a purchase waiting for payment. It moves pending -> settled exactly once.
type Order struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	Title      string         `gorm:"size:255" json:"title"`
	PriceCents int64          `gorm:"not null" json:"price_cents"`
	Status     string         `gorm:"size:20;not null;default:'pending';index" json:"status"`
	SettledAt  *time.Time     `json:"settled_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Order) TableName() string { return "orders" }
