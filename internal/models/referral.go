package models

import (
	"time"
)

// Referral links a referred user to the user who invited them. A user can be
// referred once. CompletedCount counts bonuses already paid for this link.
type Referral struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ReferrerID     uint      `gorm:"not null;index" json:"referrer_id"`
	ReferredUserID uint      `gorm:"uniqueIndex;not null" json:"referred_user_id"`
	CompletedCount int64     `gorm:"not null;default:0" json:"completed_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Referrer     User `gorm:"foreignKey:ReferrerID" json:"-"`
	ReferredUser User `gorm:"foreignKey:ReferredUserID" json:"-"`
}

func (Referral) TableName() string { return "referrals" }
