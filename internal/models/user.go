package models

import (
	"time"

	"ledgerpay/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:64;index" json:"username"`
	Email        *string        `gorm:"uniqueIndex;size:255" json:"email,omitempty"` // only operators log in with email
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;default:'USER';index" json:"role"` // USER | ADMIN
	FCMToken     string         `gorm:"size:512" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	Wallet *Wallet `gorm:"foreignKey:UserID" json:"wallet,omitempty"`
}

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
