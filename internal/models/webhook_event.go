package models

import (
	"time"
)

// WebhookEvent journals every inbound provider callback so that lost or
// rejected payments can be reconciled by hand and replayed.
type WebhookEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Provider   string    `gorm:"size:32;not null;index" json:"provider"`
	ExternalID string    `gorm:"size:191;index" json:"external_id"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Outcome    string    `gorm:"size:32;not null;index" json:"outcome"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	Replays    int       `gorm:"not null;default:0" json:"replays"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
