package repository

import (
	"ledgerpay/internal/models"

	"gorm.io/gorm"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(e *models.WebhookEvent) error {
	return r.db.Create(e).Error
}

func (r *WebhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	err := r.db.First(&e, id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetOutcome records how a journaled callback was resolved.
func (r *WebhookEventRepository) SetOutcome(id uint, externalID, outcome, errText string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"external_id": externalID,
		"outcome":     outcome,
		"error":       errText,
	}).Error
}

func (r *WebhookEventRepository) IncrementReplays(id uint) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		UpdateColumn("replays", gorm.Expr("replays + 1")).Error
}

// WebhookEventFilter narrows the operator journal listing. Zero values match everything.
type WebhookEventFilter struct {
	Provider string
	Outcome  string
}

func (r *WebhookEventRepository) List(f WebhookEventFilter, limit, offset int) ([]models.WebhookEvent, int64, error) {
	q := r.db.Model(&models.WebhookEvent{})
	if f.Provider != "" {
		q = q.Where("provider = ?", f.Provider)
	}
	if f.Outcome != "" {
		q = q.Where("outcome = ?", f.Outcome)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.WebhookEvent
	err := q.Session(&gorm.Session{}).Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}
