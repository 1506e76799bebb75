package repository

import (
	"ledgerpay/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository is read-only; payments are written by the ledger store.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByUserID(userID uint, limit, offset int) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// PaymentFilter narrows the operator payment listing. Zero values match everything.
type PaymentFilter struct {
	Method string
	UserID uint
}

func (r *PaymentRepository) List(f PaymentFilter, limit, offset int) ([]models.Payment, int64, error) {
	q := r.db.Model(&models.Payment{})
	if f.Method != "" {
		q = q.Where("method = ?", f.Method)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Payment
	err := q.Session(&gorm.Session{}).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}
