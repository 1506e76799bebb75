package repository

import (
	"ledgerpay/internal/models"

	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// CreateReferral persists a new referral relationship.
func (r *ReferralRepository) CreateReferral(referral *models.Referral) error {
	return r.db.Create(referral).Error
}

// GetReferralByReferredUserID returns the Referral record for a user that was referred by someone.
func (r *ReferralRepository) GetReferralByReferredUserID(userID uint) (*models.Referral, error) {
	var ref models.Referral
	err := r.db.Where("referred_user_id = ?", userID).First(&ref).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// ReferrerCount is one leaderboard row before masking.
type ReferrerCount struct {
	ReferrerID    uint
	Username      string
	ReferralCount int64
}

// TopReferrers ranks referrers by how many users they invited. Ties go to the
// older account.
func (r *ReferralRepository) TopReferrers(limit int) ([]ReferrerCount, error) {
	var rows []ReferrerCount
	err := r.db.Table("referrals").
		Select("referrals.referrer_id AS referrer_id, users.username AS username, COUNT(referrals.id) AS referral_count").
		Joins("LEFT JOIN users ON users.id = referrals.referrer_id").
		Group("referrals.referrer_id, users.username").
		Order("referral_count DESC, referrals.referrer_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
