package service

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"ledgerpay/config"
	"ledgerpay/internal/domain"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"

	"github.com/shopspring/decimal"
)

// ReferralPolicy decides the bonus a referrer earns on a referred user's topup.
type ReferralPolicy struct {
	BonusBPS   int64 // basis points of the topup, 1000 = 10%
	MaxBonuses int64 // bonuses per referred user, 0 = unlimited
}

// BonusFor returns the bonus in cents, rounded half up. The product is taken
// in decimal so large topups or rates cannot overflow; results past the int64
// range saturate.
func (p ReferralPolicy) BonusFor(topupCents int64) int64 {
	if p.BonusBPS <= 0 || topupCents <= 0 {
		return 0
	}
	bonus := decimal.NewFromInt(topupCents).Mul(decimal.NewFromInt(p.BonusBPS)).Shift(-4).Round(0)
	if bonus.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return math.MaxInt64
	}
	return bonus.IntPart()
}

type ReferralBonus struct {
	ReferrerID  uint
	AmountCents int64
}

// ReferralService grants referral bonuses inside the ledger transaction and
// builds the public leaderboard.
type ReferralService struct {
	referralRepo *repository.ReferralRepository
	settingRepo  *repository.SettingRepository
	cfg          config.ReferralConfig
}

func NewReferralService(
	referralRepo *repository.ReferralRepository,
	settingRepo *repository.SettingRepository,
	cfg config.ReferralConfig,
) *ReferralService {
	return &ReferralService{
		referralRepo: referralRepo,
		settingRepo:  settingRepo,
		cfg:          cfg,
	}
}

// Policy reads operator overrides from system settings, falling back to config.
func (s *ReferralService) Policy() ReferralPolicy {
	return ReferralPolicy{
		BonusBPS:   s.getSettingInt(domain.SettingReferralBonusBPS, s.cfg.BonusBPS),
		MaxBonuses: s.getSettingInt(domain.SettingReferralMaxBonus, s.cfg.MaxBonuses),
	}
}

// Apply credits the referrer of userID within tx. It returns nil when the user
// has no referrer, the bonus rounds to zero, or the per-referral cap is used up.
func (s *ReferralService) Apply(tx repository.LedgerTx, policy ReferralPolicy, userID uint, topupCents int64, paymentID uint) (*ReferralBonus, error) {
	bonus := policy.BonusFor(topupCents)
	if bonus <= 0 {
		return nil, nil
	}
	referrerID, ok, err := tx.ClaimReferralBonus(userID, policy.MaxBonuses)
	if err != nil {
		return nil, fmt.Errorf("claim referral bonus: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if err := tx.CreditBalance(referrerID, bonus); err != nil {
		return nil, fmt.Errorf("credit referrer %d: %w", referrerID, err)
	}
	source := userID
	if err := tx.RecordEntry(&models.WalletTransaction{
		UserID:       referrerID,
		AmountCents:  bonus,
		Type:         domain.TxTypeReferralBonus,
		PaymentID:    paymentID,
		SourceUserID: &source,
		Reference:    fmt.Sprintf("referral_bonus_for_user_%d", userID),
	}); err != nil {
		return nil, fmt.Errorf("record referral bonus: %w", err)
	}
	return &ReferralBonus{ReferrerID: referrerID, AmountCents: bonus}, nil
}

func (s *ReferralService) getSettingInt(key string, fallback int64) int64 {
	if s.settingRepo == nil {
		return fallback
	}
	val, err := s.settingRepo.Get(key)
	if err != nil || val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n < 0 {
		slog.Warn("ignoring bad setting", "component", "referral", "key", key, "value", val)
		return fallback
	}
	return n
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	Username      string `json:"username"`
	ReferralCount int64  `json:"referral_count"`
	Medal         string `json:"medal,omitempty"`
}

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

var medals = [...]string{"🥇", "🥈", "🥉"}

func (s *ReferralService) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	rows, err := s.referralRepo.TopReferrers(limit)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		name := row.Username
		if name == "" {
			name = "Anonymous"
		}
		e := LeaderboardEntry{
			Rank:          i + 1,
			Username:      MaskUsername(name),
			ReferralCount: row.ReferralCount,
		}
		if i < len(medals) {
			e.Medal = medals[i]
		}
		out = append(out, e)
	}
	return out, nil
}

// MaskUsername hides most of a public username: up to 3 characters become
// "***", longer names keep their first character, or first three past 6.
func MaskUsername(name string) string {
	r := []rune(name)
	switch {
	case len(r) <= 3:
		return "***"
	case len(r) > 6:
		return string(r[:3]) + "***"
	default:
		return string(r[:1]) + "***"
	}
}
