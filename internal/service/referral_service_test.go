package service

import (
	"fmt"
	"math"
	"testing"

	"ledgerpay/config"
	"ledgerpay/internal/domain"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralPolicyBonusFor(t *testing.T) {
	tests := []struct {
		bps   int64
		cents int64
		want  int64
	}{
		{1000, 2500, 250},
		{1000, 5, 1},    // 0.5 rounds up
		{1000, 4, 0},    // 0.4 rounds down, bonus skipped
		{250, 1999, 50}, // 49.975
		{0, 2500, 0},
		{1000, 0, 0},
		{10000, 123, 123},
		{1000, math.MaxInt64, 922337203685477581},
		{90000, math.MaxInt64, math.MaxInt64}, // saturates
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_bps_of_%d", tt.bps, tt.cents), func(t *testing.T) {
			assert.Equal(t, tt.want, ReferralPolicy{BonusBPS: tt.bps}.BonusFor(tt.cents))
		})
	}
}

func TestMaskUsername(t *testing.T) {
	tests := map[string]string{
		"":          "***",
		"bob":       "***",
		"alice":     "a***",
		"nikola":    "n***",
		"alexander": "ale***",
		"Анастасия": "Ана***",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskUsername(in), in)
	}
}

func TestReferralPolicyFromSettings(t *testing.T) {
	db := newTestDB(t)
	settings := repository.NewSettingRepository(db)
	svc := NewReferralService(repository.NewReferralRepository(db), settings, config.ReferralConfig{BonusBPS: 1000, MaxBonuses: 3})

	assert.Equal(t, ReferralPolicy{BonusBPS: 1000, MaxBonuses: 3}, svc.Policy())

	require.NoError(t, settings.Set(domain.SettingReferralBonusBPS, "500"))
	require.NoError(t, settings.Set(domain.SettingReferralMaxBonus, "not-a-number"))
	assert.Equal(t, ReferralPolicy{BonusBPS: 500, MaxBonuses: 3}, svc.Policy())
}

func TestReferralLeaderboard(t *testing.T) {
	db := newTestDB(t)
	refRepo := repository.NewReferralRepository(db)
	svc := NewReferralService(refRepo, nil, config.ReferralConfig{})

	alexander := seedUser(t, db, "alexander")
	bob := seedUser(t, db, "bob")
	alice := seedUser(t, db, "alice")
	nameless := seedUser(t, db, "")

	invite := func(referrer *models.User, n int) {
		for i := 0; i < n; i++ {
			u := seedUser(t, db, fmt.Sprintf("invitee-%d-%d", referrer.ID, i))
			require.NoError(t, refRepo.CreateReferral(&models.Referral{ReferrerID: referrer.ID, ReferredUserID: u.ID}))
		}
	}
	invite(bob, 5)
	invite(alexander, 3)
	invite(alice, 2)
	invite(nameless, 1)

	board, err := svc.Leaderboard(0)
	require.NoError(t, err)
	require.Len(t, board, 4)

	assert.Equal(t, LeaderboardEntry{Rank: 1, Username: "***", ReferralCount: 5, Medal: "🥇"}, board[0])
	assert.Equal(t, LeaderboardEntry{Rank: 2, Username: "ale***", ReferralCount: 3, Medal: "🥈"}, board[1])
	assert.Equal(t, LeaderboardEntry{Rank: 3, Username: "a***", ReferralCount: 2, Medal: "🥉"}, board[2])
	assert.Equal(t, LeaderboardEntry{Rank: 4, Username: "Ano***", ReferralCount: 1}, board[3])

	top, err := svc.Leaderboard(2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}
