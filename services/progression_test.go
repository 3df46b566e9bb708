package services

import (
	"encoding/json"
	"sync"
	"testing"

	"fitness-progression-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardXPRequiresExistingProjection(t *testing.T) {
	db := openTestDB(t)
	svc := NewProgressionService(db)

	_, err := svc.AwardXP("ghost-user", models.ActionSetComplete, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureStatsRecordIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewProgressionService(db)

	first, err := svc.EnsureStatsRecord("user-1")
	require.NoError(t, err)
	second, err := svc.EnsureStatsRecord("user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserStats{}).Where("external_user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAwardXPAppendsLedgerAndUpdatesProjection(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	result, err := svc.AwardXP("user-1", models.ActionSetComplete, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 5, result.XPGained)
	assert.EqualValues(t, 5, result.TotalXP)
	assert.False(t, result.LeveledUp)

	stats := loadStats(t, db, "user-1")
	assert.EqualValues(t, 5, stats.XP)
	assert.EqualValues(t, 5, stats.TotalXPEarned)
	assert.EqualValues(t, 5, stats.WeeklyXP)
	assert.Equal(t, 1, stats.Level)
	assert.Equal(t, models.RankBronze, stats.Rank)

	var events []models.ProgressionEvent
	require.NoError(t, db.Where("external_user_id = ?", "user-1").Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionSetComplete, events[0].Action)
	assert.EqualValues(t, 5, events[0].XPEarned)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(events[0].Metadata), &meta))
	assert.EqualValues(t, 0, meta["old_xp"])
	assert.EqualValues(t, 5, meta["new_xp"])
}

func TestAwardXPMultiplierFloors(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	// floor(5 * 0.5) = 2
	result, err := svc.AwardXP("user-1", models.ActionSetComplete, 0.5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.XPGained)

	result, err = svc.AwardXP("user-1", models.ActionWorkoutComplete, 1.5)
	require.NoError(t, err)
	assert.EqualValues(t, 150, result.XPGained)
}

func TestAwardXPRejectsNegativeMultiplier(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	_, err := svc.AwardXP("user-1", models.ActionSetComplete, -1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAwardXPRejectsUnknownAction(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	_, err := svc.AwardXP("user-1", models.ActionType("TELEPORT"), 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAwardXPLevelUp(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	result, err := svc.AwardXP("user-1", models.ActionWorkoutComplete, 1)
	require.NoError(t, err)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 1, result.OldLevel)
	assert.Equal(t, 2, result.NewLevel)
	assert.False(t, result.RankedUp)

	stats := loadStats(t, db, "user-1")
	assert.Equal(t, 2, stats.Level)
	assert.NotNil(t, stats.LastLevelUpAt)
}

func TestGrantXPRankUp(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	// Level 10 threshold is 3200 XP → Silver
	result, err := svc.GrantXP("user-1", models.ActionAchievementBonus, XPForLevel(10))
	require.NoError(t, err)
	assert.True(t, result.RankedUp)
	assert.Equal(t, models.RankBronze, result.OldRank)
	assert.Equal(t, models.RankSilver, result.NewRank)
	assert.Equal(t, 10, result.NewLevel)

	stats := loadStats(t, db, "user-1")
	assert.Equal(t, models.RankSilver, stats.Rank)
	assert.NotNil(t, stats.LastRankUpAt)
}

func TestGrantXPRejectsNegativeAmount(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	_, err := svc.GrantXP("user-1", models.ActionAchievementBonus, -50)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConcurrentAwardsBothApply(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AwardXP("user-1", models.ActionSetComplete, 1)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stats := loadStats(t, db, "user-1")
	assert.EqualValues(t, 10, stats.XP, "both grants must apply, never a lost update")

	var count int64
	require.NoError(t, db.Model(&models.ProgressionEvent{}).Where("external_user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSocialInteractionBumpsSocialScore(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	_, err := svc.AwardXP("user-1", models.ActionSocialInteraction, 1)
	require.NoError(t, err)

	stats := loadStats(t, db, "user-1")
	assert.EqualValues(t, 1, stats.SocialScore)
	assert.EqualValues(t, 10, stats.XP)
}

func TestCreditAndSpendCoins(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	require.NoError(t, svc.CreditCoins("user-1", 100, 5))
	require.NoError(t, svc.SpendCoins("user-1", 40, 2))

	stats := loadStats(t, db, "user-1")
	assert.EqualValues(t, 60, stats.Coins)
	assert.EqualValues(t, 3, stats.Gems)
}

func TestSpendCoinsRejectsOverdraft(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	require.NoError(t, svc.CreditCoins("user-1", 10, 0))
	err := svc.SpendCoins("user-1", 11, 0)
	assert.ErrorIs(t, err, ErrInvalidState)

	stats := loadStats(t, db, "user-1")
	assert.EqualValues(t, 10, stats.Coins, "failed spend must not touch the balance")
}

func TestGetLedgerNewestFirst(t *testing.T) {
	db := openTestDB(t)
	svc := newTestUser(t, db, "user-1")

	_, err := svc.AwardXP("user-1", models.ActionSetComplete, 1)
	require.NoError(t, err)
	_, err = svc.AwardXP("user-1", models.ActionPersonalRecord, 1)
	require.NoError(t, err)

	events, err := svc.GetLedger("user-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.ActionPersonalRecord, events[0].Action)
}
