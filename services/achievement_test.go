package services

import (
	"testing"
	"time"

	"fitness-progression-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAchievementsBelowThresholdUnlocksNothing(t *testing.T) {
	db := openTestDB(t)
	prog := newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	// 450 XP puts the user at level 4, one short of the LEVEL_5 threshold
	_, err := prog.GrantXP("user-1", models.ActionAchievementBonus, 450)
	require.NoError(t, err)

	unlocked, err := svc.CheckAchievements("user-1")
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	var count int64
	require.NoError(t, db.Model(&models.UserAchievement{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestLevelAchievementUnlocksExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	prog := newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	_, err := prog.GrantXP("user-1", models.ActionAchievementBonus, XPForLevel(5))
	require.NoError(t, err)

	unlocked, err := svc.CheckAchievements("user-1")
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "LEVEL_5", unlocked[0].Code)

	stats := loadStats(t, db, "user-1")
	assert.Equal(t, XPForLevel(5)+100, stats.XP, "base grant plus the one-time bonus")
	assert.EqualValues(t, 50, stats.Coins)
	assert.EqualValues(t, 1, stats.AchievementsUnlocked)

	// Re-scan with no state change: nothing new, rewards not repeated
	again, err := svc.CheckAchievements("user-1")
	require.NoError(t, err)
	assert.Empty(t, again)

	stats = loadStats(t, db, "user-1")
	assert.Equal(t, XPForLevel(5)+100, stats.XP)
	assert.EqualValues(t, 50, stats.Coins)
}

func TestBonusGrantWritesLedgerEntry(t *testing.T) {
	db := openTestDB(t)
	prog := newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	_, err := prog.GrantXP("user-1", models.ActionAchievementBonus, XPForLevel(5))
	require.NoError(t, err)
	_, err = svc.CheckAchievements("user-1")
	require.NoError(t, err)

	var bonuses int64
	require.NoError(t, db.Model(&models.ProgressionEvent{}).
		Where("external_user_id = ? AND action = ? AND xp_earned = ?", "user-1", models.ActionAchievementBonus, 100).
		Count(&bonuses).Error)
	assert.EqualValues(t, 1, bonuses)
}

func TestPreexistingUnlockRowSuppressesReward(t *testing.T) {
	db := openTestDB(t)
	_ = newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	require.NoError(t, db.Create(&models.UserAchievement{
		ID:              uuid.NewString(),
		ExternalUserID:  "user-1",
		AchievementCode: "FIRST_WORKOUT",
		UnlockedAt:      time.Now().UTC(),
	}).Error)
	require.NoError(t, db.Model(&models.UserStats{}).
		Where("external_user_id = ?", "user-1").
		Update("total_workouts", 1).Error)

	unlocked, err := svc.CheckAchievements("user-1")
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	stats := loadStats(t, db, "user-1")
	assert.EqualValues(t, 0, stats.XP)
	assert.EqualValues(t, 0, stats.Coins)
}

func TestStreakAchievementTracksCurrentStreak(t *testing.T) {
	db := openTestDB(t)
	_ = newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	require.NoError(t, db.Model(&models.UserStats{}).
		Where("external_user_id = ?", "user-1").
		Update("current_streak", 7).Error)

	unlocked, err := svc.CheckAchievements("user-1")
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "STREAK_7", unlocked[0].Code)
}

func TestMultipleThresholdsUnlockTogether(t *testing.T) {
	db := openTestDB(t)
	_ = newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	require.NoError(t, db.Model(&models.UserStats{}).
		Where("external_user_id = ?", "user-1").
		Updates(map[string]interface{}{"total_workouts": 10, "current_streak": 7}).Error)

	unlocked, err := svc.CheckAchievements("user-1")
	require.NoError(t, err)

	codes := make([]string, 0, len(unlocked))
	for _, def := range unlocked {
		codes = append(codes, def.Code)
	}
	assert.ElementsMatch(t, []string{"FIRST_WORKOUT", "WORKOUT_10", "STREAK_7"}, codes)

	stats := loadStats(t, db, "user-1")
	assert.EqualValues(t, 3, stats.AchievementsUnlocked)
}

func TestGetUserAchievementsAnnotatesCatalog(t *testing.T) {
	db := openTestDB(t)
	_ = newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	require.NoError(t, db.Create(&models.UserAchievement{
		ID:              uuid.NewString(),
		ExternalUserID:  "user-1",
		AchievementCode: "FIRST_WORKOUT",
		UnlockedAt:      time.Now().UTC(),
	}).Error)

	list, err := svc.GetUserAchievements("user-1")
	require.NoError(t, err)
	require.Len(t, list, len(models.AchievementCatalog))

	for _, entry := range list {
		if entry.Code == "FIRST_WORKOUT" {
			assert.True(t, entry.Unlocked)
			assert.NotNil(t, entry.UnlockedAt)
		} else {
			assert.False(t, entry.Unlocked)
			assert.Nil(t, entry.UnlockedAt)
		}
	}
}

func TestTryUnlockLosesWhenRowExists(t *testing.T) {
	db := openTestDB(t)
	_ = newTestUser(t, db, "user-1")
	svc := NewAchievementService(db)

	won, err := svc.tryUnlock("user-1", "LEVEL_5")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = svc.tryUnlock("user-1", "LEVEL_5")
	require.NoError(t, err)
	assert.False(t, won)
}
