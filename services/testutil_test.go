package services

import (
	"testing"

	"fitness-progression-system/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB returns an isolated in-memory database with the full schema.
// A single connection keeps sqlite happy under the concurrency tests.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.ProgressionEvent{},
		&models.UserStats{},
		&models.UserAchievement{},
		&models.Challenge{},
		&models.UserChallenge{},
	))
	return db
}

// newTestUser registers a projection row and returns its service.
func newTestUser(t *testing.T, db *gorm.DB, userID string) *ProgressionService {
	t.Helper()
	svc := NewProgressionService(db)
	_, err := svc.EnsureStatsRecord(userID)
	require.NoError(t, err)
	return svc
}

func loadStats(t *testing.T, db *gorm.DB, userID string) *models.UserStats {
	t.Helper()
	var stats models.UserStats
	require.NoError(t, db.Where("external_user_id = ?", userID).First(&stats).Error)
	return &stats
}
