package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"fitness-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// casRetries bounds how often a grant retries after losing a version race
// before surfacing ErrConflict to the caller.
const casRetries = 3

type ProgressionService struct {
	DB          *gorm.DB
	Leaderboard *LeaderboardService // optional; nil when Redis is disabled
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// XPResult reports a single grant's before/after so callers can trigger
// level-up / rank-up celebrations.
type XPResult struct {
	XPGained  int64       `json:"xp_gained"`
	TotalXP   int64       `json:"total_xp"`
	OldLevel  int         `json:"old_level"`
	NewLevel  int         `json:"new_level"`
	OldRank   models.Rank `json:"old_rank"`
	NewRank   models.Rank `json:"new_rank"`
	LeveledUp bool        `json:"leveled_up"`
	RankedUp  bool        `json:"ranked_up"`
}

// EnsureStatsRecord creates the projection row at registration time
// (idempotent). AwardXP never creates rows lazily — a missing projection
// there is ErrNotFound.
func (s *ProgressionService) EnsureStatsRecord(externalUserID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.UserStats{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			Level:          1,
			Rank:           models.RankBronze,
		}
		if err := s.DB.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetStats loads the projection for a user.
func (s *ProgressionService) GetStats(externalUserID string) (*models.UserStats, error) {
	var stats models.UserStats
	if err := s.DB.Where("external_user_id = ?", externalUserID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: stats for user %s", ErrNotFound, externalUserID)
		}
		return nil, err
	}
	return &stats, nil
}

// GetLedger returns the most recent ledger entries for a user, newest first.
func (s *ProgressionService) GetLedger(externalUserID string, limit int) ([]models.ProgressionEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var events []models.ProgressionEvent
	err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// AwardXP is the single path through which XP changes for table-valued
// actions. xpGained = floor(baseXP * multiplier). The ledger append and the
// projection update commit in the same transaction.
func (s *ProgressionService) AwardXP(externalUserID string, action models.ActionType, multiplier float64) (*XPResult, error) {
	if multiplier < 0 {
		return nil, fmt.Errorf("%w: negative multiplier %v", ErrInvalidState, multiplier)
	}
	base, ok := models.BaseXPValues[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidState, action)
	}
	xp := int64(float64(base) * multiplier)
	meta := map[string]interface{}{"multiplier": multiplier, "base_xp": base}
	return s.grant(externalUserID, action, xp, meta, nil)
}

// GrantXP awards a catalog-defined amount (achievement bonuses, challenge
// rewards) through the same grant pipeline as AwardXP.
func (s *ProgressionService) GrantXP(externalUserID string, action models.ActionType, amount int64) (*XPResult, error) {
	return s.grant(externalUserID, action, amount, map[string]interface{}{"catalog_amount": amount}, nil)
}

// grant appends one ledger event and applies the projection delta atomically,
// retrying a bounded number of times when a concurrent writer bumps the row
// version. extra, when non-nil, folds additional projection fields into the
// same atomic update (streak state, counters).
func (s *ProgressionService) grant(
	externalUserID string,
	action models.ActionType,
	xp int64,
	meta map[string]interface{},
	extra func(stats *models.UserStats, updates map[string]interface{}) error,
) (*XPResult, error) {
	if xp < 0 {
		return nil, fmt.Errorf("%w: negative xp grant %d", ErrInvalidState, xp)
	}

	for attempt := 1; attempt <= casRetries; attempt++ {
		result, err := s.tryGrant(externalUserID, action, xp, meta, extra)
		if errors.Is(err, ErrConflict) {
			log.Printf("⚠️ [XP] version conflict for %s on %s (attempt %d/%d), retrying", externalUserID, action, attempt, casRetries)
			continue
		}
		if err != nil {
			return nil, err
		}

		// Post-commit, fire-and-forget: mirror the gain into the weekly
		// leaderboard. A miss here never fails the grant.
		if s.Leaderboard != nil && xp > 0 {
			if lbErr := s.Leaderboard.RecordXP(context.Background(), externalUserID, xp); lbErr != nil {
				log.Printf("⚠️ [XP] leaderboard update failed for %s: %v", externalUserID, lbErr)
			}
		}
		return result, nil
	}
	return nil, fmt.Errorf("awarding xp to %s: %w", externalUserID, ErrConflict)
}

func (s *ProgressionService) tryGrant(
	externalUserID string,
	action models.ActionType,
	xp int64,
	meta map[string]interface{},
	extra func(stats *models.UserStats, updates map[string]interface{}) error,
) (*XPResult, error) {
	var result *XPResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var stats models.UserStats
		if err := tx.Where("external_user_id = ?", externalUserID).First(&stats).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: stats for user %s", ErrNotFound, externalUserID)
			}
			return err
		}

		now := time.Now().UTC()
		newXP := stats.XP + xp
		newLevel, err := LevelFromXP(newXP)
		if err != nil {
			return err
		}
		newRank := RankFromLevel(newLevel)

		// Ledger append — metadata captures the before/after for audit
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["old_xp"] = stats.XP
		meta["new_xp"] = newXP
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encoding event metadata: %w", err)
		}
		event := models.ProgressionEvent{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			Action:         action,
			XPEarned:       xp,
			Metadata:       string(metaJSON),
			OccurredAt:     now,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		// Projection update — level and rank are always recomputed from XP,
		// never patched incrementally
		updates := map[string]interface{}{
			"xp":              newXP,
			"total_xp_earned": stats.TotalXPEarned + xp,
			"weekly_xp":       stats.WeeklyXP + xp,
			"level":           newLevel,
			"rank":            newRank,
			"version":         stats.Version + 1,
			"updated_at":      now,
		}
		if newLevel > stats.Level {
			updates["last_level_up_at"] = now
		}
		if rankAbove(newRank, stats.Rank) {
			updates["last_rank_up_at"] = now
		}
		if action == models.ActionSocialInteraction {
			updates["social_score"] = stats.SocialScore + 1
		}
		if extra != nil {
			if err := extra(&stats, updates); err != nil {
				return err
			}
		}

		res := tx.Model(&models.UserStats{}).
			Where("external_user_id = ? AND version = ?", externalUserID, stats.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another writer got there first; the rollback discards the
			// ledger append too, so both sides stay consistent
			return ErrConflict
		}

		result = &XPResult{
			XPGained:  xp,
			TotalXP:   newXP,
			OldLevel:  stats.Level,
			NewLevel:  newLevel,
			OldRank:   stats.Rank,
			NewRank:   newRank,
			LeveledUp: newLevel > stats.Level,
			RankedUp:  rankAbove(newRank, stats.Rank),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mutateStats applies a projection-only change (no ledger entry) under the
// same version-checked discipline as XP grants. Used for currency and counter
// updates.
func (s *ProgressionService) mutateStats(
	externalUserID string,
	mutate func(stats *models.UserStats, updates map[string]interface{}) error,
) (*models.UserStats, error) {
	for attempt := 1; attempt <= casRetries; attempt++ {
		var updated *models.UserStats
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var stats models.UserStats
			if err := tx.Where("external_user_id = ?", externalUserID).First(&stats).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: stats for user %s", ErrNotFound, externalUserID)
				}
				return err
			}

			updates := map[string]interface{}{
				"version":    stats.Version + 1,
				"updated_at": time.Now().UTC(),
			}
			if err := mutate(&stats, updates); err != nil {
				return err
			}

			res := tx.Model(&models.UserStats{}).
				Where("external_user_id = ? AND version = ?", externalUserID, stats.Version).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
			updated = &stats
			return nil
		})
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("updating stats for %s: %w", externalUserID, ErrConflict)
}

// CreditCoins adds currency to the projection (achievement and challenge
// rewards, shop refunds).
func (s *ProgressionService) CreditCoins(externalUserID string, coins, gems int64) error {
	if coins < 0 || gems < 0 {
		return fmt.Errorf("%w: negative credit (coins=%d gems=%d)", ErrInvalidState, coins, gems)
	}
	_, err := s.mutateStats(externalUserID, func(stats *models.UserStats, updates map[string]interface{}) error {
		updates["coins"] = stats.Coins + coins
		updates["gems"] = stats.Gems + gems
		return nil
	})
	return err
}

// SpendCoins debits currency (shop purchases). Overdraft is rejected, and the
// debit shares the atomic-update discipline so it cannot race a credit.
func (s *ProgressionService) SpendCoins(externalUserID string, coins, gems int64) error {
	if coins < 0 || gems < 0 {
		return fmt.Errorf("%w: negative debit (coins=%d gems=%d)", ErrInvalidState, coins, gems)
	}
	_, err := s.mutateStats(externalUserID, func(stats *models.UserStats, updates map[string]interface{}) error {
		if stats.Coins < coins || stats.Gems < gems {
			return fmt.Errorf("%w: insufficient balance (have %d/%d, need %d/%d)",
				ErrInvalidState, stats.Coins, stats.Gems, coins, gems)
		}
		updates["coins"] = stats.Coins - coins
		updates["gems"] = stats.Gems - gems
		return nil
	})
	return err
}

// AddStreakFreezes grants streak-freeze consumables (shop purchases, promos).
func (s *ProgressionService) AddStreakFreezes(externalUserID string, count int) error {
	if count < 1 {
		return fmt.Errorf("%w: freeze count %d", ErrInvalidState, count)
	}
	_, err := s.mutateStats(externalUserID, func(stats *models.UserStats, updates map[string]interface{}) error {
		updates["streak_freezes_available"] = stats.StreakFreezesAvailable + count
		return nil
	})
	return err
}

// RecordAction handles the simple action cascade (set logged, PR detected,
// social interaction): XP award, then best-effort challenge progress and
// achievement scan. Side-effect failures are logged, never returned — the
// committed award is the primary contract.
func (s *ProgressionService) RecordAction(externalUserID string, action models.ActionType, multiplier float64) (*XPResult, error) {
	result, err := s.AwardXP(externalUserID, action, multiplier)
	if err != nil {
		return nil, err
	}

	if _, err := NewChallengeService(s.DB).UpdateProgress(externalUserID, action, nil); err != nil {
		log.Printf("⚠️ [ACTION] challenge progress failed for %s/%s: %v", externalUserID, action, err)
	}
	if _, err := s.achievementService().CheckAchievements(externalUserID); err != nil {
		log.Printf("⚠️ [ACTION] achievement check failed for %s: %v", externalUserID, err)
	}
	return result, nil
}

func (s *ProgressionService) achievementService() *AchievementService {
	svc := NewAchievementService(s.DB)
	svc.Progression.Leaderboard = s.Leaderboard
	return svc
}

// rankAbove reports whether a outranks b.
func rankAbove(a, b models.Rank) bool {
	return rankOrder(a) > rankOrder(b)
}

func rankOrder(r models.Rank) int {
	for i, t := range rankThresholds {
		if t.Rank == r {
			return len(rankThresholds) - i
		}
	}
	return 0
}
