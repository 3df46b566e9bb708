package services

import (
	"errors"
	"log"
	"time"

	"fitness-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AchievementService struct {
	DB          *gorm.DB
	Progression *ProgressionService
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db, Progression: NewProgressionService(db)}
}

// errAlreadyUnlocked short-circuits the unlock transaction when the fresh
// in-transaction check finds an existing row.
var errAlreadyUnlocked = errors.New("achievement already unlocked")

// CheckAchievements scans the catalog against the current projection and
// unlocks every newly satisfied definition. Safe to call redundantly from any
// trigger: a second run with no state change returns an empty slice, and the
// (user, achievement) unique index backstops concurrent scans.
func (s *AchievementService) CheckAchievements(externalUserID string) ([]models.AchievementDefinition, error) {
	stats, err := s.Progression.GetStats(externalUserID)
	if err != nil {
		return nil, err
	}

	unlockedSet, err := s.unlockedCodes(externalUserID)
	if err != nil {
		return nil, err
	}

	var newlyUnlocked []models.AchievementDefinition
	for _, def := range models.AchievementCatalog {
		if unlockedSet[def.Code] {
			continue
		}
		if !meetsRequirement(stats, def) {
			continue
		}

		won, err := s.tryUnlock(externalUserID, def.Code)
		if err != nil {
			return newlyUnlocked, err
		}
		if !won {
			// A concurrent trigger inserted first; it owns the reward grant
			continue
		}

		// Exactly-once rewards: we won the insert. Reward failures after the
		// unlock committed are logged, not rolled back — the unlock row is
		// the source of truth for dedup.
		if def.XPReward > 0 {
			if _, err := s.Progression.GrantXP(externalUserID, models.ActionAchievementBonus, def.XPReward); err != nil {
				log.Printf("⚠️ [ACHIEVEMENT] XP bonus for %s/%s failed: %v", externalUserID, def.Code, err)
			}
		}
		if _, err := s.Progression.mutateStats(externalUserID, func(st *models.UserStats, updates map[string]interface{}) error {
			updates["achievements_unlocked"] = st.AchievementsUnlocked + 1
			updates["coins"] = st.Coins + def.CoinsReward
			return nil
		}); err != nil {
			log.Printf("⚠️ [ACHIEVEMENT] coin/counter update for %s/%s failed: %v", externalUserID, def.Code, err)
		}

		log.Printf("🏅 Achievement unlocked: %s → %s", def.Name, externalUserID)
		newlyUnlocked = append(newlyUnlocked, def)
	}

	return newlyUnlocked, nil
}

// unlockedCodes loads the user's unlock set as an id-set for O(1) membership.
func (s *AchievementService) unlockedCodes(externalUserID string) (map[string]bool, error) {
	var rows []models.UserAchievement
	if err := s.DB.Where("external_user_id = ?", externalUserID).Find(&rows).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(rows))
	for _, row := range rows {
		set[row.AchievementCode] = true
	}
	return set, nil
}

// tryUnlock inserts the unlock row, re-checking existence inside the same
// transaction. Returns false when another writer already holds the unlock —
// either seen by the fresh read or caught by the unique index.
func (s *AchievementService) tryUnlock(externalUserID, code string) (bool, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.UserAchievement{}).
			Where("external_user_id = ? AND achievement_code = ?", externalUserID, code).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errAlreadyUnlocked
		}
		return tx.Create(&models.UserAchievement{
			ID:              uuid.NewString(),
			ExternalUserID:  externalUserID,
			AchievementCode: code,
			UnlockedAt:      time.Now().UTC(),
		}).Error
	})
	if errors.Is(err, errAlreadyUnlocked) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// meetsRequirement evaluates a typed requirement against the projection
// counters with a plain >= comparison.
func meetsRequirement(stats *models.UserStats, def models.AchievementDefinition) bool {
	switch def.Requirement {
	case models.RequirementLevel:
		return int64(stats.Level) >= def.Threshold
	case models.RequirementStreak:
		return int64(stats.CurrentStreak) >= def.Threshold
	case models.RequirementWorkouts:
		return stats.TotalWorkouts >= def.Threshold
	case models.RequirementPerfectWorkouts:
		return stats.PerfectWorkouts >= def.Threshold
	case models.RequirementChallenges:
		return stats.ChallengesCompleted >= def.Threshold
	case models.RequirementSocialScore:
		return stats.SocialScore >= def.Threshold
	default:
		return false
	}
}

// AchievementWithStatus decorates a catalog entry with the user's unlock state.
type AchievementWithStatus struct {
	models.AchievementDefinition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// GetUserAchievements returns the full catalog annotated with unlock status.
func (s *AchievementService) GetUserAchievements(externalUserID string) ([]AchievementWithStatus, error) {
	var rows []models.UserAchievement
	if err := s.DB.Where("external_user_id = ?", externalUserID).Find(&rows).Error; err != nil {
		return nil, err
	}
	byCode := make(map[string]models.UserAchievement, len(rows))
	for _, row := range rows {
		byCode[row.AchievementCode] = row
	}

	out := make([]AchievementWithStatus, 0, len(models.AchievementCatalog))
	for _, def := range models.AchievementCatalog {
		entry := AchievementWithStatus{AchievementDefinition: def}
		if row, ok := byCode[def.Code]; ok {
			entry.Unlocked = true
			unlockedAt := row.UnlockedAt
			entry.UnlockedAt = &unlockedAt
		}
		out = append(out, entry)
	}
	return out, nil
}
