package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"fitness-progression-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// dailyChallengeCount is how many challenges each user gets per calendar day.
const dailyChallengeCount = 3

type ChallengeService struct {
	DB *gorm.DB

	// Rand seeds the daily template shuffle; nil uses the global source.
	// Tests inject a fixed seed for deterministic selection.
	Rand *rand.Rand
}

func NewChallengeService(db *gorm.DB) *ChallengeService {
	return &ChallengeService{DB: db}
}

// ChallengeRewards is what a claim releases. Disbursement (GrantXP +
// CreditCoins) is the caller's job — computation stays separate from payout.
type ChallengeRewards struct {
	ChallengeID string `json:"challenge_id"`
	Title       string `json:"title"`
	XPReward    int64  `json:"xp_reward"`
	CoinsReward int64  `json:"coins_reward"`
}

// GenerateDailyChallenges assigns 3 random catalog templates for today,
// instantiating the shared daily Challenge rows on demand. Idempotent: a user
// who already has today's assignments gets them back unchanged, so it is safe
// to call on every page load.
func (s *ChallengeService) GenerateDailyChallenges(externalUserID string) ([]models.UserChallenge, error) {
	today := utcDay(time.Now())
	tomorrow := today.Add(24 * time.Hour)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.assignmentsForDay(tx, externalUserID, today)
		if err != nil {
			return err
		}
		if len(existing) >= dailyChallengeCount {
			return nil
		}

		templates := s.pickTemplates(dailyChallengeCount - len(existing))
		for _, tpl := range templates {
			challenge, err := s.findOrCreateInstance(tx, tpl, today, tomorrow)
			if err != nil {
				return err
			}

			assignment := models.UserChallenge{
				ID:             uuid.NewString(),
				ExternalUserID: externalUserID,
				ChallengeID:    challenge.ID,
				Status:         models.ChallengeActive,
			}
			if err := tx.Create(&assignment).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// Racing generation already assigned this instance
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.todaysAssignments(externalUserID, today)
}

// todaysAssignments returns the user's assignments for the given day with
// their challenge rows attached.
func (s *ChallengeService) todaysAssignments(externalUserID string, day time.Time) ([]models.UserChallenge, error) {
	assignments, err := s.assignmentsForDay(s.DB, externalUserID, day)
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s *ChallengeService) assignmentsForDay(tx *gorm.DB, externalUserID string, day time.Time) ([]models.UserChallenge, error) {
	var challengeIDs []string
	if err := tx.Model(&models.Challenge{}).
		Where("start_date = ?", day).
		Pluck("id", &challengeIDs).Error; err != nil {
		return nil, err
	}
	if len(challengeIDs) == 0 {
		return nil, nil
	}

	var assignments []models.UserChallenge
	if err := tx.Preload("Challenge").
		Where("external_user_id = ? AND challenge_id IN ?", externalUserID, challengeIDs).
		Order("created_at ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

// pickTemplates samples n catalog templates uniformly without replacement.
func (s *ChallengeService) pickTemplates(n int) []models.ChallengeTemplate {
	if n > len(models.ChallengeCatalog) {
		n = len(models.ChallengeCatalog)
	}
	indices := make([]int, len(models.ChallengeCatalog))
	for i := range indices {
		indices[i] = i
	}
	swap := func(i, j int) { indices[i], indices[j] = indices[j], indices[i] }
	if s.Rand != nil {
		s.Rand.Shuffle(len(indices), swap)
	} else {
		rand.Shuffle(len(indices), swap)
	}

	picked := make([]models.ChallengeTemplate, 0, n)
	for _, idx := range indices[:n] {
		picked = append(picked, models.ChallengeCatalog[idx])
	}
	return picked
}

// findOrCreateInstance resolves the shared daily instance for a template,
// tolerating the create/create race via the (code, start_date) unique index.
func (s *ChallengeService) findOrCreateInstance(tx *gorm.DB, tpl models.ChallengeTemplate, start, end time.Time) (*models.Challenge, error) {
	var challenge models.Challenge
	err := tx.Where("code = ? AND start_date = ?", tpl.Code(), start).First(&challenge).Error
	if err == nil {
		return &challenge, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	challenge = models.Challenge{
		ID:              uuid.NewString(),
		Code:            tpl.Code(),
		Title:           tpl.Title,
		Description:     tpl.Description,
		RequirementType: tpl.Requirement.Type,
		RequirementGoal: tpl.Requirement.Target(),
		ValueBased:      tpl.Requirement.ValueBased,
		XPReward:        tpl.XPReward,
		CoinsReward:     tpl.CoinsReward,
		Difficulty:      tpl.Difficulty,
		Rarity:          tpl.Rarity,
		StartDate:       start,
		EndDate:         end,
	}
	if createErr := tx.Create(&challenge).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			if err := tx.Where("code = ? AND start_date = ?", tpl.Code(), start).First(&challenge).Error; err != nil {
				return nil, err
			}
			return &challenge, nil
		}
		return nil, createErr
	}
	return &challenge, nil
}

// UpdateProgress advances every active, non-expired assignment whose
// requirement matches the action, and returns the assignments that completed.
// Expired assignments are simply invisible here — expiry is lazy, not swept.
func (s *ChallengeService) UpdateProgress(externalUserID string, action models.ActionType, metadata map[string]interface{}) ([]models.UserChallenge, error) {
	now := time.Now().UTC()

	var assignments []models.UserChallenge
	if err := s.DB.Preload("Challenge").
		Where("external_user_id = ? AND status = ?", externalUserID, models.ChallengeActive).
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	var completed []models.UserChallenge
	for i := range assignments {
		uc := &assignments[i]
		if uc.Challenge == nil || uc.Challenge.RequirementType != action {
			continue
		}
		if !uc.Challenge.EndDate.After(now) {
			continue
		}

		if uc.Challenge.ValueBased {
			value := metadataValue(metadata)
			if value <= uc.Progress {
				continue
			}
			uc.Progress = value
		} else {
			uc.Progress++
		}

		updates := map[string]interface{}{"progress": uc.Progress, "updated_at": now}
		if uc.Progress >= uc.Challenge.RequirementGoal {
			if err := uc.Transition(models.ChallengeCompleted); err != nil {
				return completed, fmt.Errorf("%w: %v", ErrInvalidState, err)
			}
			updates["status"] = uc.Status
			updates["completed_at"] = uc.CompletedAt
		}
		if err := s.DB.Model(&models.UserChallenge{}).Where("id = ?", uc.ID).Updates(updates).Error; err != nil {
			return completed, err
		}
		if uc.Status == models.ChallengeCompleted {
			completed = append(completed, *uc)
			log.Printf("🎯 Challenge completed: %s → %s", uc.Challenge.Title, externalUserID)
		}
	}

	if len(completed) > 0 {
		progression := NewProgressionService(s.DB)
		if _, err := progression.mutateStats(externalUserID, func(st *models.UserStats, updates map[string]interface{}) error {
			updates["challenges_completed"] = st.ChallengesCompleted + int64(len(completed))
			return nil
		}); err != nil {
			log.Printf("⚠️ [CHALLENGE] completion counter update failed for %s: %v", externalUserID, err)
		}
		if _, err := NewAchievementService(s.DB).CheckAchievements(externalUserID); err != nil {
			log.Printf("⚠️ [CHALLENGE] achievement check failed for %s: %v", externalUserID, err)
		}
	}

	return completed, nil
}

// metadataValue pulls the value-based progress number out of the hook
// metadata (e.g. the current streak length).
func metadataValue(metadata map[string]interface{}) int {
	if metadata == nil {
		return 0
	}
	switch v := metadata["value"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// ClaimRewards transitions a completed assignment to claimed and returns the
// reward amounts. Claiming anything but a completed assignment is an error,
// not a no-op; a second claim fails the same way.
func (s *ChallengeService) ClaimRewards(externalUserID, challengeID string) (*ChallengeRewards, error) {
	var rewards *ChallengeRewards
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var uc models.UserChallenge
		if err := tx.Preload("Challenge").
			Where("external_user_id = ? AND challenge_id = ?", externalUserID, challengeID).
			First(&uc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: challenge assignment %s for user %s", ErrNotFound, challengeID, externalUserID)
			}
			return err
		}

		if err := uc.Transition(models.ChallengeClaimed); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		// Status-guarded update: a racing claim that committed first leaves
		// zero rows here instead of paying out twice
		res := tx.Model(&models.UserChallenge{}).
			Where("id = ? AND status = ?", uc.ID, models.ChallengeCompleted).
			Updates(map[string]interface{}{
				"status":     uc.Status,
				"claimed_at": uc.ClaimedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: challenge %s already claimed", ErrConflict, challengeID)
		}

		rewards = &ChallengeRewards{
			ChallengeID: uc.ChallengeID,
			Title:       uc.Challenge.Title,
			XPReward:    uc.Challenge.XPReward,
			CoinsReward: uc.Challenge.CoinsReward,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rewards, nil
}
