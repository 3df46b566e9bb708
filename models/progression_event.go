package models

import (
	"time"
)

// ActionType identifies the user action that caused an XP grant.
type ActionType string

const (
	ActionWorkoutComplete   ActionType = "WORKOUT_COMPLETE"
	ActionSetComplete       ActionType = "EXERCISE_SET_COMPLETE"
	ActionPersonalRecord    ActionType = "PERSONAL_RECORD"
	ActionStreakIncrement   ActionType = "STREAK_INCREMENT"
	ActionSocialInteraction ActionType = "SOCIAL_INTERACTION"
	ActionAchievementBonus  ActionType = "ACHIEVEMENT_BONUS"
	ActionChallengeReward   ActionType = "CHALLENGE_REWARD"
)

// BaseXPValues maps each action to its base XP grant. Actions with a zero
// entry (achievement bonuses, challenge rewards) carry catalog-defined
// amounts and go through GrantXP instead of AwardXP.
var BaseXPValues = map[ActionType]int64{
	ActionWorkoutComplete:   100,
	ActionSetComplete:       5,
	ActionPersonalRecord:    150,
	ActionStreakIncrement:   50,
	ActionSocialInteraction: 10,
	ActionAchievementBonus:  0,
	ActionChallengeReward:   0,
}

// ProgressionEvent is one append-only ledger entry. Rows are created once and
// never updated or deleted; the UserStats projection is always recomputable
// from a user's event history.
type ProgressionEvent struct {
	ID             string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string     `gorm:"index:idx_events_user_time;not null" json:"external_user_id"`
	Action         ActionType `gorm:"type:varchar(32);not null" json:"action"`
	XPEarned       int64      `gorm:"not null;default:0" json:"xp_earned"`
	Metadata       string     `gorm:"type:jsonb" json:"metadata,omitempty"` // audit context: {multiplier, old_xp, new_xp, ...}
	OccurredAt     time.Time  `gorm:"index:idx_events_user_time;autoCreateTime" json:"occurred_at"`
	Archived       bool       `gorm:"default:false;index" json:"-"` // set by the R2 archive worker
}
