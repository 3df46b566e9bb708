package models

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
)

// ChallengeRequirement describes what a challenge asks of the user.
// Count-based requirements (workouts, sets, PRs) advance by one per matching
// action; value-based requirements (streak) track the best reported value.
type ChallengeRequirement struct {
	Type       ActionType `json:"type"`
	Count      int        `json:"count,omitempty"` // count-based target
	Value      int        `json:"value,omitempty"` // value-based target (e.g. streak length)
	ValueBased bool       `json:"value_based"`
}

// Target returns the number progress is compared against.
func (r ChallengeRequirement) Target() int {
	if r.ValueBased {
		return r.Value
	}
	return r.Count
}

// ChallengeTemplate: static catalog entry the daily rotation draws from.
type ChallengeTemplate struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Requirement ChallengeRequirement `json:"requirement"`
	XPReward    int64                `json:"xp_reward"`
	CoinsReward int64                `json:"coins_reward"`
	Difficulty  string               `json:"difficulty"` // easy, medium, hard
	Rarity      string               `json:"rarity"`     // common, rare, epic
}

// Code derives a stable identifier from the title.
func (t ChallengeTemplate) Code() string {
	return slug.Make(t.Title)
}

// Challenge is one day's instantiation of a template, shared by every user
// assigned to it that day. Unique per (code, start_date).
type Challenge struct {
	ID              string               `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Code            string               `gorm:"uniqueIndex:idx_challenge_day;not null" json:"code"`
	Title           string               `gorm:"not null" json:"title"`
	Description     string               `json:"description"`
	RequirementType ActionType           `gorm:"type:varchar(32);not null" json:"requirement_type"`
	RequirementGoal int                  `gorm:"not null" json:"requirement_goal"`
	ValueBased      bool                 `gorm:"default:false" json:"value_based"`
	XPReward        int64                `json:"xp_reward"`
	CoinsReward     int64                `json:"coins_reward"`
	Difficulty      string               `gorm:"type:varchar(16)" json:"difficulty"`
	Rarity          string               `gorm:"type:varchar(16)" json:"rarity"`
	StartDate       time.Time            `gorm:"uniqueIndex:idx_challenge_day;not null" json:"start_date"`
	EndDate         time.Time            `gorm:"not null" json:"end_date"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

// ChallengeStatus is the assignment lifecycle: active → completed → claimed.
type ChallengeStatus string

const (
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeClaimed   ChallengeStatus = "claimed" // terminal
)

// validTransitions makes the lifecycle one-directional. Claimed is terminal.
var validTransitions = map[ChallengeStatus]ChallengeStatus{
	ChallengeActive:    ChallengeCompleted,
	ChallengeCompleted: ChallengeClaimed,
}

// UserChallenge links a user to one daily challenge instance and tracks
// progress. Status is mutated only through Transition.
type UserChallenge struct {
	ID             string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string          `gorm:"uniqueIndex:idx_user_challenge;not null" json:"external_user_id"`
	ChallengeID    string          `gorm:"uniqueIndex:idx_user_challenge;not null" json:"challenge_id"`
	Status         ChallengeStatus `gorm:"type:varchar(16);default:'active'" json:"status"`
	Progress       int             `gorm:"default:0" json:"progress"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Challenge *Challenge `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`
}

// Transition moves the assignment to the next status, rejecting anything that
// is not the single legal next step.
func (uc *UserChallenge) Transition(to ChallengeStatus) error {
	if validTransitions[uc.Status] != to {
		return fmt.Errorf("challenge assignment %s: invalid transition %s -> %s", uc.ID, uc.Status, to)
	}
	now := time.Now().UTC()
	switch to {
	case ChallengeCompleted:
		uc.CompletedAt = &now
	case ChallengeClaimed:
		uc.ClaimedAt = &now
	}
	uc.Status = to
	return nil
}

// ChallengeCatalog is the template pool the daily rotation samples from.
// Static reference data, loaded once, never mutated at runtime.
var ChallengeCatalog = []ChallengeTemplate{
	{
		Title:       "Daily Grind",
		Description: "Complete 1 workout today",
		Requirement: ChallengeRequirement{Type: ActionWorkoutComplete, Count: 1},
		XPReward:    50,
		CoinsReward: 20,
		Difficulty:  "easy",
		Rarity:      "common",
	},
	{
		Title:       "Double Session",
		Description: "Complete 2 workouts today",
		Requirement: ChallengeRequirement{Type: ActionWorkoutComplete, Count: 2},
		XPReward:    120,
		CoinsReward: 50,
		Difficulty:  "medium",
		Rarity:      "rare",
	},
	{
		Title:       "Volume Day",
		Description: "Log 15 sets today",
		Requirement: ChallengeRequirement{Type: ActionSetComplete, Count: 15},
		XPReward:    80,
		CoinsReward: 30,
		Difficulty:  "medium",
		Rarity:      "common",
	},
	{
		Title:       "Set Machine",
		Description: "Log 30 sets today",
		Requirement: ChallengeRequirement{Type: ActionSetComplete, Count: 30},
		XPReward:    180,
		CoinsReward: 70,
		Difficulty:  "hard",
		Rarity:      "rare",
	},
	{
		Title:       "New Heights",
		Description: "Set a personal record",
		Requirement: ChallengeRequirement{Type: ActionPersonalRecord, Count: 1},
		XPReward:    150,
		CoinsReward: 60,
		Difficulty:  "hard",
		Rarity:      "epic",
	},
	{
		Title:       "Keep The Flame",
		Description: "Hold a streak of 3 days",
		Requirement: ChallengeRequirement{Type: ActionStreakIncrement, Value: 3, ValueBased: true},
		XPReward:    100,
		CoinsReward: 40,
		Difficulty:  "medium",
		Rarity:      "common",
	},
	{
		Title:       "Week Of Fire",
		Description: "Hold a streak of 7 days",
		Requirement: ChallengeRequirement{Type: ActionStreakIncrement, Value: 7, ValueBased: true},
		XPReward:    250,
		CoinsReward: 100,
		Difficulty:  "hard",
		Rarity:      "epic",
	},
	{
		Title:       "Good Sport",
		Description: "Cheer on 3 other athletes",
		Requirement: ChallengeRequirement{Type: ActionSocialInteraction, Count: 3},
		XPReward:    40,
		CoinsReward: 15,
		Difficulty:  "easy",
		Rarity:      "common",
	},
}
