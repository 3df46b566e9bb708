package models

import (
	"time"
)

// RequirementType selects which UserStats counter an achievement or challenge
// requirement is evaluated against.
type RequirementType string

const (
	RequirementLevel           RequirementType = "level"
	RequirementStreak          RequirementType = "streak"
	RequirementWorkouts        RequirementType = "workouts"
	RequirementPerfectWorkouts RequirementType = "perfect_workouts"
	RequirementChallenges      RequirementType = "challenges"
	RequirementSocialScore     RequirementType = "social_score"
)

// AchievementDefinition: static catalog entry, loaded once at process start.
// No runtime mutation path exists.
type AchievementDefinition struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Requirement RequirementType `json:"requirement_type"`
	Threshold   int64           `json:"threshold"`
	XPReward    int64           `json:"xp_reward"`
	CoinsReward int64           `json:"coins_reward"`
	Rarity      string          `json:"rarity"` // common, rare, epic, legendary
}

// UserAchievement: awarded instance. The unique index on
// (external_user_id, achievement_code) is the backstop against two concurrent
// evaluations both inserting the same unlock.
type UserAchievement struct {
	ID              string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID  string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"external_user_id"`
	AchievementCode string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievement_code"`
	UnlockedAt      time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
}

// AchievementCatalog holds the full definition set. Evaluated with a simple
// counter >= threshold comparison by the achievement service.
var AchievementCatalog = []AchievementDefinition{
	{
		Code:        "FIRST_WORKOUT",
		Name:        "First Rep",
		Description: "Complete your first workout",
		Requirement: RequirementWorkouts,
		Threshold:   1,
		XPReward:    50,
		CoinsReward: 25,
		Rarity:      "common",
	},
	{
		Code:        "WORKOUT_10",
		Name:        "Regular",
		Description: "Complete 10 workouts",
		Requirement: RequirementWorkouts,
		Threshold:   10,
		XPReward:    150,
		CoinsReward: 50,
		Rarity:      "common",
	},
	{
		Code:        "WORKOUT_100",
		Name:        "Centurion",
		Description: "Complete 100 workouts",
		Requirement: RequirementWorkouts,
		Threshold:   100,
		XPReward:    1000,
		CoinsReward: 300,
		Rarity:      "epic",
	},
	{
		Code:        "PERFECT_5",
		Name:        "Flawless Five",
		Description: "Finish 5 workouts without skipping a set",
		Requirement: RequirementPerfectWorkouts,
		Threshold:   5,
		XPReward:    250,
		CoinsReward: 100,
		Rarity:      "rare",
	},
	{
		Code:        "LEVEL_5",
		Name:        "Warming Up",
		Description: "Reach level 5",
		Requirement: RequirementLevel,
		Threshold:   5,
		XPReward:    100,
		CoinsReward: 50,
		Rarity:      "common",
	},
	{
		Code:        "LEVEL_25",
		Name:        "Gold Standard",
		Description: "Reach level 25",
		Requirement: RequirementLevel,
		Threshold:   25,
		XPReward:    500,
		CoinsReward: 200,
		Rarity:      "rare",
	},
	{
		Code:        "LEVEL_50",
		Name:        "Halfway There",
		Description: "Reach level 50 (Platinum!)",
		Requirement: RequirementLevel,
		Threshold:   50,
		XPReward:    1500,
		CoinsReward: 500,
		Rarity:      "epic",
	},
	{
		Code:        "STREAK_7",
		Name:        "One Week Strong",
		Description: "Train 7 days in a row",
		Requirement: RequirementStreak,
		Threshold:   7,
		XPReward:    200,
		CoinsReward: 75,
		Rarity:      "common",
	},
	{
		Code:        "STREAK_30",
		Name:        "Iron Month",
		Description: "Train 30 days in a row",
		Requirement: RequirementStreak,
		Threshold:   30,
		XPReward:    1000,
		CoinsReward: 400,
		Rarity:      "epic",
	},
	{
		Code:        "STREAK_100",
		Name:        "Unbreakable",
		Description: "Train 100 days in a row",
		Requirement: RequirementStreak,
		Threshold:   100,
		XPReward:    5000,
		CoinsReward: 1500,
		Rarity:      "legendary",
	},
	{
		Code:        "CHALLENGE_10",
		Name:        "Challenger",
		Description: "Complete 10 daily challenges",
		Requirement: RequirementChallenges,
		Threshold:   10,
		XPReward:    300,
		CoinsReward: 100,
		Rarity:      "rare",
	},
	{
		Code:        "SOCIAL_50",
		Name:        "Crowd Favorite",
		Description: "Earn a social score of 50",
		Requirement: RequirementSocialScore,
		Threshold:   50,
		XPReward:    200,
		CoinsReward: 75,
		Rarity:      "rare",
	},
}
