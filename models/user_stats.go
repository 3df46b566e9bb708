package models

import (
	"time"

	"gorm.io/gorm"
)

// UserStats is the denormalized per-user progression summary (fast read side).
// It is a transactionally-consistent cache of the ProgressionEvent ledger:
// every write recomputes Level and Rank from XP, and every write goes through
// the version-checked update in the progression service. No other code path
// mutates XP.
type UserStats struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core progression — Level and Rank are derived from XP on every update
	XP            int64 `json:"xp" gorm:"default:0"`
	TotalXPEarned int64 `json:"total_xp_earned" gorm:"default:0"`
	WeeklyXP      int64 `json:"weekly_xp" gorm:"default:0"`
	Level         int   `json:"level" gorm:"default:1"`
	Rank          Rank  `json:"rank" gorm:"type:varchar(16);default:'bronze'"`

	// Currency (shared with the shop; mutated only via CreditCoins/SpendCoins)
	Coins int64 `json:"coins" gorm:"default:0"`
	Gems  int64 `json:"gems" gorm:"default:0"`

	// Streak state
	CurrentStreak          int        `json:"current_streak" gorm:"default:0"`
	LongestStreak          int        `json:"longest_streak" gorm:"default:0"`
	StreakFreezesAvailable int        `json:"streak_freezes_available" gorm:"default:0"`
	LastWorkoutDate        *time.Time `json:"last_workout_date,omitempty"`

	// Activity counters
	TotalWorkouts        int64 `json:"total_workouts" gorm:"default:0"`
	PerfectWorkouts      int64 `json:"perfect_workouts" gorm:"default:0"`
	SocialScore          int64 `json:"social_score" gorm:"default:0"`
	AchievementsUnlocked int64 `json:"achievements_unlocked" gorm:"default:0"`
	ChallengesCompleted  int64 `json:"challenges_completed" gorm:"default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	// Optimistic lock counter — concurrent updates to the same row retry on
	// a version mismatch instead of silently losing a grant
	Version int64 `json:"-" gorm:"default:0"`

	Timestamps
}

// Rank is the coarse tier derived from level.
type Rank string

const (
	RankBronze   Rank = "bronze"
	RankSilver   Rank = "silver"
	RankGold     Rank = "gold"
	RankPlatinum Rank = "platinum"
	RankDiamond  Rank = "diamond"
	RankMaster   Rank = "master"
	RankLegend   Rank = "legend"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
