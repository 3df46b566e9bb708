package services

import (
	"fmt"
	"log"
	"time"

	"fitness-progression-system/models"
)

// StreakOutcome names what a workout completion did to the user's streak.
type StreakOutcome string

const (
	StreakStarted   StreakOutcome = "started"   // first recorded workout
	StreakExtended  StreakOutcome = "extended"  // consecutive calendar day
	StreakUnchanged StreakOutcome = "unchanged" // second workout same day
	StreakFrozen    StreakOutcome = "frozen"    // gap bridged by a streak freeze
	StreakReset     StreakOutcome = "reset"     // gap with no freeze available
)

// WorkoutResult is returned by RecordWorkoutCompletion.
type WorkoutResult struct {
	XP             *XPResult     `json:"xp"`
	StreakXP       *XPResult     `json:"streak_xp,omitempty"` // set when the streak extended
	Outcome        StreakOutcome `json:"streak_outcome"`
	CurrentStreak  int           `json:"current_streak"`
	LongestStreak  int           `json:"longest_streak"`
	FreezeConsumed bool          `json:"freeze_consumed"`
}

// utcDay truncates a timestamp to its UTC calendar date.
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// calendarDaysBetween returns the whole-day distance between two UTC dates.
func calendarDaysBetween(from, to time.Time) int {
	return int(utcDay(to).Sub(utcDay(from)).Hours() / 24)
}

// resolveStreak decides the new streak value for a workout on day, given the
// current projection state. A workout dated before the last recorded one is a
// caller error (clock skew / backdated completion), never a streak increase.
func resolveStreak(stats *models.UserStats, day time.Time) (int, StreakOutcome, error) {
	if stats.LastWorkoutDate == nil {
		return 1, StreakStarted, nil
	}

	diff := calendarDaysBetween(*stats.LastWorkoutDate, day)
	switch {
	case diff < 0:
		return 0, "", fmt.Errorf("%w: workout date %s predates last workout %s",
			ErrInvalidState, day.Format("2006-01-02"), stats.LastWorkoutDate.Format("2006-01-02"))
	case diff == 0:
		return stats.CurrentStreak, StreakUnchanged, nil
	case diff == 1:
		return stats.CurrentStreak + 1, StreakExtended, nil
	default:
		if stats.StreakFreezesAvailable > 0 {
			return stats.CurrentStreak, StreakFrozen, nil
		}
		return 1, StreakReset, nil
	}
}

// RecordWorkoutCompletion runs the workout cascade: one atomic grant covering
// the WORKOUT_COMPLETE award, streak state, and counters; then the streak
// bonus award, challenge hooks, and achievement scan. Only the first step can
// fail the call — everything after the commit is best-effort and logged.
func (s *ProgressionService) RecordWorkoutCompletion(externalUserID string, date time.Time, perfect bool) (*WorkoutResult, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: zero workout date", ErrInvalidState)
	}
	day := utcDay(date)

	var (
		outcome       StreakOutcome
		newStreak     int
		longestStreak int
		freezeUsed    bool
	)

	meta := map[string]interface{}{
		"workout_date": day.Format("2006-01-02"),
		"perfect":      perfect,
	}
	xpRes, err := s.grant(externalUserID, models.ActionWorkoutComplete,
		models.BaseXPValues[models.ActionWorkoutComplete], meta,
		func(stats *models.UserStats, updates map[string]interface{}) error {
			streak, oc, err := resolveStreak(stats, day)
			if err != nil {
				return err
			}
			newStreak, outcome = streak, oc
			freezeUsed = oc == StreakFrozen

			longestStreak = stats.LongestStreak
			if streak > longestStreak {
				longestStreak = streak
				updates["longest_streak"] = streak
			}
			if freezeUsed {
				updates["streak_freezes_available"] = stats.StreakFreezesAvailable - 1
			}
			updates["current_streak"] = streak
			updates["last_workout_date"] = day
			updates["total_workouts"] = stats.TotalWorkouts + 1
			if perfect {
				updates["perfect_workouts"] = stats.PerfectWorkouts + 1
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	result := &WorkoutResult{
		XP:             xpRes,
		Outcome:        outcome,
		CurrentStreak:  newStreak,
		LongestStreak:  longestStreak,
		FreezeConsumed: freezeUsed,
	}

	// Consecutive-day increment earns its own ledger entry
	if outcome == StreakExtended {
		streakRes, err := s.AwardXP(externalUserID, models.ActionStreakIncrement, 1)
		if err != nil {
			log.Printf("⚠️ [WORKOUT] streak bonus award failed for %s: %v", externalUserID, err)
		} else {
			result.StreakXP = streakRes
		}
	}

	challenges := NewChallengeService(s.DB)
	if _, err := challenges.UpdateProgress(externalUserID, models.ActionWorkoutComplete, nil); err != nil {
		log.Printf("⚠️ [WORKOUT] challenge progress failed for %s: %v", externalUserID, err)
	}
	if outcome == StreakExtended || outcome == StreakStarted {
		streakMeta := map[string]interface{}{"value": newStreak}
		if _, err := challenges.UpdateProgress(externalUserID, models.ActionStreakIncrement, streakMeta); err != nil {
			log.Printf("⚠️ [WORKOUT] streak challenge progress failed for %s: %v", externalUserID, err)
		}
	}
	if _, err := s.achievementService().CheckAchievements(externalUserID); err != nil {
		log.Printf("⚠️ [WORKOUT] achievement check failed for %s: %v", externalUserID, err)
	}

	return result, nil
}
