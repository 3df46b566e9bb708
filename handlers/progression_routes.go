// handlers/progression_routes.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"fitness-progression-system/middleware"
	"fitness-progression-system/models"
	"fitness-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps domain errors to HTTP statuses; anything else is a
// storage-layer failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusServiceUnavailable
	}
}

func errorJSON(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}

func SetupProgressionRoutes(
	app *fiber.App,
	progression *services.ProgressionService,
	achievements *services.AchievementService,
	leaderboard *services.LeaderboardService,
) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/stats", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		stats, err := progression.GetStats(userID)
		if err != nil {
			return errorJSON(c, "failed to fetch stats", err)
		}
		progress, err := services.LevelProgress(stats.XP)
		if err != nil {
			return errorJSON(c, "failed to compute level progress", err)
		}

		return c.JSON(fiber.Map{
			"id":                       stats.ID,
			"xp":                       stats.XP,
			"total_xp_earned":          stats.TotalXPEarned,
			"weekly_xp":                stats.WeeklyXP,
			"level":                    stats.Level,
			"rank":                     stats.Rank,
			"level_progress":           progress,
			"coins":                    stats.Coins,
			"gems":                     stats.Gems,
			"current_streak":           stats.CurrentStreak,
			"longest_streak":           stats.LongestStreak,
			"streak_freezes_available": stats.StreakFreezesAvailable,
			"total_workouts":           stats.TotalWorkouts,
			"perfect_workouts":         stats.PerfectWorkouts,
			"social_score":             stats.SocialScore,
			"achievements_unlocked":    stats.AchievementsUnlocked,
			"challenges_completed":     stats.ChallengesCompleted,
			"last_workout_date":        stats.LastWorkoutDate,
			"last_level_up_at":         stats.LastLevelUpAt,
			"last_rank_up_at":          stats.LastRankUpAt,
		})
	})

	secured.Get("/user/ledger", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))

		events, err := progression.GetLedger(userID, limit)
		if err != nil {
			return errorJSON(c, "failed to fetch ledger", err)
		}
		return c.JSON(events)
	})

	secured.Post("/user/workouts/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Date    *time.Time `json:"date"`
			Perfect bool       `json:"perfect"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON", "cause": err.Error(),
			})
		}
		date := time.Now().UTC()
		if req.Date != nil {
			date = *req.Date
		}

		result, err := progression.RecordWorkoutCompletion(userID, date, req.Perfect)
		if err != nil {
			return errorJSON(c, "workout completion failed", err)
		}
		return c.JSON(result)
	})

	// Simple action triggers: set logged, PR detected, social interaction
	secured.Post("/user/actions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Action     models.ActionType `json:"action"`
			Multiplier *float64          `json:"multiplier"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON", "cause": err.Error(),
			})
		}
		multiplier := 1.0
		if req.Multiplier != nil {
			multiplier = *req.Multiplier
		}

		result, err := progression.RecordAction(userID, req.Action, multiplier)
		if err != nil {
			return errorJSON(c, "action award failed", err)
		}
		return c.JSON(result)
	})

	secured.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		list, err := achievements.GetUserAchievements(userID)
		if err != nil {
			return errorJSON(c, "failed to fetch achievements", err)
		}
		return c.JSON(list)
	})

	secured.Post("/user/achievements/check", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		unlocked, err := achievements.CheckAchievements(userID)
		if err != nil {
			return errorJSON(c, "achievement check failed", err)
		}
		if unlocked == nil {
			unlocked = []models.AchievementDefinition{}
		}
		return c.JSON(unlocked)
	})

	secured.Post("/user/coins/spend", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Coins int64 `json:"coins"`
			Gems  int64 `json:"gems"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON", "cause": err.Error(),
			})
		}
		if err := progression.SpendCoins(userID, req.Coins, req.Gems); err != nil {
			return errorJSON(c, "spend failed", err)
		}
		return c.JSON(fiber.Map{"message": "balance updated"})
	})

	secured.Get("/leaderboard/weekly", func(c *fiber.Ctx) error {
		if leaderboard == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "weekly leaderboard is disabled",
			})
		}
		limit, _ := strconv.Atoi(c.Query("limit", "25"))
		entries, err := leaderboard.Top(c.Context(), limit)
		if err != nil {
			return errorJSON(c, "failed to fetch leaderboard", err)
		}
		return c.JSON(entries)
	})

	// Admin endpoints
	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	admin.Post("/users/:user_id/stats", func(c *fiber.Ctx) error {
		stats, err := progression.EnsureStatsRecord(c.Params("user_id"))
		if err != nil {
			return errorJSON(c, "failed to create stats record", err)
		}
		return c.JSON(stats)
	})

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			XP     int64  `json:"xp"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON", "cause": err.Error(),
			})
		}

		result, err := progression.GrantXP(req.UserID, models.ActionAchievementBonus, req.XP)
		if err != nil {
			return errorJSON(c, "XP grant failed", err)
		}
		return c.JSON(result)
	})

	admin.Post("/users/:user_id/freezes", func(c *fiber.Ctx) error {
		var req struct {
			Count int `json:"count"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON", "cause": err.Error(),
			})
		}
		if err := progression.AddStreakFreezes(c.Params("user_id"), req.Count); err != nil {
			return errorJSON(c, "failed to add streak freezes", err)
		}
		return c.JSON(fiber.Map{"message": "streak freezes added"})
	})
}
