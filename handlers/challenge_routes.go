// handlers/challenge_routes.go
package handlers

import (
	"fitness-progression-system/middleware"
	"fitness-progression-system/models"
	"fitness-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(
	app *fiber.App,
	challenges *services.ChallengeService,
	progression *services.ProgressionService,
) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Safe to hit on every page load — generation is idempotent per day
	secured.Get("/user/challenges/daily", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		assignments, err := challenges.GenerateDailyChallenges(userID)
		if err != nil {
			return errorJSON(c, "failed to generate daily challenges", err)
		}
		return c.JSON(assignments)
	})

	// Progress hook for collaborating subsystems (plan engine, social feed)
	secured.Post("/user/challenges/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Action   models.ActionType      `json:"action"`
			Metadata map[string]interface{} `json:"metadata"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON", "cause": err.Error(),
			})
		}

		completed, err := challenges.UpdateProgress(userID, req.Action, req.Metadata)
		if err != nil {
			return errorJSON(c, "failed to update challenge progress", err)
		}
		if completed == nil {
			completed = []models.UserChallenge{}
		}
		return c.JSON(completed)
	})

	secured.Post("/user/challenges/:challenge_id/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		challengeID := c.Params("challenge_id")

		rewards, err := challenges.ClaimRewards(userID, challengeID)
		if err != nil {
			return errorJSON(c, "claim failed", err)
		}

		// Disbursement happens here, outside the claim transition: reward
		// computation and payout stay separate
		xpResult, err := progression.GrantXP(userID, models.ActionChallengeReward, rewards.XPReward)
		if err != nil {
			return errorJSON(c, "claim recorded but XP payout failed", err)
		}
		if rewards.CoinsReward > 0 {
			if err := progression.CreditCoins(userID, rewards.CoinsReward, 0); err != nil {
				return errorJSON(c, "claim recorded but coin payout failed", err)
			}
		}

		return c.JSON(fiber.Map{
			"rewards": rewards,
			"xp":      xpResult,
		})
	})
}
