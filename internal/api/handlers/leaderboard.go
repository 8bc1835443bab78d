package handlers

import (
	"dreamstream/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetLeaderboard handles GET /api/v1/leaderboard
// @Summary Get leaderboard
// @Description Retrieves one category's leaderboard with pagination
// @Accept json
// @Produce json
// @Param category query string false "individual or team" default(individual)
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination" default(50)
// @Success 200 {object} models.LeaderboardResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/leaderboard [get]
func (h *GamificationHandler) GetLeaderboard(c *fiber.Ctx) error {
	category := models.Category(c.Query("category", string(models.CategoryIndividual)))

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100 // Max limit to prevent abuse
	}

	leaderboard, err := h.service.GetLeaderboard(c.UserContext(), category, offset, limit)
	if err != nil {
		return writeError(c, err, "Failed to retrieve leaderboard")
	}

	return c.Status(fiber.StatusOK).JSON(leaderboard)
}

// GetLeaderboards handles GET /api/v1/leaderboards
// @Summary Top of every leaderboard
// @Router /api/v1/leaderboards [get]
func (h *GamificationHandler) GetLeaderboards(c *fiber.Ctx) error {
	boards, err := h.service.GetLeaderboards(c.UserContext(), c.QueryInt("limit", 10))
	if err != nil {
		return writeError(c, err, "Failed to retrieve leaderboards")
	}

	return c.Status(fiber.StatusOK).JSON(boards)
}

// FindRank handles GET /api/v1/leaderboard/rank/:userId
// @Summary Find a participant's rank
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/leaderboard/rank/{userId} [get]
func (h *GamificationHandler) FindRank(c *fiber.Ctx) error {
	result, err := h.service.FindRank(c.UserContext(), c.Params("userId"))
	if err != nil {
		return writeError(c, err, "User not ranked")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// HealthCheck handles GET /api/v1/health
// @Summary Health check
// @Description Checks the health of the service and its dependencies
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/health [get]
func (h *GamificationHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.service.HealthCheck(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Health check failed",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"message": "All systems operational",
	})
}
