package handlers

import (
	"dreamstream/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AwardPoints handles POST /api/v1/points
// @Summary Award points
// @Description Adds points to a participant and reports any level-up
// @Accept json
// @Produce json
// @Param request body models.AwardPointsRequest true "Award request"
// @Success 200 {object} models.AwardPointsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/points [post]
func (h *GamificationHandler) AwardPoints(c *fiber.Ctx) error {
	var req models.AwardPointsRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	result, err := h.service.AwardPoints(c.UserContext(), req.UserID, req.Category, req.Delta, req.Reason)
	if err != nil {
		return writeError(c, err, "Failed to award points")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// AwardBadge handles POST /api/v1/badges
// @Summary Award a badge
// @Description Grants a badge; granting it again is a no-op
// @Router /api/v1/badges [post]
func (h *GamificationHandler) AwardBadge(c *fiber.Ctx) error {
	var req models.AwardBadgeRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	awarded, err := h.service.AwardBadge(c.UserContext(), req.UserID, req.Category, req.BadgeID)
	if err != nil {
		return writeError(c, err, "Failed to award badge")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id":  req.UserID,
		"badge_id": req.BadgeID,
		"awarded":  awarded,
	})
}

// CheckIn handles POST /api/v1/checkins
// @Summary Daily check-in
// @Description Records activity for today and returns the streak
// @Router /api/v1/checkins [post]
func (h *GamificationHandler) CheckIn(c *fiber.Ctx) error {
	var req models.CheckInRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	result, err := h.service.CheckIn(c.UserContext(), req.UserID, req.Category)
	if err != nil {
		return writeError(c, err, "Failed to check in")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// GetProfile handles GET /api/v1/users/:userId
// @Summary Participant profile
// @Description Points, derived level, progress, badges, streaks and rank
// @Router /api/v1/users/{userId} [get]
func (h *GamificationHandler) GetProfile(c *fiber.Ctx) error {
	profile, err := h.service.GetProfile(c.UserContext(), c.Params("userId"))
	if err != nil {
		return writeError(c, err, "Failed to load profile")
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}

// PointHistory handles GET /api/v1/users/:userId/events
func (h *GamificationHandler) PointHistory(c *fiber.Ctx) error {
	events, err := h.service.PointHistory(c.UserContext(), c.Params("userId"), c.QueryInt("limit", 20))
	if err != nil {
		return writeError(c, err, "Failed to load point history")
	}

	if events == nil {
		events = []models.PointEvent{}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id": c.Params("userId"),
		"data":    events,
	})
}
