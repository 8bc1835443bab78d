package handlers

import (
	"dreamstream/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateChallenge handles POST /api/v1/challenges
// @Summary Create a team challenge
// @Param request body models.CreateChallengeRequest true "Challenge"
// @Success 201 {object} models.TeamChallenge
// @Router /api/v1/challenges [post]
func (h *GamificationHandler) CreateChallenge(c *fiber.Ctx) error {
	var req models.CreateChallengeRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	challenge, err := h.service.CreateChallenge(c.UserContext(), req)
	if err != nil {
		return writeError(c, err, "Failed to create challenge")
	}

	return c.Status(fiber.StatusCreated).JSON(challenge)
}

// GetChallenge handles GET /api/v1/challenges/:id
func (h *GamificationHandler) GetChallenge(c *fiber.Ctx) error {
	challenge, err := h.service.GetChallenge(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err, "Failed to load challenge")
	}

	return c.Status(fiber.StatusOK).JSON(challenge)
}

// RecordChallengeProgress handles POST /api/v1/challenges/:id/progress
// @Failure 409 {object} models.ErrorResponse "challenge not active or already completed"
// @Router /api/v1/challenges/{id}/progress [post]
func (h *GamificationHandler) RecordChallengeProgress(c *fiber.Ctx) error {
	var req models.ChallengeProgressRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	challenge, err := h.service.RecordChallengeProgress(c.UserContext(), c.Params("id"), req.ObjectiveID, req.Delta)
	if err != nil {
		return writeError(c, err, "Failed to record progress")
	}

	return c.Status(fiber.StatusOK).JSON(challenge)
}
