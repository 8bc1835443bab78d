package handlers

import (
	"context"
	"errors"

	"dreamstream/internal/gamification"
	"dreamstream/internal/middleware"
	"dreamstream/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Service is the gamification service as seen by the HTTP layer
type Service interface {
	AwardPoints(ctx context.Context, userID string, category models.Category, delta int64, reason string) (*models.AwardPointsResponse, error)
	AwardBadge(ctx context.Context, userID string, category models.Category, badgeID string) (bool, error)
	CheckIn(ctx context.Context, userID string, category models.Category) (*models.CheckInResponse, error)
	GetProfile(ctx context.Context, userID string) (*models.ProfileResponse, error)
	PointHistory(ctx context.Context, userID string, limit int) ([]models.PointEvent, error)
	GetLeaderboard(ctx context.Context, category models.Category, offset, limit int) (*models.LeaderboardResponse, error)
	GetLeaderboards(ctx context.Context, limit int) (map[models.Category][]models.LeaderboardEntry, error)
	FindRank(ctx context.Context, userID string) (*models.RankResponse, error)
	CreateChallenge(ctx context.Context, req models.CreateChallengeRequest) (*models.TeamChallenge, error)
	GetChallenge(ctx context.Context, id string) (*models.TeamChallenge, error)
	RecordChallengeProgress(ctx context.Context, id, objectiveID string, delta int64) (*models.TeamChallenge, error)
	HealthCheck(ctx context.Context) error
}

// GamificationHandler handles HTTP requests for points, badges, streaks,
// leaderboards and team challenges
type GamificationHandler struct {
	service   Service
	validator *validator.Validate
}

// NewGamificationHandler creates a new gamification handler
func NewGamificationHandler(service Service) *GamificationHandler {
	return &GamificationHandler{
		service:   service,
		validator: validator.New(),
	}
}

// Register mounts every route on router
func (h *GamificationHandler) Register(router fiber.Router) {
	router.Post("/points", h.AwardPoints)
	router.Post("/badges", h.AwardBadge)
	router.Post("/checkins", h.CheckIn)

	router.Get("/users/:userId", h.GetProfile)
	router.Get("/users/:userId/events", h.PointHistory)

	router.Get("/leaderboard", h.GetLeaderboard)
	router.Get("/leaderboard/rank/:userId", h.FindRank)
	router.Get("/leaderboards", h.GetLeaderboards)

	router.Post("/challenges", h.CreateChallenge)
	router.Get("/challenges/:id", h.GetChallenge)
	router.Post("/challenges/:id/progress", h.RecordChallengeProgress)

	router.Get("/health", h.HealthCheck)
}

// parseBody decodes and validates a JSON body, writing a 400 on failure.
// The returned bool is false when the response has already been written.
func (h *GamificationHandler) parseBody(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	if err := h.validator.Struct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}
	return true, nil
}

// writeError maps an error kind to its status code
func writeError(c *fiber.Ctx, err error, summary string) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, gamification.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, gamification.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, gamification.ErrConflict),
		errors.Is(err, gamification.ErrChallengeClosed),
		errors.Is(err, gamification.ErrChallengeNotActive):
		status = fiber.StatusConflict
	}

	if status == fiber.StatusInternalServerError {
		zerolog.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg(summary)
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error:     summary,
		Message:   err.Error(),
		RequestID: middleware.GetRequestID(c),
	})
}
