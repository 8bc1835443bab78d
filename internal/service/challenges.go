package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreamstream/internal/gamification"
	"dreamstream/internal/models"

	"github.com/google/uuid"
)

// CreateChallenge stores a new team challenge. Its initial status follows
// from the current time.
func (s *GamificationService) CreateChallenge(ctx context.Context, req models.CreateChallengeRequest) (*models.TeamChallenge, error) {
	now := s.now()

	c := models.TeamChallenge{
		ID:           uuid.NewString(),
		TeamID:       req.TeamID,
		Title:        req.Title,
		Status:       models.ChallengeUpcoming,
		RewardPoints: req.RewardPoints,
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
	}
	for i, o := range req.Objectives {
		c.Objectives = append(c.Objectives, models.ChallengeObjective{
			ID:          uuid.NewString(),
			ChallengeID: c.ID,
			Position:    i,
			Description: o.Description,
			Target:      o.Target,
		})
	}

	if err := gamification.ValidateChallenge(c); err != nil {
		return nil, err
	}
	c, _ = gamification.AdvanceChallenge(c, now)

	if _, err := s.ensureRecord(ctx, c.TeamID, models.CategoryTeam); err != nil {
		return nil, err
	}
	if err := s.challenges.CreateChallenge(ctx, &c); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	s.log(ctx).Info().
		Str("challenge_id", c.ID).
		Str("team_id", c.TeamID).
		Str("status", string(c.Status)).
		Msg("challenge created")
	return &c, nil
}

// GetChallenge returns a challenge with its status as of now. Time-driven
// transitions are persisted by AdvanceChallenges, not here.
func (s *GamificationService) GetChallenge(ctx context.Context, id string) (*models.TeamChallenge, error) {
	c, err := s.challenges.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	current, _ := gamification.AdvanceChallenge(*c, s.now())
	return &current, nil
}

// RecordChallengeProgress adds delta to one objective. The team is rewarded
// by whichever call completes the challenge.
func (s *GamificationService) RecordChallengeProgress(ctx context.Context, id, objectiveID string, delta int64) (*models.TeamChallenge, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		c, err := s.challenges.GetChallenge(ctx, id)
		if err != nil {
			return nil, err
		}

		next, err := gamification.RecordChallengeProgress(*c, objectiveID, delta, s.now())
		if err != nil {
			return nil, err
		}

		err = s.challenges.SaveChallenge(ctx, &next)
		if errors.Is(err, gamification.ErrConflict) {
			s.log(ctx).Debug().Str("challenge_id", id).Int("attempt", attempt).Msg("challenge changed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save challenge: %w", err)
		}

		if next.Status == models.ChallengeCompleted {
			s.rewardTeam(ctx, next)
		}
		return &next, nil
	}

	return nil, fmt.Errorf("%w: challenge %s still contended after %d attempts",
		gamification.ErrConflict, id, maxWriteAttempts)
}

// AdvanceChallenges persists time-driven transitions of every open challenge
// and returns how many changed status
func (s *GamificationService) AdvanceChallenges(ctx context.Context, now time.Time) (int, error) {
	open, err := s.challenges.ListOpenChallenges(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list open challenges: %w", err)
	}

	transitions := 0
	for _, c := range open {
		next, changed := gamification.AdvanceChallenge(c, now)
		if !changed {
			continue
		}

		if err := s.challenges.SaveChallenge(ctx, &next); err != nil {
			if errors.Is(err, gamification.ErrConflict) {
				// someone else moved it; the next tick sees the new state
				continue
			}
			return transitions, fmt.Errorf("failed to save challenge %s: %w", c.ID, err)
		}
		transitions++

		s.log(ctx).Info().
			Str("challenge_id", next.ID).
			Str("from", string(c.Status)).
			Str("to", string(next.Status)).
			Msg("challenge advanced")

		if next.Status == models.ChallengeCompleted && gamification.ObjectivesMet(next) {
			s.rewardTeam(ctx, next)
		}
	}
	return transitions, nil
}

// rewardTeam credits a completed challenge's reward to its team
func (s *GamificationService) rewardTeam(ctx context.Context, c models.TeamChallenge) {
	if c.RewardPoints <= 0 {
		return
	}

	_, err := s.AwardPoints(ctx, c.TeamID, models.CategoryTeam, c.RewardPoints, "challenge:"+c.Title)
	if err != nil {
		s.log(ctx).Error().
			Err(err).
			Str("challenge_id", c.ID).
			Str("team_id", c.TeamID).
			Msg("failed to reward team for completed challenge")
	}
}
