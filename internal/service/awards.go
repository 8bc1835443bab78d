package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"dreamstream/internal/gamification"
	"dreamstream/internal/models"
	"dreamstream/internal/repository"
)

// AwardPoints adds delta points to a participant. The increment happens
// atomically in the store and the level is derived from the authoritative
// post-increment total, never from a cached value.
func (s *GamificationService) AwardPoints(ctx context.Context, userID string, category models.Category, delta int64, reason string) (*models.AwardPointsResponse, error) {
	if delta <= 0 {
		return nil, fmt.Errorf("%w: point delta must be positive, got %d", gamification.ErrInvalidInput, delta)
	}
	current, err := s.ensureRecord(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	if current.TotalPoints > math.MaxInt64-delta {
		return nil, fmt.Errorf("%w: %s has %d points, adding %d overflows",
			gamification.ErrInvalidInput, userID, current.TotalPoints, delta)
	}

	total, err := s.records.AtomicIncrement(ctx, userID, repository.FieldTotalPoints, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to increment points: %w", err)
	}

	rec, err := s.records.ReadRecord(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read record: %w", err)
	}

	before := rec.Clone()
	before.TotalPoints = total - delta
	award, err := s.agg.AwardPoints(before, delta, reason)
	if err != nil {
		return nil, err
	}

	// The points are already committed, so a badge failure must not fail
	// the award. Badges are re-evaluated on the participant's next event.
	updated, newBadges, err := s.evaluateBadges(ctx, userID)
	if err != nil {
		s.log(ctx).Warn().Err(err).Str("user_id", userID).Msg("badge evaluation deferred")
		updated, newBadges = *rec, nil
	}
	s.refreshCacheEntry(ctx, updated)

	ev := models.PointEvent{
		UserID:     userID,
		Delta:      delta,
		Reason:     reason,
		TotalAfter: total,
		LeveledUp:  award.LeveledUp,
		CreatedAt:  s.now(),
	}
	if err := s.events.Submit(ev); err != nil {
		s.log(ctx).Warn().Err(err).Str("user_id", userID).Msg("point event not queued")
	}

	s.log(ctx).Info().
		Str("user_id", userID).
		Int64("delta", delta).
		Int64("total", total).
		Int("level", award.Level).
		Str("notification", string(award.Notification)).
		Msg("points awarded")

	if newBadges == nil {
		newBadges = []string{}
	}
	return &models.AwardPointsResponse{
		UserID:             userID,
		TotalPoints:        total,
		Level:              award.Level,
		PreviousLevel:      award.PreviousLevel,
		NextLevelThreshold: award.Progress.NextLevelThreshold,
		LeveledUp:          award.LeveledUp,
		Notification:       string(award.Notification),
		NewBadges:          newBadges,
	}, nil
}

// AwardBadge grants badgeID to a participant. Repeated delivery of the same
// grant reports awarded=false.
func (s *GamificationService) AwardBadge(ctx context.Context, userID string, category models.Category, badgeID string) (bool, error) {
	if _, err := s.ensureRecord(ctx, userID, category); err != nil {
		return false, err
	}

	updated, awarded, err := s.mutateRecord(ctx, userID, func(rec models.ExperienceRecord) (models.ExperienceRecord, bool, error) {
		return s.agg.AwardBadge(rec, badgeID)
	})
	if err != nil {
		return false, err
	}

	if awarded {
		s.refreshCacheEntry(ctx, updated)
		s.log(ctx).Info().Str("user_id", userID).Str("badge", badgeID).Msg("badge awarded")
	}
	return awarded, nil
}

// CheckIn records today's activity and updates the participant's streak
func (s *GamificationService) CheckIn(ctx context.Context, userID string, category models.Category) (*models.CheckInResponse, error) {
	if _, err := s.ensureRecord(ctx, userID, category); err != nil {
		return nil, err
	}

	today := s.now()
	var result gamification.StreakResult
	var badgesChanged bool

	updated, _, err := s.mutateRecord(ctx, userID, func(rec models.ExperienceRecord) (models.ExperienceRecord, bool, error) {
		var last time.Time
		if rec.LastActiveAt != nil {
			last = *rec.LastActiveAt
		}

		next, res, err := s.agg.CheckStreak(rec, last, today)
		if err != nil {
			return models.ExperienceRecord{}, false, err
		}
		next, awarded, err := s.agg.EvaluateBadges(next)
		if err != nil {
			return models.ExperienceRecord{}, false, err
		}

		result = res
		badgesChanged = len(awarded) > 0
		return next, res.Changed || badgesChanged, nil
	})
	if err != nil {
		return nil, err
	}

	if badgesChanged {
		s.refreshCacheEntry(ctx, updated)
	}

	return &models.CheckInResponse{
		UserID:        userID,
		Streak:        result.Streak,
		Changed:       result.Changed,
		LongestStreak: updated.LongestStreak,
	}, nil
}

// evaluateBadges applies the badge rules to the stored record
func (s *GamificationService) evaluateBadges(ctx context.Context, userID string) (models.ExperienceRecord, []string, error) {
	var newBadges []string
	updated, _, err := s.mutateRecord(ctx, userID, func(rec models.ExperienceRecord) (models.ExperienceRecord, bool, error) {
		next, awarded, err := s.agg.EvaluateBadges(rec)
		if err != nil {
			return models.ExperienceRecord{}, false, err
		}
		newBadges = awarded
		return next, len(awarded) > 0, nil
	})
	return updated, newBadges, err
}

// PointHistory returns a participant's most recent ledger entries
func (s *GamificationService) PointHistory(ctx context.Context, userID string, limit int) ([]models.PointEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	events, err := s.records.PointEvents(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load point history: %w", err)
	}
	return events, nil
}
