package gamification

import (
	"fmt"
	"time"

	"dreamstream/internal/models"
)

// ValidateChallenge checks a challenge before it is stored
func ValidateChallenge(c models.TeamChallenge) error {
	if c.TeamID == "" {
		return fmt.Errorf("%w: challenge has no team", ErrInvalidInput)
	}
	if len(c.Objectives) == 0 {
		return fmt.Errorf("%w: challenge needs at least one objective", ErrInvalidInput)
	}
	if !c.EndsAt.After(c.StartsAt) {
		return fmt.Errorf("%w: challenge must end after it starts", ErrInvalidInput)
	}
	for _, o := range c.Objectives {
		if o.Target <= 0 {
			return fmt.Errorf("%w: objective target must be positive, got %d", ErrInvalidInput, o.Target)
		}
		if o.Progress < 0 || o.Progress > o.Target {
			return fmt.Errorf("%w: objective progress %d outside [0, %d]", ErrInvalidInput, o.Progress, o.Target)
		}
	}
	switch c.Status {
	case "", models.ChallengeUpcoming, models.ChallengeActive, models.ChallengeCompleted:
	default:
		return fmt.Errorf("%w: unknown challenge status %q", ErrInvalidInput, c.Status)
	}
	return nil
}

// ObjectivesMet reports whether every objective reached its target
func ObjectivesMet(c models.TeamChallenge) bool {
	if len(c.Objectives) == 0 {
		return false
	}
	for _, o := range c.Objectives {
		if !o.Satisfied() {
			return false
		}
	}
	return true
}

// AdvanceChallenge applies time-driven transitions. The second result reports
// whether the status changed. Completed challenges are returned as is.
func AdvanceChallenge(c models.TeamChallenge, now time.Time) (models.TeamChallenge, bool) {
	next := c.Clone()
	if next.Status == "" {
		next.Status = models.ChallengeUpcoming
	}
	if next.Status == models.ChallengeCompleted {
		return next, false
	}

	before := next.Status
	if next.Status == models.ChallengeUpcoming && !now.Before(next.StartsAt) {
		next.Status = models.ChallengeActive
	}

	ended := !now.Before(next.EndsAt)
	if ended || (next.Status == models.ChallengeActive && ObjectivesMet(next)) {
		completeChallenge(&next, now)
	}
	return next, next.Status != before
}

// RecordChallengeProgress adds delta to one objective, clamped at its target.
// The challenge completes as soon as every objective is satisfied.
func RecordChallengeProgress(c models.TeamChallenge, objectiveID string, delta int64, now time.Time) (models.TeamChallenge, error) {
	if delta <= 0 {
		return models.TeamChallenge{}, fmt.Errorf("%w: progress delta must be positive, got %d", ErrInvalidInput, delta)
	}
	if c.Status == models.ChallengeCompleted {
		return models.TeamChallenge{}, ErrChallengeClosed
	}

	next, _ := AdvanceChallenge(c, now)
	switch next.Status {
	case models.ChallengeCompleted:
		return models.TeamChallenge{}, ErrChallengeClosed
	case models.ChallengeUpcoming:
		return models.TeamChallenge{}, ErrChallengeNotActive
	}

	idx := -1
	for i, o := range next.Objectives {
		if o.ID == objectiveID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.TeamChallenge{}, fmt.Errorf("%w: objective %s", ErrNotFound, objectiveID)
	}

	obj := &next.Objectives[idx]
	if delta >= obj.Target-obj.Progress {
		obj.Progress = obj.Target
	} else {
		obj.Progress += delta
	}

	if ObjectivesMet(next) {
		completeChallenge(&next, now)
	}
	return next, nil
}

func completeChallenge(c *models.TeamChallenge, now time.Time) {
	c.Status = models.ChallengeCompleted
	t := now
	c.CompletedAt = &t
}
