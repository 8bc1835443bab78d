package gamification

import (
	"errors"
	"testing"
	"time"

	"dreamstream/internal/models"

	"github.com/bmizerany/assert"
)

var (
	challengeStart = time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	challengeEnd   = challengeStart.Add(7 * 24 * time.Hour)
)

func newChallenge(objectives ...models.ChallengeObjective) models.TeamChallenge {
	return models.TeamChallenge{
		ID:         "c1",
		TeamID:     "team-a",
		Status:     models.ChallengeUpcoming,
		StartsAt:   challengeStart,
		EndsAt:     challengeEnd,
		Objectives: objectives,
	}
}

func TestAdvanceChallenge(t *testing.T) {
	c := newChallenge(models.ChallengeObjective{ID: "o1", Target: 10})

	next, changed := AdvanceChallenge(c, challengeStart.Add(-time.Hour))
	assert.T(t, !changed)
	assert.Equal(t, models.ChallengeUpcoming, next.Status)

	next, changed = AdvanceChallenge(c, challengeStart)
	assert.T(t, changed)
	assert.Equal(t, models.ChallengeActive, next.Status)

	next, changed = AdvanceChallenge(next, challengeEnd)
	assert.T(t, changed)
	assert.Equal(t, models.ChallengeCompleted, next.Status)
	assert.Equal(t, challengeEnd, *next.CompletedAt)

	again, changed := AdvanceChallenge(next, challengeEnd.Add(time.Hour))
	assert.T(t, !changed)
	assert.Equal(t, challengeEnd, *again.CompletedAt)
}

func TestAdvanceUpcomingPastEndCompletes(t *testing.T) {
	c := newChallenge(models.ChallengeObjective{ID: "o1", Target: 10})
	next, changed := AdvanceChallenge(c, challengeEnd.Add(time.Minute))
	assert.T(t, changed)
	assert.Equal(t, models.ChallengeCompleted, next.Status)
}

func TestRecordProgressCompletesOnTarget(t *testing.T) {
	c := newChallenge(models.ChallengeObjective{ID: "o1", Target: 10, Progress: 4})
	now := challengeStart.Add(time.Hour)

	next, err := RecordChallengeProgress(c, "o1", 6, now)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(10), next.Objectives[0].Progress)
	assert.Equal(t, models.ChallengeCompleted, next.Status)
	assert.Equal(t, now, *next.CompletedAt)

	// original untouched
	assert.Equal(t, int64(4), c.Objectives[0].Progress)
}

func TestRecordProgressClampsAndWaitsForAllObjectives(t *testing.T) {
	c := newChallenge(
		models.ChallengeObjective{ID: "o1", Target: 10},
		models.ChallengeObjective{ID: "o2", Target: 3},
	)
	now := challengeStart.Add(time.Hour)

	next, err := RecordChallengeProgress(c, "o1", 25, now)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(10), next.Objectives[0].Progress)
	assert.Equal(t, models.ChallengeActive, next.Status)

	next, err = RecordChallengeProgress(next, "o2", 3, now)
	assert.Equal(t, nil, err)
	assert.Equal(t, models.ChallengeCompleted, next.Status)
}

func TestRecordProgressErrors(t *testing.T) {
	c := newChallenge(models.ChallengeObjective{ID: "o1", Target: 10})
	during := challengeStart.Add(time.Hour)

	_, err := RecordChallengeProgress(c, "o1", 0, during)
	assert.T(t, errors.Is(err, ErrInvalidInput))

	_, err = RecordChallengeProgress(c, "o1", 1, challengeStart.Add(-time.Hour))
	assert.T(t, errors.Is(err, ErrChallengeNotActive))

	_, err = RecordChallengeProgress(c, "missing", 1, during)
	assert.T(t, errors.Is(err, ErrNotFound))

	_, err = RecordChallengeProgress(c, "o1", 1, challengeEnd)
	assert.T(t, errors.Is(err, ErrChallengeClosed))

	done, _ := AdvanceChallenge(c, challengeEnd)
	_, err = RecordChallengeProgress(done, "o1", 1, during)
	assert.T(t, errors.Is(err, ErrChallengeClosed))
}

func TestValidateChallenge(t *testing.T) {
	assert.Equal(t, nil, ValidateChallenge(newChallenge(models.ChallengeObjective{ID: "o1", Target: 1})))

	noObjectives := newChallenge()
	assert.T(t, errors.Is(ValidateChallenge(noObjectives), ErrInvalidInput))

	backwards := newChallenge(models.ChallengeObjective{ID: "o1", Target: 1})
	backwards.EndsAt = backwards.StartsAt
	assert.T(t, errors.Is(ValidateChallenge(backwards), ErrInvalidInput))

	zeroTarget := newChallenge(models.ChallengeObjective{ID: "o1"})
	assert.T(t, errors.Is(ValidateChallenge(zeroTarget), ErrInvalidInput))
}
