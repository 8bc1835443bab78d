package gamification

import (
	"errors"
	"testing"
	"time"

	"dreamstream/internal/models"

	"github.com/bmizerany/assert"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(DefaultCurve, DefaultBadgeRules())
	if err != nil {
		t.Fatalf("NewAggregator error: %v", err)
	}
	return agg
}

func day(n int) time.Time {
	return time.Date(2026, time.March, n, 9, 30, 0, 0, time.UTC)
}

func TestNewAggregatorRejectsBadCurve(t *testing.T) {
	_, err := NewAggregator(Curve{Base: 0}, nil)
	assert.T(t, errors.Is(err, ErrInvalidInput))
}

func TestAwardPointsLevelUpBoundary(t *testing.T) {
	agg := newTestAggregator(t)
	rec := models.ExperienceRecord{UserID: "u1", TotalPoints: 999}

	res, err := agg.AwardPoints(rec, 1, "daily login")
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(1000), res.Record.TotalPoints)
	assert.Equal(t, 1, res.PreviousLevel)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, 2, res.Record.Level)
	assert.T(t, res.LeveledUp)
	assert.Equal(t, NotificationLevelUp, res.Notification)
	assert.Equal(t, "daily login", res.Reason)

	// input untouched
	assert.Equal(t, int64(999), rec.TotalPoints)
}

func TestAwardPointsWithoutLevelUp(t *testing.T) {
	agg := newTestAggregator(t)
	res, err := agg.AwardPoints(models.ExperienceRecord{UserID: "u1"}, 10, "")
	assert.Equal(t, nil, err)
	assert.T(t, !res.LeveledUp)
	assert.Equal(t, NotificationPointsAdded, res.Notification)
	assert.Equal(t, int64(1000), res.Progress.NextLevelThreshold)
}

func TestAwardPointsRejectsNonPositiveDelta(t *testing.T) {
	agg := newTestAggregator(t)
	for _, delta := range []int64{0, -5} {
		_, err := agg.AwardPoints(models.ExperienceRecord{UserID: "u1"}, delta, "x")
		assert.T(t, errors.Is(err, ErrInvalidInput), delta)
	}
}

func TestAwardPointsRejectsMalformedRecord(t *testing.T) {
	agg := newTestAggregator(t)
	_, err := agg.AwardPoints(models.ExperienceRecord{}, 5, "x")
	assert.T(t, errors.Is(err, ErrInvalidInput))

	_, err = agg.AwardPoints(models.ExperienceRecord{UserID: "u", TotalPoints: -1}, 5, "x")
	assert.T(t, errors.Is(err, ErrInvalidInput))
}

func TestAwardBadgeIdempotent(t *testing.T) {
	agg := newTestAggregator(t)
	rec := models.ExperienceRecord{UserID: "u1"}

	once, awarded, err := agg.AwardBadge(rec, "X")
	assert.Equal(t, nil, err)
	assert.T(t, awarded)

	twice, awarded, err := agg.AwardBadge(once, "X")
	assert.Equal(t, nil, err)
	assert.T(t, !awarded)
	assert.Equal(t, once.Badges, twice.Badges)
	assert.Equal(t, models.BadgeSet{"X"}, twice.Badges)

	_, _, err = agg.AwardBadge(rec, "  ")
	assert.T(t, errors.Is(err, ErrInvalidInput))
}

func TestAwardBadgeUnsortedSet(t *testing.T) {
	agg := newTestAggregator(t)
	rec := models.ExperienceRecord{UserID: "u1", Badges: models.BadgeSet{"zeta", "alpha"}}

	out, awarded, err := agg.AwardBadge(rec, "alpha")
	assert.Equal(t, nil, err)
	assert.T(t, !awarded)
	assert.Equal(t, 2, len(out.Badges))

	out, awarded, err = agg.AwardBadge(rec, "mid")
	assert.Equal(t, nil, err)
	assert.T(t, awarded)
	assert.Equal(t, models.BadgeSet{"alpha", "mid", "zeta"}, out.Badges)
}

func TestCheckStreak(t *testing.T) {
	agg := newTestAggregator(t)

	cases := []struct {
		name        string
		current     int
		longest     int
		last        time.Time
		today       time.Time
		wantStreak  int
		wantChanged bool
		wantLongest int
	}{
		{"first check-in", 0, 0, time.Time{}, day(1), 1, true, 1},
		{"same day", 3, 5, day(4), day(4).Add(6 * time.Hour), 3, false, 5},
		{"next day", 3, 3, day(4), day(5), 4, true, 4},
		{"gap resets", 4, 7, day(1), day(5), 1, true, 7},
		{"next day late night", 1, 1, day(4).Add(14 * time.Hour), day(5).Add(-9 * time.Hour), 2, true, 2},
	}

	for _, c := range cases {
		rec := models.ExperienceRecord{UserID: "u1", CurrentStreak: c.current, LongestStreak: c.longest}
		next, res, err := agg.CheckStreak(rec, c.last, c.today)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if res.Streak != c.wantStreak || res.Changed != c.wantChanged || next.LongestStreak != c.wantLongest {
			t.Fatalf("%s: got streak=%d changed=%v longest=%d", c.name, res.Streak, res.Changed, next.LongestStreak)
		}
		assert.Equal(t, res.Streak, next.CurrentStreak)
		if res.Changed {
			assert.Equal(t, c.today, *next.LastActiveAt)
		}
	}
}

func TestCheckStreakRejectsTimeTravel(t *testing.T) {
	agg := newTestAggregator(t)
	_, _, err := agg.CheckStreak(models.ExperienceRecord{UserID: "u1"}, day(5), day(4))
	assert.T(t, errors.Is(err, ErrInvalidInput))
}

func TestCheckStreakLongestNeverDecreases(t *testing.T) {
	agg := newTestAggregator(t)
	rec := models.ExperienceRecord{UserID: "u1"}
	var last time.Time
	prevLongest := 0

	for _, d := range []int{1, 2, 3, 3, 4, 9, 10, 20, 21, 22, 23, 24, 25} {
		next, _, err := agg.CheckStreak(rec, last, day(d))
		assert.Equal(t, nil, err)
		if next.LongestStreak < prevLongest {
			t.Fatalf("longest streak decreased on day %d: %d -> %d", d, prevLongest, next.LongestStreak)
		}
		if next.LongestStreak < next.CurrentStreak {
			t.Fatalf("longest %d below current %d", next.LongestStreak, next.CurrentStreak)
		}
		prevLongest = next.LongestStreak
		rec = next
		last = *next.LastActiveAt
	}
	assert.Equal(t, 6, rec.LongestStreak)
}

func TestEvaluateBadges(t *testing.T) {
	agg := newTestAggregator(t)
	rec := models.ExperienceRecord{UserID: "u1", TotalPoints: 1500, LongestStreak: 8, Badges: models.BadgeSet{"first_points"}}

	next, awarded, err := agg.EvaluateBadges(rec)
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"points_1k", "streak_7"}, awarded)
	assert.Equal(t, models.BadgeSet{"first_points", "points_1k", "streak_7"}, next.Badges)
	assert.Equal(t, 2, next.Level)

	_, again, err := agg.EvaluateBadges(next)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(again))
}
