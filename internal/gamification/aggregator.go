package gamification

import (
	"fmt"
	"math"
	"strings"
	"time"

	"dreamstream/internal/models"
)

// Notification tells the caller which message an award should produce
type Notification string

const (
	NotificationPointsAdded Notification = "points_added"
	NotificationLevelUp     Notification = "level_up"
)

// AwardResult is the outcome of AwardPoints
type AwardResult struct {
	Record        models.ExperienceRecord
	Delta         int64
	Reason        string
	PreviousLevel int
	Level         int
	LeveledUp     bool
	Notification  Notification
	Progress      Progress
}

// StreakResult is the outcome of CheckStreak. Changed is false when the
// participant had already checked in that day.
type StreakResult struct {
	Streak  int  `json:"streak"`
	Changed bool `json:"changed"`
}

// Aggregator applies award and streak events to experience records. It holds
// no mutable state; every method returns a new record and leaves its input
// untouched.
type Aggregator struct {
	curve Curve
	rules []BadgeRule
}

// NewAggregator validates the curve and returns an aggregator. A nil rule set
// disables automatic badges.
func NewAggregator(curve Curve, rules []BadgeRule) (*Aggregator, error) {
	if err := curve.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{curve: curve, rules: rules}, nil
}

// Curve returns the level curve in use
func (a *Aggregator) Curve() Curve {
	return a.curve
}

// Derive recomputes the level of a record loaded from storage
func (a *Aggregator) Derive(record models.ExperienceRecord) (models.ExperienceRecord, Progress, error) {
	if err := validateRecord(record); err != nil {
		return models.ExperienceRecord{}, Progress{}, err
	}
	p, err := a.curve.Progress(record.TotalPoints)
	if err != nil {
		return models.ExperienceRecord{}, Progress{}, err
	}
	out := record.Clone()
	out.Level = p.Level
	return out, p, nil
}

// AwardPoints adds delta to the record's total and recomputes its level
func (a *Aggregator) AwardPoints(record models.ExperienceRecord, delta int64, reason string) (AwardResult, error) {
	if delta <= 0 {
		return AwardResult{}, fmt.Errorf("%w: point delta must be positive, got %d", ErrInvalidInput, delta)
	}
	if err := validateRecord(record); err != nil {
		return AwardResult{}, err
	}
	if record.TotalPoints > math.MaxInt64-delta {
		return AwardResult{}, fmt.Errorf("%w: award of %d would overflow total %d", ErrInvalidInput, delta, record.TotalPoints)
	}

	before, err := a.curve.Progress(record.TotalPoints)
	if err != nil {
		return AwardResult{}, err
	}

	next := record.Clone()
	next.TotalPoints += delta

	after, err := a.curve.Progress(next.TotalPoints)
	if err != nil {
		return AwardResult{}, err
	}
	next.Level = after.Level

	res := AwardResult{
		Record:        next,
		Delta:         delta,
		Reason:        reason,
		PreviousLevel: before.Level,
		Level:         after.Level,
		LeveledUp:     after.Level > before.Level,
		Notification:  NotificationPointsAdded,
		Progress:      after,
	}
	if res.LeveledUp {
		res.Notification = NotificationLevelUp
	}
	return res, nil
}

// AwardBadge adds badgeID to the record. Awarding a badge the record already
// holds returns the record unchanged and awarded=false.
func (a *Aggregator) AwardBadge(record models.ExperienceRecord, badgeID string) (models.ExperienceRecord, bool, error) {
	badgeID = strings.TrimSpace(badgeID)
	if badgeID == "" {
		return models.ExperienceRecord{}, false, fmt.Errorf("%w: badge id is empty", ErrInvalidInput)
	}
	if record.Badges.Has(badgeID) {
		return record, false, nil
	}

	next := record.Clone()
	next.Badges, _ = next.Badges.With(badgeID)
	return next, true, nil
}

// CheckStreak applies a check-in made on today given the previous active
// date. A zero lastActive means the participant never checked in.
func (a *Aggregator) CheckStreak(record models.ExperienceRecord, lastActive, today time.Time) (models.ExperienceRecord, StreakResult, error) {
	if err := validateRecord(record); err != nil {
		return models.ExperienceRecord{}, StreakResult{}, err
	}

	next := record.Clone()
	res := StreakResult{Streak: record.CurrentStreak}

	if lastActive.IsZero() {
		next.CurrentStreak = 1
		res = StreakResult{Streak: 1, Changed: true}
	} else {
		days := calendarDaysBetween(lastActive, today)
		switch {
		case days < 0:
			return models.ExperienceRecord{}, StreakResult{}, fmt.Errorf("%w: check-in %s precedes last activity %s",
				ErrInvalidInput, today.Format(time.DateOnly), lastActive.Format(time.DateOnly))
		case days == 0:
			// already checked in today
		case days == 1:
			next.CurrentStreak++
			res = StreakResult{Streak: next.CurrentStreak, Changed: true}
		default:
			next.CurrentStreak = 1
			res = StreakResult{Streak: 1, Changed: true}
		}
	}

	if res.Changed {
		t := today
		next.LastActiveAt = &t
	}
	next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
	return next, res, nil
}

// EvaluateBadges awards every configured rule the record satisfies and
// returns the ids that were newly awarded
func (a *Aggregator) EvaluateBadges(record models.ExperienceRecord) (models.ExperienceRecord, []string, error) {
	derived, progress, err := a.Derive(record)
	if err != nil {
		return models.ExperienceRecord{}, nil, err
	}

	var awarded []string
	for _, rule := range a.rules {
		if !rule.Satisfied(derived, progress) {
			continue
		}
		var ok bool
		derived, ok, err = a.AwardBadge(derived, rule.ID)
		if err != nil {
			return models.ExperienceRecord{}, nil, err
		}
		if ok {
			awarded = append(awarded, rule.ID)
		}
	}
	return derived, awarded, nil
}

func validateRecord(r models.ExperienceRecord) error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: record has no user id", ErrInvalidInput)
	case r.TotalPoints < 0:
		return fmt.Errorf("%w: record %s has negative points %d", ErrInvalidInput, r.UserID, r.TotalPoints)
	case r.CurrentStreak < 0 || r.LongestStreak < 0:
		return fmt.Errorf("%w: record %s has a negative streak", ErrInvalidInput, r.UserID)
	}
	return nil
}

// calendarDaysBetween counts calendar days from a to b in b's location
func calendarDaysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
