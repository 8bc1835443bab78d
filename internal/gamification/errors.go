package gamification

import "errors"

var (
	// ErrInvalidInput is returned for negative experience, non-positive deltas
	// and malformed records. Inputs are never silently clamped.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a participant or challenge does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by the store when an optimistic write lost a race.
	// Callers re-read and retry; the core never retries on its own.
	ErrConflict = errors.New("conflict")

	// ErrChallengeClosed is returned for progress on a completed challenge
	ErrChallengeClosed = errors.New("challenge already completed")

	// ErrChallengeNotActive is returned for progress before a challenge starts
	ErrChallengeNotActive = errors.New("challenge has not started")
)
