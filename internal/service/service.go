package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreamstream/internal/gamification"
	"dreamstream/internal/models"

	"github.com/rs/zerolog"
)

// maxWriteAttempts bounds read-modify-write retries on ErrConflict
const maxWriteAttempts = 3

// RecordStore is the authoritative persistence collaborator
type RecordStore interface {
	ReadRecord(ctx context.Context, userID string) (*models.ExperienceRecord, error)
	EnsureRecord(ctx context.Context, userID string, category models.Category) (*models.ExperienceRecord, error)
	WriteRecord(ctx context.Context, rec *models.ExperienceRecord) error
	AtomicIncrement(ctx context.Context, userID, field string, delta int64) (int64, error)
	ListEntries(ctx context.Context, category models.Category) ([]models.ExperienceRecord, error)
	AllRecords(ctx context.Context) ([]models.ExperienceRecord, error)
	PointEvents(ctx context.Context, userID string, limit int) ([]models.PointEvent, error)
	Ping(ctx context.Context) error
}

// ChallengeStore persists team challenges
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, c *models.TeamChallenge) error
	GetChallenge(ctx context.Context, id string) (*models.TeamChallenge, error)
	SaveChallenge(ctx context.Context, c *models.TeamChallenge) error
	ListOpenChallenges(ctx context.Context) ([]models.TeamChallenge, error)
}

// LeaderboardCache holds ranking keys for fast leaderboard reads
type LeaderboardCache interface {
	UpsertEntry(ctx context.Context, category models.Category, entry models.LeaderboardEntry) error
	ListEntries(ctx context.Context, category models.Category) ([]models.LeaderboardEntry, error)
	GetEntry(ctx context.Context, category models.Category, userID string) (*models.LeaderboardEntry, error)
	ReplaceCategory(ctx context.Context, category models.Category, entries []models.LeaderboardEntry) error
	Ping(ctx context.Context) error
}

// EventQueue accepts ledger entries for asynchronous persistence
type EventQueue interface {
	Submit(ev models.PointEvent) error
}

// GamificationService fetches records, runs the pure aggregator and ranker
// over them and writes results back. It owns every read-modify-write cycle.
type GamificationService struct {
	records    RecordStore
	challenges ChallengeStore
	cache      LeaderboardCache
	events     EventQueue
	agg        *gamification.Aggregator
	logger     zerolog.Logger
	now        func() time.Time
}

// NewGamificationService creates a new gamification service
func NewGamificationService(
	records RecordStore,
	challenges ChallengeStore,
	cache LeaderboardCache,
	events EventQueue,
	agg *gamification.Aggregator,
	logger zerolog.Logger,
) *GamificationService {
	return &GamificationService{
		records:    records,
		challenges: challenges,
		cache:      cache,
		events:     events,
		agg:        agg,
		logger:     logger.With().Str("component", "gamification_service").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// mutateRecord runs fn against a fresh read of the record and writes the
// result back, retrying on ErrConflict. fn reports whether it changed anything.
func (s *GamificationService) mutateRecord(
	ctx context.Context,
	userID string,
	fn func(rec models.ExperienceRecord) (models.ExperienceRecord, bool, error),
) (models.ExperienceRecord, bool, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		rec, err := s.records.ReadRecord(ctx, userID)
		if err != nil {
			return models.ExperienceRecord{}, false, err
		}

		next, changed, err := fn(*rec)
		if err != nil {
			return models.ExperienceRecord{}, false, err
		}
		if !changed {
			return next, false, nil
		}

		next.Version = rec.Version
		err = s.records.WriteRecord(ctx, &next)
		if err == nil {
			return next, true, nil
		}
		if !errors.Is(err, gamification.ErrConflict) {
			return models.ExperienceRecord{}, false, err
		}

		s.log(ctx).Debug().
			Str("user_id", userID).
			Int("attempt", attempt).
			Msg("record changed concurrently, retrying")
	}

	return models.ExperienceRecord{}, false, fmt.Errorf("%w: record %s still contended after %d attempts",
		gamification.ErrConflict, userID, maxWriteAttempts)
}

// refreshCacheEntry pushes a record's ranking keys to the cache. The cache is
// best effort; a failure is logged and repaired by the next sync.
func (s *GamificationService) refreshCacheEntry(ctx context.Context, rec models.ExperienceRecord) {
	category := gamification.CategoryOfRecord(rec)
	if err := s.cache.UpsertEntry(ctx, category, gamification.EntryFromRecord(rec)); err != nil {
		s.log(ctx).Warn().
			Err(err).
			Str("user_id", rec.UserID).
			Str("category", string(category)).
			Msg("failed to refresh leaderboard cache")
	}
}

// log returns the request-scoped logger carried by ctx, or the service logger
// when ctx has none
func (s *GamificationService) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}

// HealthCheck checks the health of the record store and the cache
func (s *GamificationService) HealthCheck(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}

	if err := s.records.Ping(ctx); err != nil {
		return fmt.Errorf("PostgreSQL health check failed: %w", err)
	}

	return nil
}

func validateCategory(category models.Category) (models.Category, error) {
	if category == "" {
		return models.CategoryIndividual, nil
	}
	if !category.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", gamification.ErrInvalidInput, category)
	}
	return category, nil
}

// ensureRecord returns the participant's record, creating it in category on
// first interaction. An empty category accepts whatever is stored and creates
// new records as individual. A record filed under a different category is
// rejected rather than silently re-partitioned.
func (s *GamificationService) ensureRecord(ctx context.Context, userID string, category models.Category) (*models.ExperienceRecord, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", gamification.ErrInvalidInput, category)
	}

	create := category
	if create == "" {
		create = models.CategoryIndividual
	}
	rec, err := s.records.EnsureRecord(ctx, userID, create)
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	if category != "" && gamification.CategoryOfRecord(*rec) != category {
		return nil, fmt.Errorf("%w: %s is registered as %s, not %s",
			gamification.ErrInvalidInput, userID, gamification.CategoryOfRecord(*rec), category)
	}
	return rec, nil
}
