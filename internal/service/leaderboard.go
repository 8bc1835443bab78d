package service

import (
	"context"
	"errors"
	"fmt"

	"dreamstream/internal/gamification"
	"dreamstream/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// GetLeaderboard retrieves a ranked page of one category's leaderboard
func (s *GamificationService) GetLeaderboard(ctx context.Context, category models.Category, offset, limit int) (*models.LeaderboardResponse, error) {
	category, err := validateCategory(category)
	if err != nil {
		return nil, err
	}

	// Validate pagination parameters
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	ranked, err := s.rankedBoard(ctx, category)
	if err != nil {
		return nil, err
	}

	return &models.LeaderboardResponse{
		Category: category,
		Data:     s.withLevels(gamification.Page(ranked, offset, limit)),
		Offset:   offset,
		Limit:    limit,
		Total:    len(ranked),
	}, nil
}

// GetLeaderboards returns the top limit entries of every category, fetched
// concurrently
func (s *GamificationService) GetLeaderboards(ctx context.Context, limit int) (map[models.Category][]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	boards := make([][]models.LeaderboardEntry, len(models.Categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range models.Categories {
		g.Go(func() error {
			ranked, err := s.rankedBoard(gctx, category)
			if err != nil {
				return err
			}
			boards[i] = s.withLevels(gamification.Page(ranked, 0, limit))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[models.Category][]models.LeaderboardEntry, len(models.Categories))
	for i, category := range models.Categories {
		out[category] = boards[i]
	}
	return out, nil
}

// FindRank returns a participant's position within their own category
func (s *GamificationService) FindRank(ctx context.Context, userID string) (*models.RankResponse, error) {
	rec, err := s.records.ReadRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	category := gamification.CategoryOfRecord(*rec)

	rank, err := s.rankOf(ctx, category, *rec)
	if err != nil {
		return nil, err
	}

	return &models.RankResponse{
		UserID:   userID,
		Category: category,
		Rank:     rank,
		Score:    rec.TotalPoints,
	}, nil
}

// GetProfile returns a participant's points, derived level, badges, streaks
// and rank
func (s *GamificationService) GetProfile(ctx context.Context, userID string) (*models.ProfileResponse, error) {
	rec, err := s.records.ReadRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	derived, progress, err := s.agg.Derive(*rec)
	if err != nil {
		return nil, err
	}
	category := gamification.CategoryOfRecord(derived)

	rank, err := s.rankOf(ctx, category, derived)
	if err != nil {
		return nil, err
	}

	badges := derived.Badges
	if badges == nil {
		badges = models.BadgeSet{}
	}

	return &models.ProfileResponse{
		UserID:             derived.UserID,
		Category:           category,
		TotalPoints:        derived.TotalPoints,
		Level:              progress.Level,
		LevelStart:         progress.LevelStart,
		NextLevelThreshold: progress.NextLevelThreshold,
		LevelProgress:      progress.Fraction(),
		Badges:             badges,
		CurrentStreak:      derived.CurrentStreak,
		LongestStreak:      derived.LongestStreak,
		LastActiveAt:       derived.LastActiveAt,
		Rank:               rank,
	}, nil
}

// SyncCacheFromStore rebuilds every category of the leaderboard cache from
// the authoritative store
func (s *GamificationService) SyncCacheFromStore(ctx context.Context) error {
	records, err := s.records.AllRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch records: %w", err)
	}

	boards := gamification.RankByCategory(records, gamification.EntryFromRecord, gamification.CategoryOfRecord)

	g, gctx := errgroup.WithContext(ctx)
	for category, entries := range boards {
		g.Go(func() error {
			if err := s.cache.ReplaceCategory(gctx, category, entries); err != nil {
				return fmt.Errorf("failed to sync %s leaderboard: %w", category, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.log(ctx).Info().Int("records", len(records)).Msg("leaderboard cache synced from store")
	return nil
}

// rankedBoard ranks a category from the cache, falling back to the store when
// the cache is unavailable or cold
func (s *GamificationService) rankedBoard(ctx context.Context, category models.Category) ([]models.LeaderboardEntry, error) {
	entries, err := s.cache.ListEntries(ctx, category)
	if err != nil {
		s.log(ctx).Warn().Err(err).Str("category", string(category)).Msg("leaderboard cache unavailable, reading store")
		return s.storeBoard(ctx, category)
	}
	if len(entries) == 0 {
		return s.storeBoard(ctx, category)
	}
	return gamification.Rank(entries), nil
}

// storeBoard ranks a category straight from the authoritative store
func (s *GamificationService) storeBoard(ctx context.Context, category models.Category) ([]models.LeaderboardEntry, error) {
	records, err := s.records.ListEntries(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", category, err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, gamification.EntryFromRecord(rec))
	}
	return gamification.Rank(entries), nil
}

// rankOf finds rec in the cached board. A cached entry that is missing or
// behind the record is rewritten first; the store is rechecked if the cache
// still has not caught up.
func (s *GamificationService) rankOf(ctx context.Context, category models.Category, rec models.ExperienceRecord) (int, error) {
	userID := rec.UserID
	want := gamification.EntryFromRecord(rec)
	cached, err := s.cache.GetEntry(ctx, category, userID)
	switch {
	case errors.Is(err, gamification.ErrNotFound):
		s.refreshCacheEntry(ctx, rec)
	case err != nil:
		s.log(ctx).Debug().Err(err).Str("user_id", userID).Msg("cached entry unavailable")
	case cached.Score != want.Score || cached.SecondaryKey != want.SecondaryKey:
		s.log(ctx).Debug().
			Str("user_id", userID).
			Int64("cached_score", cached.Score).
			Int64("score", want.Score).
			Msg("repairing stale cache entry")
		s.refreshCacheEntry(ctx, rec)
	}

	ranked, err := s.rankedBoard(ctx, category)
	if err != nil {
		return 0, err
	}
	if rank, ok := gamification.FindRank(ranked, userID); ok {
		return rank, nil
	}

	ranked, err = s.storeBoard(ctx, category)
	if err != nil {
		return 0, err
	}
	if rank, ok := gamification.FindRank(ranked, userID); ok {
		return rank, nil
	}
	return 0, fmt.Errorf("%w: user %s is not ranked in %s", gamification.ErrNotFound, userID, category)
}

// withLevels fills in the derived level of each entry
func (s *GamificationService) withLevels(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, len(entries))
	curve := s.agg.Curve()
	for i, e := range entries {
		out[i] = e
		if level, err := curve.Level(e.Score); err == nil {
			out[i].Level = level
		}
	}
	return out
}
