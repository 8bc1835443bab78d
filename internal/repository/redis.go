package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"dreamstream/internal/gamification"
	"dreamstream/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	// boardKeyPrefix prefixes the per-category sorted set of total points.
	// Sorted-set scores are float64 and only exact up to 2^53, so the exact
	// totals live in the points hash.
	boardKeyPrefix = "gamification:board:"

	// pointsKeyPrefix prefixes the per-category hash of exact int64 totals
	pointsKeyPrefix = "gamification:points:"

	// secondaryKeyPrefix prefixes the per-category hash of tie-break keys (badge counts)
	secondaryKeyPrefix = "gamification:secondary:"

	// VersionKey tracks the global leaderboard version for efficient change detection
	VersionKey = "gamification:version"
)

// BoardKey returns the sorted set key for a category
func BoardKey(category models.Category) string {
	return boardKeyPrefix + string(category)
}

// PointsKey returns the exact-total hash key for a category
func PointsKey(category models.Category) string {
	return pointsKeyPrefix + string(category)
}

// SecondaryKey returns the tie-break hash key for a category
func SecondaryKey(category models.Category) string {
	return secondaryKeyPrefix + string(category)
}

// RedisRepository caches leaderboard entries and the change version.
// Ordering is left to the ranker; Redis only holds the ranking keys.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// UpsertEntry stores one participant's ranking keys and bumps the version
func (r *RedisRepository) UpsertEntry(ctx context.Context, category models.Category, entry models.LeaderboardEntry) error {
	pipe := r.client.TxPipeline()

	pipe.ZAdd(ctx, BoardKey(category), redis.Z{
		Score:  float64(entry.Score),
		Member: entry.UserID,
	})
	pipe.HSet(ctx, PointsKey(category), entry.UserID, entry.Score)
	pipe.HSet(ctx, SecondaryKey(category), entry.UserID, entry.SecondaryKey)
	pipe.Incr(ctx, VersionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// ListEntries returns every cached entry of a category, unranked
func (r *RedisRepository) ListEntries(ctx context.Context, category models.Category) ([]models.LeaderboardEntry, error) {
	members, err := r.client.ZRangeWithScores(ctx, BoardKey(category), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	secondary, err := r.client.HGetAll(ctx, SecondaryKey(category)).Result()
	if err != nil {
		return nil, err
	}
	points, err := r.client.HGetAll(ctx, PointsKey(category)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		userID, ok := m.Member.(string)
		if !ok {
			continue
		}

		var key int64
		if raw, found := secondary[userID]; found {
			key, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid secondary key for %s: %w", userID, err)
			}
		}

		score, err := exactScore(points[userID], m.Score)
		if err != nil {
			return nil, fmt.Errorf("invalid points for %s: %w", userID, err)
		}

		entries = append(entries, models.LeaderboardEntry{
			UserID:       userID,
			Score:        score,
			SecondaryKey: key,
		})
	}
	return entries, nil
}

// GetEntry returns one participant's cached ranking keys
func (r *RedisRepository) GetEntry(ctx context.Context, category models.Category, userID string) (*models.LeaderboardEntry, error) {
	score, err := r.client.ZScore(ctx, BoardKey(category), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: user %s", gamification.ErrNotFound, userID)
		}
		return nil, err
	}

	key, err := r.client.HGet(ctx, SecondaryKey(category), userID).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	raw, err := r.client.HGet(ctx, PointsKey(category), userID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	exact, err := exactScore(raw, score)
	if err != nil {
		return nil, fmt.Errorf("invalid points for %s: %w", userID, err)
	}

	return &models.LeaderboardEntry{UserID: userID, Score: exact, SecondaryKey: key}, nil
}

// exactScore prefers the exact total from the points hash, falling back to
// the sorted-set score for entries written before the hash existed
func exactScore(raw string, approx float64) (int64, error) {
	if raw == "" {
		return int64(approx), nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ReplaceCategory swaps a category's cached entries for entries in one transaction
func (r *RedisRepository) ReplaceCategory(ctx context.Context, category models.Category, entries []models.LeaderboardEntry) error {
	pipe := r.client.TxPipeline()

	pipe.Del(ctx, BoardKey(category), PointsKey(category), SecondaryKey(category))

	if len(entries) > 0 {
		members := make([]redis.Z, 0, len(entries))
		points := make(map[string]interface{}, len(entries))
		secondary := make(map[string]interface{}, len(entries))
		for _, e := range entries {
			members = append(members, redis.Z{Score: float64(e.Score), Member: e.UserID})
			points[e.UserID] = e.Score
			secondary[e.UserID] = e.SecondaryKey
		}
		pipe.ZAdd(ctx, BoardKey(category), members...)
		pipe.HSet(ctx, PointsKey(category), points)
		pipe.HSet(ctx, SecondaryKey(category), secondary)
	}

	// Increment version once for entire batch
	pipe.Incr(ctx, VersionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// CountEntries returns the number of cached entries in a category
func (r *RedisRepository) CountEntries(ctx context.Context, category models.Category) (int64, error) {
	return r.client.ZCard(ctx, BoardKey(category)).Result()
}

// GetVersion returns the current global version number
func (r *RedisRepository) GetVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, VersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // Version not set yet
		}
		return 0, err
	}
	return version, nil
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
