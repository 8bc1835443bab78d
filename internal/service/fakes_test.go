package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"dreamstream/internal/gamification"
	"dreamstream/internal/models"

	"github.com/rs/zerolog"
)

// memStore is an in-memory RecordStore and ChallengeStore with the same
// version semantics as the Postgres repository
type memStore struct {
	mu         sync.Mutex
	records    map[string]models.ExperienceRecord
	events     []models.PointEvent
	challenges map[string]models.TeamChallenge

	// conflicts makes the next n WriteRecord calls lose their race
	conflicts int
}

func newMemStore() *memStore {
	return &memStore{
		records:    map[string]models.ExperienceRecord{},
		challenges: map[string]models.TeamChallenge{},
	}
}

func (m *memStore) ReadRecord(_ context.Context, userID string) (*models.ExperienceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", gamification.ErrNotFound, userID)
	}
	out := rec.Clone()
	return &out, nil
}

func (m *memStore) EnsureRecord(ctx context.Context, userID string, category models.Category) (*models.ExperienceRecord, error) {
	m.mu.Lock()
	if _, ok := m.records[userID]; !ok {
		m.records[userID] = models.ExperienceRecord{UserID: userID, Category: category, Badges: models.BadgeSet{}}
	}
	m.mu.Unlock()
	return m.ReadRecord(ctx, userID)
}

func (m *memStore) WriteRecord(_ context.Context, rec *models.ExperienceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rec.UserID]
	if !ok {
		return fmt.Errorf("%w: user %s", gamification.ErrNotFound, rec.UserID)
	}
	if m.conflicts > 0 {
		m.conflicts--
		cur.Version++
		m.records[rec.UserID] = cur
	}
	if cur.Version != rec.Version {
		return fmt.Errorf("%w: stale version", gamification.ErrConflict)
	}
	rec.Version++
	m.records[rec.UserID] = rec.Clone()
	return nil
}

func (m *memStore) AtomicIncrement(_ context.Context, userID, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if field != "total_points" {
		return 0, fmt.Errorf("%w: field %s", gamification.ErrInvalidInput, field)
	}
	rec, ok := m.records[userID]
	if !ok {
		return 0, fmt.Errorf("%w: user %s", gamification.ErrNotFound, userID)
	}
	if rec.TotalPoints > math.MaxInt64-delta {
		return 0, fmt.Errorf("%w: overflow", gamification.ErrInvalidInput)
	}
	rec.TotalPoints += delta
	rec.Version++
	m.records[userID] = rec
	return rec.TotalPoints, nil
}

func (m *memStore) ListEntries(_ context.Context, category models.Category) ([]models.ExperienceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExperienceRecord
	for _, rec := range m.records {
		if rec.Category == category {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (m *memStore) AllRecords(_ context.Context) ([]models.ExperienceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExperienceRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (m *memStore) PointEvents(_ context.Context, userID string, limit int) ([]models.PointEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PointEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].UserID == userID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) CreateChallenge(_ context.Context, c *models.TeamChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.ID] = c.Clone()
	return nil
}

func (m *memStore) GetChallenge(_ context.Context, id string) (*models.TeamChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, fmt.Errorf("%w: challenge %s", gamification.ErrNotFound, id)
	}
	out := c.Clone()
	return &out, nil
}

func (m *memStore) SaveChallenge(_ context.Context, c *models.TeamChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.challenges[c.ID]
	if !ok || cur.Version != c.Version {
		return fmt.Errorf("%w: challenge %s", gamification.ErrConflict, c.ID)
	}
	c.Version++
	m.challenges[c.ID] = c.Clone()
	return nil
}

func (m *memStore) ListOpenChallenges(_ context.Context) ([]models.TeamChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TeamChallenge
	for _, c := range m.challenges {
		if c.Status != models.ChallengeCompleted {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *memStore) Submit(ev models.PointEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// memCache is an in-memory LeaderboardCache
type memCache struct {
	mu      sync.Mutex
	boards  map[models.Category]map[string]models.LeaderboardEntry
	failing bool
}

func newMemCache() *memCache {
	return &memCache{boards: map[models.Category]map[string]models.LeaderboardEntry{}}
}

func (c *memCache) UpsertEntry(_ context.Context, category models.Category, entry models.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return fmt.Errorf("cache down")
	}
	if c.boards[category] == nil {
		c.boards[category] = map[string]models.LeaderboardEntry{}
	}
	c.boards[category][entry.UserID] = entry
	return nil
}

func (c *memCache) ListEntries(_ context.Context, category models.Category) ([]models.LeaderboardEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, fmt.Errorf("cache down")
	}
	out := []models.LeaderboardEntry{}
	for _, e := range c.boards[category] {
		out = append(out, e)
	}
	return out, nil
}

func (c *memCache) ReplaceCategory(_ context.Context, category models.Category, entries []models.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return fmt.Errorf("cache down")
	}
	board := map[string]models.LeaderboardEntry{}
	for _, e := range entries {
		board[e.UserID] = e
	}
	c.boards[category] = board
	return nil
}

func (c *memCache) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return fmt.Errorf("cache down")
	}
	return nil
}

func (c *memCache) size(category models.Category) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.boards[category])
}

type fixture struct {
	svc   *GamificationService
	store *memStore
	cache *memCache
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	agg, err := gamification.NewAggregator(gamification.DefaultCurve, gamification.DefaultBadgeRules())
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	f := &fixture{
		store: newMemStore(),
		cache: newMemCache(),
		clock: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewGamificationService(f.store, f.store, f.cache, f.store, agg, zerolog.New(io.Discard))
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (c *memCache) GetEntry(_ context.Context, category models.Category, userID string) (*models.LeaderboardEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, fmt.Errorf("cache down")
	}
	e, ok := c.boards[category][userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", gamification.ErrNotFound, userID)
	}
	return &e, nil
}
