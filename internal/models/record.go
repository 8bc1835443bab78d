package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Category partitions leaderboards into individual and team boards
type Category string

const (
	CategoryIndividual Category = "individual"
	CategoryTeam       Category = "team"
)

// Categories lists every leaderboard category in display order
var Categories = []Category{CategoryIndividual, CategoryTeam}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	return c == CategoryIndividual || c == CategoryTeam
}

// ExperienceRecord is one participant's cumulative progress.
// Level is derived from TotalPoints on every read and is never persisted.
type ExperienceRecord struct {
	UserID        string     `gorm:"primarykey;size:64" json:"user_id"`
	Category      Category   `gorm:"size:16;not null;index" json:"category"`
	TotalPoints   int64      `gorm:"not null;default:0;index" json:"total_points"`
	Level         int        `gorm:"-" json:"level"`
	Badges        BadgeSet   `gorm:"type:text" json:"badges"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int        `gorm:"not null;default:0" json:"longest_streak"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
	Version       int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ExperienceRecord) TableName() string {
	return "experience_records"
}

// Clone returns a copy that shares no mutable state with r
func (r ExperienceRecord) Clone() ExperienceRecord {
	out := r
	out.Badges = r.Badges.Clone()
	if r.LastActiveAt != nil {
		t := *r.LastActiveAt
		out.LastActiveAt = &t
	}
	return out
}

// BadgeSet is a duplicate-free set of badge identifiers. Insertion order
// carries no meaning; sets built by this package are kept sorted, but lookups
// do not rely on it. It is stored as a JSON array in a text column.
type BadgeSet []string

// Has reports whether id is in the set
func (s BadgeSet) Has(id string) bool {
	return slices.Contains(s, id)
}

// With returns a new normalized set containing id. The second result is false
// when id was already present, in which case the receiver is returned unchanged.
func (s BadgeSet) With(id string) (BadgeSet, bool) {
	if s.Has(id) {
		return s, false
	}
	out := make(BadgeSet, 0, len(s)+1)
	out = append(out, s...)
	out = append(out, id)
	return out.Normalize(), true
}

// Normalize returns a sorted copy with duplicates removed
func (s BadgeSet) Normalize() BadgeSet {
	out := slices.Clone(s)
	if out == nil {
		return BadgeSet{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Clone copies the set, normalizing it
func (s BadgeSet) Clone() BadgeSet {
	return s.Normalize()
}

// UnmarshalJSON decodes a JSON array of ids in any order
func (s *BadgeSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("badge set: %w", err)
	}
	*s = BadgeSet(ids).Normalize()
	return nil
}

// Value implements driver.Valuer
func (s BadgeSet) Value() (driver.Value, error) {
	if s == nil {
		s = BadgeSet{}
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Duplicates and ordering in stored data are
// normalized on the way in.
func (s *BadgeSet) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = BadgeSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("badge set: unsupported column type %T", value)
	}

	if len(raw) == 0 {
		*s = BadgeSet{}
		return nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("badge set: %w", err)
	}
	*s = BadgeSet(ids).Normalize()
	return nil
}

// PointEvent is one entry in the award ledger
type PointEvent struct {
	ID         string    `gorm:"primarykey;size:21" json:"id"`
	UserID     string    `gorm:"size:64;not null;index" json:"user_id"`
	Delta      int64     `gorm:"not null" json:"delta"`
	Reason     string    `gorm:"size:255" json:"reason"`
	TotalAfter int64     `gorm:"not null" json:"total_after"`
	LeveledUp  bool      `gorm:"not null;default:false" json:"leveled_up"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (PointEvent) TableName() string {
	return "point_events"
}

// LeaderboardEntry is a read-only ranking projection. Rank is assigned by the
// ranker and always recomputed from the current entry set.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"user_id"`
	Score        int64  `json:"score"`
	SecondaryKey int64  `json:"secondary_key"`
	Level        int    `json:"level,omitempty"`
}
