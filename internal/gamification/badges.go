package gamification

import "dreamstream/internal/models"

// BadgeRule grants badge ID to any record that satisfies it
type BadgeRule struct {
	ID          string
	Description string
	Satisfied   func(r models.ExperienceRecord, p Progress) bool
}

// PointsAtLeast grants id once total points reach n
func PointsAtLeast(id string, n int64) BadgeRule {
	return BadgeRule{
		ID:          id,
		Description: "earn points",
		Satisfied: func(r models.ExperienceRecord, _ Progress) bool {
			return r.TotalPoints >= n
		},
	}
}

// LevelAtLeast grants id once the derived level reaches n
func LevelAtLeast(id string, n int) BadgeRule {
	return BadgeRule{
		ID:          id,
		Description: "reach a level",
		Satisfied: func(_ models.ExperienceRecord, p Progress) bool {
			return p.Level >= n
		},
	}
}

// StreakAtLeast grants id once the longest streak reaches n days
func StreakAtLeast(id string, n int) BadgeRule {
	return BadgeRule{
		ID:          id,
		Description: "keep a daily streak",
		Satisfied: func(r models.ExperienceRecord, _ Progress) bool {
			return r.LongestStreak >= n
		},
	}
}

// DefaultBadgeRules is the stock badge catalog
func DefaultBadgeRules() []BadgeRule {
	return []BadgeRule{
		PointsAtLeast("first_points", 1),
		PointsAtLeast("points_1k", 1_000),
		PointsAtLeast("points_10k", 10_000),
		PointsAtLeast("points_100k", 100_000),
		LevelAtLeast("level_5", 5),
		LevelAtLeast("level_10", 10),
		StreakAtLeast("streak_7", 7),
		StreakAtLeast("streak_30", 30),
	}
}
