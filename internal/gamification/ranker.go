package gamification

import (
	"cmp"
	"slices"
	"strings"

	"dreamstream/internal/models"
)

// compareEntries orders by score desc, then secondary key desc, then user id asc
func compareEntries(a, b models.LeaderboardEntry) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.SecondaryKey, a.SecondaryKey); c != 0 {
		return c
	}
	return strings.Compare(a.UserID, b.UserID)
}

// Rank returns a sorted copy of entries with ranks 1..N assigned. Ties on
// score and secondary key still get distinct sequential ranks.
func Rank(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	ranked := make([]models.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	slices.SortStableFunc(ranked, compareEntries)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RankByCategory partitions items by category and ranks each partition.
// Every known category is present in the result, possibly empty.
func RankByCategory[T any](
	items []T,
	toEntry func(T) models.LeaderboardEntry,
	categoryOf func(T) models.Category,
) map[models.Category][]models.LeaderboardEntry {
	buckets := make(map[models.Category][]models.LeaderboardEntry, len(models.Categories))
	for _, c := range models.Categories {
		buckets[c] = nil
	}
	for _, item := range items {
		c := categoryOf(item)
		buckets[c] = append(buckets[c], toEntry(item))
	}

	ranked := make(map[models.Category][]models.LeaderboardEntry, len(buckets))
	for c, entries := range buckets {
		ranked[c] = Rank(entries)
	}
	return ranked
}

// FindRank looks up userID in an already ranked sequence
func FindRank(ranked []models.LeaderboardEntry, userID string) (int, bool) {
	for _, e := range ranked {
		if e.UserID == userID {
			return e.Rank, true
		}
	}
	return 0, false
}

// Page slices a ranked sequence for pagination
func Page(ranked []models.LeaderboardEntry, offset, limit int) []models.LeaderboardEntry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ranked) || limit <= 0 {
		return []models.LeaderboardEntry{}
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

// EntryFromRecord projects a record onto the ranking key. The secondary key is
// the badge count.
func EntryFromRecord(r models.ExperienceRecord) models.LeaderboardEntry {
	return models.LeaderboardEntry{
		UserID:       r.UserID,
		Score:        r.TotalPoints,
		SecondaryKey: int64(len(r.Badges)),
	}
}

// CategoryOfRecord returns the record's category, defaulting to individual
func CategoryOfRecord(r models.ExperienceRecord) models.Category {
	if r.Category == "" {
		return models.CategoryIndividual
	}
	return r.Category
}
