package models

import "time"

// AwardPointsRequest represents the request payload for awarding points
type AwardPointsRequest struct {
	UserID   string   `json:"user_id" validate:"required,min=1,max=64"`
	Category Category `json:"category" validate:"omitempty,oneof=individual team"`
	Delta    int64    `json:"delta" validate:"required,gt=0"`
	Reason   string   `json:"reason" validate:"max=255"`
}

// AwardPointsResponse reports the outcome of a point award
type AwardPointsResponse struct {
	UserID             string   `json:"user_id"`
	TotalPoints        int64    `json:"total_points"`
	Level              int      `json:"level"`
	PreviousLevel      int      `json:"previous_level"`
	NextLevelThreshold int64    `json:"next_level_threshold"`
	LeveledUp          bool     `json:"leveled_up"`
	Notification       string   `json:"notification"`
	NewBadges          []string `json:"new_badges"`
}

// AwardBadgeRequest represents the request payload for granting a badge
type AwardBadgeRequest struct {
	UserID   string   `json:"user_id" validate:"required,min=1,max=64"`
	Category Category `json:"category" validate:"omitempty,oneof=individual team"`
	BadgeID  string   `json:"badge_id" validate:"required,min=1,max=64"`
}

// CheckInRequest represents a daily activity check-in
type CheckInRequest struct {
	UserID   string   `json:"user_id" validate:"required,min=1,max=64"`
	Category Category `json:"category" validate:"omitempty,oneof=individual team"`
}

// CheckInResponse reports the streak after a check-in
type CheckInResponse struct {
	UserID        string `json:"user_id"`
	Streak        int    `json:"streak"`
	Changed       bool   `json:"changed"`
	LongestStreak int    `json:"longest_streak"`
}

// ProfileResponse is a participant's dashboard view
type ProfileResponse struct {
	UserID             string     `json:"user_id"`
	Category           Category   `json:"category"`
	TotalPoints        int64      `json:"total_points"`
	Level              int        `json:"level"`
	LevelStart         int64      `json:"level_start"`
	NextLevelThreshold int64      `json:"next_level_threshold"`
	LevelProgress      float64    `json:"level_progress"`
	Badges             BadgeSet   `json:"badges"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	LastActiveAt       *time.Time `json:"last_active_at,omitempty"`
	Rank               int        `json:"rank"`
}

// LeaderboardResponse represents the paginated leaderboard response
type LeaderboardResponse struct {
	Category Category           `json:"category"`
	Data     []LeaderboardEntry `json:"data"`
	Offset   int                `json:"offset"`
	Limit    int                `json:"limit"`
	Total    int                `json:"total"`
}

// RankResponse represents the response for a rank lookup
type RankResponse struct {
	UserID   string   `json:"user_id"`
	Category Category `json:"category"`
	Rank     int      `json:"rank"`
	Score    int64    `json:"score"`
}

// ObjectiveRequest describes one objective of a new challenge
type ObjectiveRequest struct {
	Description string `json:"description" validate:"max=255"`
	Target      int64  `json:"target" validate:"required,gt=0"`
}

// CreateChallengeRequest represents the request payload for a new team challenge
type CreateChallengeRequest struct {
	TeamID       string             `json:"team_id" validate:"required,min=1,max=64"`
	Title        string             `json:"title" validate:"required,min=1,max=200"`
	RewardPoints int64              `json:"reward_points" validate:"gte=0"`
	StartsAt     time.Time          `json:"starts_at" validate:"required"`
	EndsAt       time.Time          `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Objectives   []ObjectiveRequest `json:"objectives" validate:"required,min=1,dive"`
}

// ChallengeProgressRequest represents progress made on one objective
type ChallengeProgressRequest struct {
	ObjectiveID string `json:"objective_id" validate:"required"`
	Delta       int64  `json:"delta" validate:"required,gt=0"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
