package models

import (
	"time"
)

// ChallengeStatus is the TeamChallenge lifecycle state
type ChallengeStatus string

const (
	ChallengeUpcoming  ChallengeStatus = "upcoming"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
)

// TeamChallenge is a time-boxed group goal made of one or more objectives
type TeamChallenge struct {
	ID           string               `gorm:"primarykey;size:36" json:"id"`
	TeamID       string               `gorm:"size:64;not null;index" json:"team_id"`
	Title        string               `gorm:"size:200;not null" json:"title"`
	Status       ChallengeStatus      `gorm:"size:16;not null;index" json:"status"`
	RewardPoints int64                `gorm:"not null;default:0" json:"reward_points"`
	StartsAt     time.Time            `gorm:"not null" json:"starts_at"`
	EndsAt       time.Time            `gorm:"not null" json:"ends_at"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	Objectives   []ChallengeObjective `gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE" json:"objectives"`
	Version      int64                `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (TeamChallenge) TableName() string {
	return "team_challenges"
}

// ChallengeObjective tracks progress toward a single target
type ChallengeObjective struct {
	ID          string `gorm:"primarykey;size:36" json:"id"`
	ChallengeID string `gorm:"size:36;not null;index" json:"challenge_id"`
	Position    int    `gorm:"not null;default:0" json:"position"`
	Description string `gorm:"size:255" json:"description"`
	Progress    int64  `gorm:"not null;default:0" json:"progress"`
	Target      int64  `gorm:"not null" json:"target"`
}

// TableName specifies the table name for GORM
func (ChallengeObjective) TableName() string {
	return "challenge_objectives"
}

// Satisfied reports whether the objective reached its target
func (o ChallengeObjective) Satisfied() bool {
	return o.Progress >= o.Target
}

// Clone returns a deep copy of the challenge
func (c TeamChallenge) Clone() TeamChallenge {
	out := c
	if c.Objectives != nil {
		out.Objectives = make([]ChallengeObjective, len(c.Objectives))
		copy(out.Objectives, c.Objectives)
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
