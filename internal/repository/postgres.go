package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"dreamstream/internal/gamification"
	"dreamstream/internal/models"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FieldTotalPoints is the only counter AtomicIncrement accepts today
const FieldTotalPoints = "total_points"

// incrementableFields whitelists columns that may be bumped in place
var incrementableFields = map[string]bool{
	FieldTotalPoints: true,
}

// PostgresRepository is the authoritative store for experience records,
// the point ledger and team challenges
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// ReadRecord retrieves a record by user id
func (r *PostgresRepository) ReadRecord(ctx context.Context, userID string) (*models.ExperienceRecord, error) {
	var rec models.ExperienceRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", gamification.ErrNotFound, userID)
		}
		return nil, err
	}
	return &rec, nil
}

// EnsureRecord returns the user's record, creating a zero record on first
// interaction. An existing record keeps its category.
func (r *PostgresRepository) EnsureRecord(ctx context.Context, userID string, category models.Category) (*models.ExperienceRecord, error) {
	rec := models.ExperienceRecord{
		UserID:   userID,
		Category: category,
		Badges:   models.BadgeSet{},
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&rec).Error
	if err != nil {
		return nil, err
	}

	return r.ReadRecord(ctx, userID)
}

// WriteRecord stores rec if nobody else wrote it since it was read.
// A lost race returns ErrConflict; on success rec.Version is advanced.
func (r *PostgresRepository) WriteRecord(ctx context.Context, rec *models.ExperienceRecord) error {
	res := r.db.WithContext(ctx).
		Model(&models.ExperienceRecord{}).
		Where("user_id = ? AND version = ?", rec.UserID, rec.Version).
		Updates(map[string]interface{}{
			"category":       rec.Category,
			"total_points":   rec.TotalPoints,
			"badges":         rec.Badges,
			"current_streak": rec.CurrentStreak,
			"longest_streak": rec.LongestStreak,
			"last_active_at": rec.LastActiveAt,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: record %s changed since version %d", gamification.ErrConflict, rec.UserID, rec.Version)
	}

	rec.Version++
	return nil
}

// AtomicIncrement adds delta to field in a single statement and returns the
// post-increment value. Concurrent increments are never lost. An increment
// that would overflow int64 matches no row and is rejected as invalid input.
func (r *PostgresRepository) AtomicIncrement(ctx context.Context, userID, field string, delta int64) (int64, error) {
	if !incrementableFields[field] {
		return 0, fmt.Errorf("%w: field %q cannot be incremented", gamification.ErrInvalidInput, field)
	}

	bound, limit := field+" <= ?", int64(math.MaxInt64)-delta
	if delta < 0 {
		bound, limit = field+" >= ?", math.MinInt64-delta
	}

	var value int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ExperienceRecord{}).
			Where("user_id = ?", userID).
			Where(bound, limit).
			Updates(map[string]interface{}{
				field:     gorm.Expr(field+" + ?", delta),
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ExperienceRecord{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: user %s", gamification.ErrNotFound, userID)
			}
			return fmt.Errorf("%w: adding %d to %s of %s overflows", gamification.ErrInvalidInput, delta, field, userID)
		}

		return tx.Model(&models.ExperienceRecord{}).
			Select(field).
			Where("user_id = ?", userID).
			Row().
			Scan(&value)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// ListEntries retrieves every record in a category (used for leaderboard construction)
func (r *PostgresRepository) ListEntries(ctx context.Context, category models.Category) ([]models.ExperienceRecord, error) {
	var records []models.ExperienceRecord
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("total_points DESC").
		Find(&records).Error
	return records, err
}

// AllRecords retrieves every record (used for seeding Redis)
func (r *PostgresRepository) AllRecords(ctx context.Context) ([]models.ExperienceRecord, error) {
	var records []models.ExperienceRecord
	err := r.db.WithContext(ctx).Order("total_points DESC").Find(&records).Error
	return records, err
}

// BulkInsertRecords efficiently inserts multiple records. Existing user ids
// are left untouched.
func (r *PostgresRepository) BulkInsertRecords(ctx context.Context, records []models.ExperienceRecord, batchSize int) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, batchSize).Error
}

// GetTotalRecords returns the total count of records
func (r *PostgresRepository) GetTotalRecords(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ExperienceRecord{}).Count(&count).Error
	return count, err
}

// InsertPointEvent appends an award to the ledger. Replaying an event with
// the same id is a no-op.
func (r *PostgresRepository) InsertPointEvent(ctx context.Context, ev *models.PointEvent) error {
	if ev.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		ev.ID = id
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(ev).Error
}

// PointEvents returns the most recent ledger entries for a user
func (r *PostgresRepository) PointEvents(ctx context.Context, userID string, limit int) ([]models.PointEvent, error) {
	var events []models.PointEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// CreateChallenge stores a challenge together with its objectives
func (r *PostgresRepository) CreateChallenge(ctx context.Context, c *models.TeamChallenge) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// GetChallenge retrieves a challenge with its objectives in position order
func (r *PostgresRepository) GetChallenge(ctx context.Context, id string) (*models.TeamChallenge, error) {
	var c models.TeamChallenge
	err := r.db.WithContext(ctx).
		Preload("Objectives", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: challenge %s", gamification.ErrNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

// SaveChallenge writes status and objective progress under the same
// optimistic version check as WriteRecord
func (r *PostgresRepository) SaveChallenge(ctx context.Context, c *models.TeamChallenge) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TeamChallenge{}).
			Where("id = ? AND version = ?", c.ID, c.Version).
			Updates(map[string]interface{}{
				"status":       c.Status,
				"completed_at": c.CompletedAt,
				"version":      gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: challenge %s changed since version %d", gamification.ErrConflict, c.ID, c.Version)
		}

		for _, o := range c.Objectives {
			err := tx.Model(&models.ChallengeObjective{}).
				Where("id = ? AND challenge_id = ?", o.ID, c.ID).
				Update("progress", o.Progress).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.Version++
	return nil
}

// ListOpenChallenges returns every challenge that has not completed yet
func (r *PostgresRepository) ListOpenChallenges(ctx context.Context) ([]models.TeamChallenge, error) {
	var challenges []models.TeamChallenge
	err := r.db.WithContext(ctx).
		Preload("Objectives", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		Where("status <> ?", models.ChallengeCompleted).
		Order("ends_at").
		Find(&challenges).Error
	return challenges, err
}

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (r *PostgresRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.ExperienceRecord{},
		&models.PointEvent{},
		&models.TeamChallenge{},
		&models.ChallengeObjective{},
	)
}
