package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"dreamstream/internal/config"
	"dreamstream/internal/gamification"
	"dreamstream/internal/logger"
	"dreamstream/internal/models"
	"dreamstream/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	TotalUsers   = 10000
	TotalTeams   = 200
	BatchSize    = 500
	MaxPoints    = 60000
	UserIDPrefix = "user_"
	TeamIDPrefix = "team_"
)

func main() {
	boot := logger.New()
	cfg, err := config.Load(boot)
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.SetLevel(cfg.LogLevel)
	log.Info().Msg("starting seeder for DreamStream")

	if err := run(log, cfg); err != nil {
		log.Error().Err(err).Msg("seeding failed")
		os.Exit(1)
	}

	log.Info().Msg("seeder finished")
}

func run(log zerolog.Logger, cfg *config.Config) error {

	curve, err := cfg.Curve()
	if err != nil {
		return err
	}
	agg, err := gamification.NewAggregator(curve, gamification.DefaultBadgeRules())
	if err != nil {
		return err
	}

	db, err := initPostgres(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	redisClient, err := initRedis(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	postgresRepo := repository.NewPostgresRepository(db)
	redisRepo := repository.NewRedisRepository(redisClient)
	defer postgresRepo.Close()
	defer redisRepo.Close()

	if err := postgresRepo.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx := context.Background()

	records, err := generateRecords(agg, TotalUsers, TotalTeams)
	if err != nil {
		return err
	}

	startTime := time.Now()
	if err := postgresRepo.BulkInsertRecords(ctx, records, BatchSize); err != nil {
		return fmt.Errorf("bulk insert failed: %w", err)
	}
	log.Info().
		Int("records", len(records)).
		Dur("took", time.Since(startTime)).
		Msg("inserted records into PostgreSQL")

	// Rebuild the cache from the store rather than from the generated slice,
	// so rows that already existed are ranked too
	all, err := postgresRepo.AllRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to read back records: %w", err)
	}
	boards := gamification.RankByCategory(all, gamification.EntryFromRecord, gamification.CategoryOfRecord)
	for _, category := range models.Categories {
		if err := redisRepo.ReplaceCategory(ctx, category, boards[category]); err != nil {
			return fmt.Errorf("failed to populate %s leaderboard: %w", category, err)
		}
	}

	total, err := postgresRepo.GetTotalRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify PostgreSQL: %w", err)
	}
	for _, category := range models.Categories {
		cached, err := redisRepo.CountEntries(ctx, category)
		if err != nil {
			return fmt.Errorf("failed to verify Redis: %w", err)
		}
		log.Info().Str("category", string(category)).Int64("cached", cached).Msg("leaderboard populated")

		for _, e := range gamification.Page(boards[category], 0, 5) {
			log.Info().
				Str("category", string(category)).
				Int("rank", e.Rank).
				Str("user_id", e.UserID).
				Int64("points", e.Score).
				Int64("badges", e.SecondaryKey).
				Msg("top entry")
		}
	}
	log.Info().Int64("postgres_records", total).Msg("seeding completed")

	return nil
}

// generateRecords creates participants and teams with random points. Badges
// are derived from the rules so the tie-break key is consistent.
func generateRecords(agg *gamification.Aggregator, users, teams int) ([]models.ExperienceRecord, error) {
	records := make([]models.ExperienceRecord, 0, users+teams)
	today := time.Now().UTC()

	add := func(id string, category models.Category, maxPoints int64) error {
		streak := rand.IntN(40)
		last := today.AddDate(0, 0, -rand.IntN(3))
		rec := models.ExperienceRecord{
			UserID:        id,
			Category:      category,
			TotalPoints:   rand.Int64N(maxPoints + 1),
			Badges:        models.BadgeSet{},
			CurrentStreak: streak,
			LongestStreak: streak + rand.IntN(10),
			LastActiveAt:  &last,
		}

		rec, _, err := agg.EvaluateBadges(rec)
		if err != nil {
			return fmt.Errorf("failed to evaluate badges for %s: %w", id, err)
		}
		records = append(records, rec)
		return nil
	}

	for i := 1; i <= users; i++ {
		if err := add(fmt.Sprintf("%s%d", UserIDPrefix, i), models.CategoryIndividual, MaxPoints); err != nil {
			return nil, err
		}
	}
	for i := 1; i <= teams; i++ {
		if err := add(fmt.Sprintf("%s%d", TeamIDPrefix, i), models.CategoryTeam, MaxPoints*10); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// initPostgres initializes PostgreSQL connection
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool for bulk operations
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
