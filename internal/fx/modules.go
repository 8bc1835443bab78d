package fx

import (
	"context"
	"time"

	"dreamstream/internal/api/handlers"
	"dreamstream/internal/config"
	"dreamstream/internal/gamification"
	"dreamstream/internal/jobs"
	"dreamstream/internal/logger"
	"dreamstream/internal/repository"
	"dreamstream/internal/service"
	"dreamstream/internal/websocket"
	"dreamstream/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// poolShutdownTimeout bounds how long pending ledger writes may take to flush
const poolShutdownTimeout = 30 * time.Second

// ProvideConfig loads configuration, reporting through the bootstrap logger
func ProvideConfig() (*config.Config, error) {
	return config.Load(logger.New())
}

// ProvideLogger builds the process logger at the configured level
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logger.SetLevel(cfg.LogLevel)
}

// ProvidePostgres opens the connection pool and closes it on stop
func ProvidePostgres(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Max connections should be >= number of workers to prevent blocking
	maxOpen := cfg.Worker.Count + 10
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	logger.Info().Int("max_open", maxOpen).Int("max_idle", 10).Msg("connected to PostgreSQL")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := sqlDB.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing PostgreSQL")
			}
			return nil
		},
	})
	return db, nil
}

// ProvideRedis connects to Redis and closes the client on stop
func ProvideRedis(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
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

	logger.Info().Str("addr", cfg.GetRedisAddr()).Msg("connected to Redis")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := client.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing Redis")
			}
			return nil
		},
	})
	return client, nil
}

// ProvidePostgresRepository builds the record store and runs migrations
func ProvidePostgresRepository(db *gorm.DB, logger zerolog.Logger) (*repository.PostgresRepository, error) {
	repo := repository.NewPostgresRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, err
	}
	logger.Info().Msg("database migrations completed")
	return repo, nil
}

// ProvideAggregator builds the aggregator from the configured curve
func ProvideAggregator(cfg *config.Config) (*gamification.Aggregator, error) {
	curve, err := cfg.Curve()
	if err != nil {
		return nil, err
	}
	return gamification.NewAggregator(curve, gamification.DefaultBadgeRules())
}

// ProvideWorkerPool starts the ledger writers and flushes them on stop
func ProvideWorkerPool(lc fx.Lifecycle, cfg *config.Config, repo *repository.PostgresRepository, logger zerolog.Logger) *worker.WorkerPool {
	pool := worker.NewWorkerPool(cfg.Worker.Count, cfg.Worker.QueueSize, repo, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pool.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := pool.Shutdown(poolShutdownTimeout); err != nil {
				logger.Error().Err(err).Msg("worker pool shutdown error")
			}
			return nil
		},
	})
	return pool
}

// ProvideService wires the gamification service to its collaborators
func ProvideService(
	postgresRepo *repository.PostgresRepository,
	redisRepo *repository.RedisRepository,
	pool *worker.WorkerPool,
	agg *gamification.Aggregator,
	logger zerolog.Logger,
) *service.GamificationService {
	return service.NewGamificationService(postgresRepo, postgresRepo, redisRepo, pool, agg, logger)
}

// ProvideHub starts the realtime hub for the lifetime of the app
func ProvideHub(lc fx.Lifecycle, redisRepo *repository.RedisRepository, logger zerolog.Logger) *websocket.Hub {
	hub := websocket.NewHub(redisRepo, logger)
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return hub
}

// ProvideScheduler runs the challenge scheduler for the lifetime of the app
func ProvideScheduler(lc fx.Lifecycle, cfg *config.Config, svc *service.GamificationService, logger zerolog.Logger) *jobs.ChallengeScheduler {
	scheduler := jobs.NewChallengeScheduler(svc, jobs.SchedulerConfig{TickInterval: cfg.Challenge.Tick}, logger)
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(context.Context) error {
			scheduler.Stop()
			cancel()
			return nil
		},
	})
	return scheduler
}

// ProvideHandler exposes the service to the HTTP layer
func ProvideHandler(svc *service.GamificationService) *handlers.GamificationHandler {
	return handlers.NewGamificationHandler(svc)
}

var Module = fx.Options(
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLogger),
	// storage
	fx.Provide(ProvidePostgres),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvidePostgresRepository),
	fx.Provide(repository.NewRedisRepository),
	// core
	fx.Provide(ProvideAggregator),
	// background
	fx.Provide(ProvideWorkerPool),
	// svc
	fx.Provide(ProvideService),
	fx.Provide(ProvideHub),
	fx.Provide(ProvideScheduler),
	// http
	fx.Provide(ProvideHandler),
)
