// Package app assembles the accessioning stack from configuration. The API
// server, the worker and accessionctl all build their services through it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/accession-studio/engine/internal/generator"
	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/repository"
	"github.com/accession-studio/engine/internal/services"
	"github.com/accession-studio/engine/pkg/config"
	"github.com/accession-studio/engine/pkg/database"
	"github.com/accession-studio/engine/pkg/hashing"
	"github.com/accession-studio/engine/pkg/logger"
)

// App holds the wired services and the connections they depend on.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *repository.Store
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *services.Metrics

	Database     services.DatabaseService[models.Document]
	Accessioning services.AccessioningService[models.Document]
}

// New opens storage and redis and builds the services. Close releases them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{
		Verbose:    cfg.IsDevelopment(),
		MaxRetries: 5,
		Tracing:    true,
	})
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		logger.L().Info("database migrated")
	}

	a := &App{Config: cfg, DB: db}
	a.Store = repository.NewStore(db, repository.WithIsolation(isolationFor(cfg.DatabaseDriver)))
	a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = services.NewMetrics(a.Registry)

	hash, err := hashing.ByName(cfg.HashAlgorithm)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Database = services.NewDatabaseService[models.Document](a.Store, a.Metrics)
	gen, err := a.generator()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Accessioning = services.NewAccessioningService[models.Document](
		a.Database, gen, models.SummarizeDocument, hash,
		services.WithMetrics(a.Metrics),
		services.WithMaxBatchSize(cfg.BatchMaxSize),
	)

	logger.L().Info("accessioning configured",
		zap.String("driver", cfg.DatabaseDriver),
		zap.String("strategy", cfg.AccessionStrategy),
		zap.String("allocator", cfg.AccessionAllocator),
		zap.String("hash", cfg.HashAlgorithm),
		zap.String("prefix", cfg.AccessionPrefix))
	return a, nil
}

func (a *App) generator() (generator.Generator, error) {
	cfg := a.Config
	switch cfg.AccessionStrategy {
	case "content":
		return generator.NewContent(
			generator.WithContentPrefix(cfg.AccessionPrefix),
			generator.WithLength(cfg.AccessionWidth),
			generator.WithExistenceChecker(a.Database),
		), nil
	case "monotonic", "":
		var alloc generator.Allocator
		switch cfg.AccessionAllocator {
		case "snowflake":
			sf, err := generator.NewSnowflakeAllocator(cfg.SnowflakeNode)
			if err != nil {
				return nil, err
			}
			alloc = sf
		default:
			alloc = generator.NewRedisAllocator(a.Redis, generator.DefaultCounterKey)
		}
		return generator.NewMonotonic(alloc,
			generator.WithPrefix(cfg.AccessionPrefix),
			generator.WithWidth(cfg.AccessionWidth),
		), nil
	default:
		return nil, fmt.Errorf("unknown accession strategy %q", cfg.AccessionStrategy)
	}
}

// RedisConnOpt returns the asynq connection settings for the configured redis.
func (a *App) RedisConnOpt() asynq.RedisConnOpt {
	return asynq.RedisClientOpt{Addr: a.Config.RedisAddr, Password: a.Config.RedisPassword}
}

// Ping checks the database.
func (a *App) Ping(ctx context.Context) error {
	return database.Ping(ctx, a.DB)
}

// PingRedis checks redis.
func (a *App) PingRedis(ctx context.Context) error {
	return a.Redis.Ping(ctx).Err()
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, database.Close(a.DB))
	}
	return errors.Join(errs...)
}

// Postgres runs lineage transactions serializable so concurrent patches of
// one accession cannot both commit. SQLite serializes writers anyway.
func isolationFor(driver string) sql.IsolationLevel {
	if driver == "postgres" {
		return sql.LevelSerializable
	}
	return sql.LevelDefault
}
