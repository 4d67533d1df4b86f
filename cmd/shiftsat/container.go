package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiftsat/engine/internal/scheduling/application/commands"
	"github.com/shiftsat/engine/internal/scheduling/infrastructure/cache"
	"github.com/shiftsat/engine/internal/scheduling/infrastructure/persistence"
	"github.com/shiftsat/engine/internal/scheduling/infrastructure/scoring"
	"github.com/shiftsat/engine/internal/shared/infrastructure/database"
	_ "github.com/shiftsat/engine/internal/shared/infrastructure/database/postgres"
	_ "github.com/shiftsat/engine/internal/shared/infrastructure/database/sqlite"
	"github.com/shiftsat/engine/internal/shared/infrastructure/eventbus"
	"github.com/shiftsat/engine/pkg/config"
)

// container wires every ambient and domain-stack dependency the CLI's
// solve/serve subcommands need, mirroring the teacher's single-struct
// app.Container (internal/app/container.go), scoped to this module's needs.
type container struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        database.Connection
	Repo      commands.RunRepository
	Cache     commands.ResultCache
	Publisher commands.EventPublisher
	Scorer    commands.DifficultyScorerPlugin
	Handler   *commands.SolveScheduleHandler

	scoringHost *scoring.Host
	redis       *redis.Client
}

func newContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*container, error) {
	c := &container{Config: cfg, Logger: logger}

	dbCfg := database.Config{SQLitePath: cfg.SQLitePath}
	if cfg.IsSQLite() {
		dbCfg.Driver = database.DriverSQLite
	} else {
		dbCfg.Driver = database.DriverPostgres
		dbCfg.URL = cfg.DatabaseURL
	}

	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c.DB = conn

	if err := persistence.EnsureSchema(ctx, conn); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	c.Repo = persistence.NewGenericRunRepository(conn)

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("invalid REDIS_URL, result caching disabled", "error", err)
		} else {
			client := redis.NewClient(opt)
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := client.Ping(pingCtx).Err(); err != nil {
				logger.Warn("redis not available, result caching disabled", "error", err)
			} else {
				c.redis = client
				c.Cache = cache.NewResultCache(client, time.Hour)
				logger.Info("connected to redis")
			}
		}
	}

	if !cfg.IsLocalMode() {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("rabbitmq not available, domain events will be dropped", "error", err)
			c.Publisher = eventbus.NewNoopPublisher(logger)
		} else {
			c.Publisher = publisher
			logger.Info("connected to rabbitmq")
		}
	} else {
		c.Publisher = eventbus.NewNoopPublisher(logger)
	}

	if cfg.HasScoringPlugin() {
		host, err := scoring.Launch(cfg.ScoringPluginPath)
		if err != nil {
			logger.Warn("failed to launch scoring plugin, using built-in scorer", "error", err, "path", cfg.ScoringPluginPath)
		} else {
			c.scoringHost = host
			c.Scorer = host.Scorer()
			logger.Info("scoring plugin active", "path", cfg.ScoringPluginPath)
		}
	}

	c.Handler = commands.NewSolveScheduleHandler(c.Cache, c.Repo, c.Publisher, c.Scorer, logger)
	return c, nil
}

// Close releases every resource the container opened.
func (c *container) Close() {
	if c.scoringHost != nil {
		c.scoringHost.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.Publisher != nil {
		if closer, ok := c.Publisher.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
