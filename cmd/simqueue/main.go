package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/adapters/rabbitmq"
	"github.com/target/simqueue/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	cfgPtr := &cfg

	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	// Resolve auth before touching storage so a bad issuer fails fast.
	var services bootstrap.ServiceContainer
	if cfg.IsHTTPServerEnabled() {
		authn, authErr := bootstrap.BuildAuthenticator(ctx, bootstrap.AuthConfig{
			Auth:   cfg.Auth,
			IsDev:  cfg.IsDev,
			Logger: logger,
		})
		if authErr != nil {
			return fmt.Errorf("build authenticator: %w", authErr)
		}
		services.Auth = authn
	}

	db, redisClient, err := initInfrastructure(ctx, cfgPtr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	var broker *rabbitmq.Coordinator
	if cfg.NeedsBroker() {
		broker, err = bootstrap.NewBroker(bootstrap.BrokerConfig{AMQP: cfg.AMQP, Logger: logger})
		if err != nil {
			return err
		}
		defer func() {
			if cerr := broker.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close broker failed", "error", cerr)
			}
		}()
	}

	built, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfgPtr,
		DB:          db,
		RedisClient: redisClient,
		Auth:        services.Auth,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := built.Observability.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics sink failed", "error", cerr)
		}
	}()

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      cfgPtr,
		Services:    built,
		DB:          db,
		RedisClient: redisClient,
		Broker:      broker,
		Logger:      logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting simqueue",
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
		"queue", cfg.AMQP.Queue,
		"auth_mode", cfg.Auth.Mode,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}

// initInfrastructure connects shared dependencies used by the service runtime.
// Redis is only dialled when the cache is enabled.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}
	db, err := bootstrap.ConnectDB(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	if !cfg.Cache.Enabled {
		return db, nil, nil
	}

	redisClient, err := bootstrap.ConnectRedis(dbCfg)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
			return nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return db, redisClient, nil
}
