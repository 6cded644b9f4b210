package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/data"
)

const connectTimeout = 5 * time.Second

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// postgresDSN renders the pgx connection URL; url.URL escapes credentials.
func postgresDSN(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// ConnectDB opens the Postgres pool and verifies it with a ping.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if n := cfg.DBConfig.MaxOpenConns; n > 0 {
		db.SetMaxOpenConns(n)
	}
	if n := cfg.DBConfig.MaxIdleConns; n > 0 {
		db.SetMaxIdleConns(n)
	}
	if d := cfg.DBConfig.ConnMaxLifetime; d > 0 {
		db.SetConnMaxLifetime(d)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping database: %w", err), db.Close())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
			"max_open_conns", cfg.DBConfig.MaxOpenConns,
		)
	}
	return db, nil
}

// ConnectRedis dials Redis in direct, sentinel or cluster mode and pings it.
//
//nolint:ireturn // the concrete client type depends on the configured topology.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, err := redisOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch {
	case cfg.RedisConfig.UseCluster:
		client = redis.NewClusterClient(opts.Cluster())
	case cfg.RedisConfig.UseSentinel:
		client = redis.NewFailoverClient(opts.Failover())
	default:
		client = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", err), client.Close())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected",
			"addrs", strings.Join(opts.Addrs, ","),
			"cluster", cfg.RedisConfig.UseCluster,
			"sentinel", cfg.RedisConfig.UseSentinel,
		)
	}
	return client, nil
}

// redisOptions maps RedisConfig onto go-redis universal options. REDIS_URI may be
// a bare host:port or a redis:// / rediss:// URL carrying credentials and TLS;
// in cluster mode it is only consulted when REDIS_CLUSTER_NODES is empty.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{Password: cfg.Password}

	if cfg.UseSentinel {
		opts.Addrs = trimAll(cfg.SentinelNodes)
		if len(opts.Addrs) == 0 {
			return nil, errors.New("redis sentinel mode requires REDIS_SENTINEL_NODES")
		}
		opts.MasterName = cfg.SentinelMasterName
		opts.SentinelPassword = cfg.SentinelPassword
		return opts, nil
	}

	if cfg.UseCluster {
		opts.Addrs = trimAll(cfg.ClusterNodes)
		if len(opts.Addrs) > 0 {
			return opts, nil
		}
	}

	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, errors.New("redis requires REDIS_URI or REDIS_CLUSTER_NODES")
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		opts.Addrs = []string{uri}
		return opts, nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	opts.DB = parsed.DB
	opts.TLSConfig = parsed.TLSConfig
	return opts, nil
}

func trimAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}
	return nil
}
