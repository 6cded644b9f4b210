// Package testutil holds the database and redis fixtures shared by
// integration tests. Every fixture skips the test when its backing service
// is unreachable unless TEST_REQUIRE_INFRA (or the per-service
// TEST_REQUIRE_DB / TEST_REQUIRE_REDIS) is set, in which case it fails.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	// pgx registers the "pgx" driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/target/simqueue/internal/migrate"
)

const probeTimeout = 2 * time.Second

// TestDBConfig locates the integration test Postgres.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultTestDBConfig reads TEST_DB_* from the environment. The port defaults
// to 55432, the docker-compose test profile; CI sets TEST_DB_PORT=5432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "simqueue"),
		Password: envOr("TEST_DB_PASSWORD", "simqueue"),
		DBName:   envOr("TEST_DB_NAME", "simqueue"),
		SSLMode:  envOr("DB_SSL_MODE", "disable"),
	}
}

// DSN renders the config as a postgres URL. A non-empty schema is placed
// first on the search_path.
func (c TestDBConfig) DSN(schema string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{"sslmode": {c.SSLMode}}
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SkipIfNoTestDB skips t when the test database cannot be pinged.
func SkipIfNoTestDB(t testing.TB) {
	t.Helper()
	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN(""))
	if err == nil {
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		err = db.PingContext(ctx)
	}
	if err != nil {
		unavailable(t, requireDB(), "test database not available: %v", err)
	}
}

// WithAutoDB runs fn against a freshly migrated schema private to t. The
// schema is dropped when t finishes, so tests never see each other's rows.
func WithAutoDB(t testing.TB, fn func(*sql.DB)) {
	t.Helper()
	fn(openSchemaDB(t))
}

func openSchemaDB(t testing.TB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	cfg := DefaultTestDBConfig()
	admin, err := sql.Open("pgx", cfg.DSN(""))
	if err != nil {
		t.Fatalf("open admin db: %v", err)
	}

	schema := schemaName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db, err := sql.Open("pgx", cfg.DSN(schema))
	if err != nil {
		admin.Close()
		t.Fatalf("open schema db: %v", err)
	}
	db.SetMaxOpenConns(10)

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if err := db.Close(); err != nil {
			t.Logf("close schema db: %v", err)
		}
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		if err := admin.Close(); err != nil {
			t.Logf("close admin db: %v", err)
		}
	})

	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	t.Logf("using schema %s", schema)
	return db
}

func schemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

// SetupTestRedis returns a client on a flushed logical database. REDIS_ADDR
// wins when set; otherwise the compose service name, the default port and
// the test profile port are tried in order. TEST_REDIS_DB pins the database
// index (default 1).
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	candidates := []string{"redis:6379", "localhost:6379", "localhost:56379"}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}

	dbIndex := 1
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			t.Fatalf("invalid TEST_REDIS_DB=%q", v)
		}
		dbIndex = n
	}

	var lastErr error
	for _, addr := range candidates {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: dbIndex})
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			lastErr = client.FlushDB(ctx).Err()
		}
		cancel()
		if lastErr == nil {
			t.Logf("using redis %s db=%d", addr, dbIndex)
			return client
		}
		_ = client.Close()
	}
	unavailable(t, requireRedis(), "redis not available: %v", lastErr)
	return nil
}

// StringPtr returns &s.
func StringPtr(s string) *string { return &s }

// IntPtr returns &i.
func IntPtr(i int) *int { return &i }

func unavailable(t testing.TB, required bool, format string, args ...any) {
	t.Helper()
	if required {
		t.Fatalf(format, args...)
	}
	t.Skipf(format, args...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }
