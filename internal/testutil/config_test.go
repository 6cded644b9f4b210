package testutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to the compose test profile", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME", "DB_SSL_MODE"} {
			t.Setenv(k, "")
		}
		assert.Equal(t, TestDBConfig{
			Host:     "localhost",
			Port:     "55432",
			User:     "simqueue",
			Password: "simqueue",
			DBName:   "simqueue",
			SSLMode:  "disable",
		}, DefaultTestDBConfig())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, "5432", cfg.Port)
	})
}

func TestTestDBConfigDSN(t *testing.T) {
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "sim", SSLMode: "disable"}

	u, err := url.Parse(cfg.DSN("t_abcd"))
	require.NoError(t, err)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/sim", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "t_abcd,public", u.Query().Get("search_path"))

	u, err = url.Parse(cfg.DSN(""))
	require.NoError(t, err)
	assert.False(t, u.Query().Has("search_path"))
}
