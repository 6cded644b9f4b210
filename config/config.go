package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication configuration
//   - database.go: Database, cache and broker configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode, worker, relay and reaper configuration
//   - observability.go: Metrics and failure notifications
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Storage configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Broker configuration
	AMQP AMQPConfig `envPrefix:"AMQP_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	Worker WorkerConfig
	Relay  RelayConfig
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.AMQP.Sanitize()
	c.Cache.Sanitize()

	c.Worker.Sanitize()
	c.Relay.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks APP_ENV as a fallback for DEV.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.isEnabled(ServiceModeHTTP)
}

// IsWorkerEnabled returns true if the simulation worker is enabled.
func (c *AppConfig) IsWorkerEnabled() bool {
	return c.isEnabled(ServiceModeWorker)
}

// IsRelayEnabled returns true if the outbox relay is enabled.
func (c *AppConfig) IsRelayEnabled() bool {
	return c.isEnabled(ServiceModeRelay)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.isEnabled(ServiceModeReaper)
}

// NeedsBroker reports whether any enabled service talks to the message broker.
func (c *AppConfig) NeedsBroker() bool {
	return c.IsWorkerEnabled() || c.IsRelayEnabled()
}
