package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// MaxConnections caps concurrently accepted connections. Zero disables the limit.
	MaxConnections int `env:"HTTP_MAX_CONNECTIONS" envDefault:"512"`

	// MaxImportBytes bounds the size of an import document.
	MaxImportBytes int64 `env:"HTTP_MAX_IMPORT_BYTES" envDefault:"1048576"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.MaxConnections < 0 {
		h.MaxConnections = 0
	}
	if h.MaxImportBytes <= 0 {
		h.MaxImportBytes = 1 << 20
	}
}
