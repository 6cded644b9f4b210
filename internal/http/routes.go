package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/simqueue/internal/ports"
	"github.com/target/simqueue/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Simulations *service.SimulationService
	Imports     *service.ImportService
	Auth        ports.Authenticator

	// Optional: dependency probes for /readyz
	Readiness []ReadinessCheck
	// Optional: metrics exposition handler mounted at MetricsPath
	Metrics     http.Handler
	MetricsPath string

	MaxImportBytes int64
	Logger         *slog.Logger // Logger for HTTP errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readinessHandler(services.Readiness, logger))

	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.Metrics)
	}

	imports := services.Imports
	if imports == nil {
		imports = service.NewImportService(service.ImportServiceOptions{})
	}
	h := &SimulationHandlers{
		Svc:            services.Simulations,
		Imports:        imports,
		MaxImportBytes: services.MaxImportBytes,
		Logger:         logger,
	}
	registerSimulationRoutes(mux, h, RequireIdentity(services.Auth, logger))

	return mux
}

func registerSimulationRoutes(mux *http.ServeMux, h *SimulationHandlers, auth func(http.Handler) http.Handler) {
	protect := func(fn http.HandlerFunc) http.Handler { return auth(fn) }

	mux.Handle("POST /api/simulations/batch", protect(h.CreateBatch))
	mux.Handle("POST /api/simulations/import", protect(h.Import))
	mux.Handle("GET /api/simulations", protect(h.List))
	mux.Handle("GET /api/simulations/stats", protect(h.Stats))
	mux.Handle("GET /api/simulations/{id}", protect(h.Get))
	mux.Handle("GET /api/simulations/{id}/results", protect(h.Results))
	mux.Handle("DELETE /api/simulations/{id}", protect(h.Delete))
}
