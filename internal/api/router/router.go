package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/logs2metrics/l2m/internal/api/handlers"
	"github.com/logs2metrics/l2m/internal/api/middleware"
	"github.com/logs2metrics/l2m/internal/config"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/metrics"
	"github.com/logs2metrics/l2m/internal/pkg/utils"
)

type Handlers struct {
	Health   *handlers.HealthHandler
	Rule     *handlers.RuleHandler
	Analysis *handlers.AnalysisHandler
	Engine   *handlers.EngineHandler
}

// New builds the HTTP handler. limiter is shared so its cleanup loop can be
// tied to the server lifetime.
func New(cfg *config.Config, log *logger.Logger, limiter *middleware.RateLimiter, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, errors.NotFound("Route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorMessage(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/swagger/*", httpSwagger.WrapHandler)
		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
		r.Handle("/metrics", metrics.Handler())
	})

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Use(middleware.Auth(cfg.Auth.JWTSecret))
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

		r.Route("/api/v1/rules", func(r chi.Router) {
			r.Get("/", h.Rule.List)
			r.Post("/", h.Rule.Create)
			r.Post("/estimate", h.Rule.Estimate)
			r.Post("/validate", h.Rule.Validate)
			r.Get("/{id}", h.Rule.Get)
			r.Put("/{id}", h.Rule.Update)
			r.Delete("/{id}", h.Rule.Delete)
			r.Get("/{id}/status", h.Rule.Status)
		})

		r.Post("/api/v1/analysis/panels", h.Analysis.AnalyzePanels)

		r.Route("/api/v1/engine/indices", func(r chi.Router) {
			r.Get("/", h.Engine.ListIndices)
			r.Get("/{index}/mapping", h.Engine.GetMapping)
			r.Get("/{index}/stats", h.Engine.GetStats)
			r.Get("/{index}/cardinality/{field}", h.Engine.GetCardinality)
		})

		r.Get("/api/v1/health/monitor", h.Health.Monitor)
	})

	return r
}
