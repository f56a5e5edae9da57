package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/utils"
	"github.com/logs2metrics/l2m/internal/worker"
)

// MonitorSource exposes the reconciler state
type MonitorSource interface {
	Snapshot() worker.Snapshot
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db      *sql.DB
	engine  engine.Service
	monitor MonitorSource
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler. monitor may be nil when
// the reconciler is disabled.
func NewHealthHandler(db *sql.DB, eng engine.Service, monitor MonitorSource, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		engine:  eng,
		monitor: monitor,
		logger:  log,
	}
}

// Healthz handles liveness probe
// @Summary Liveness probe
// @Description Check if the application is alive
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Application is alive"
// @Router /health [get]
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Readyz handles readiness probe
// @Summary Readiness probe
// @Description Check the rule store and the analytics engine
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Application is ready"
// @Failure 503 {object} utils.ErrorResponse "Service unavailable"
// @Router /readyz [get]
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.ErrorWithErr(err, "Database ping failed")
		utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database connection failed")
		return
	}
	if err := h.engine.Ping(ctx); err != nil {
		h.logger.WarnWithErr(err, "Engine ping failed")
		utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Analytics engine unreachable")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "connected",
		"engine":   "connected",
	})
}

// Monitor reports the health reconciler state
// @Summary Health reconciler state
// @Tags Health
// @Produce json
// @Success 200 {object} worker.Snapshot "Reconciler state"
// @Security BearerAuth
// @Router /health/monitor [get]
func (h *HealthHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		utils.WriteSuccess(w, http.StatusOK, worker.Snapshot{RulesInError: []int64{}})
		return
	}
	utils.WriteSuccess(w, http.StatusOK, h.monitor.Snapshot())
}
