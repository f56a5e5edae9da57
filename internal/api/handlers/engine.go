package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/utils"
)

// EngineHandler exposes read-only views of the analytics engine
type EngineHandler struct {
	service engine.Service
	logger  *logger.Logger
}

func NewEngineHandler(service engine.Service, log *logger.Logger) *EngineHandler {
	return &EngineHandler{service: service, logger: log}
}

// IndexMapping is the field list of an index
type IndexMapping struct {
	Index  string                `json:"index"`
	Fields []engine.FieldMapping `json:"fields"`
}

// ListIndices lists the user indices
// @Summary List indices
// @Tags Engine
// @Produce json
// @Success 200 {object} []engine.IndexInfo "Indices"
// @Failure 502 {object} utils.ErrorResponse "Engine error"
// @Security BearerAuth
// @Router /engine/indices [get]
func (h *EngineHandler) ListIndices(w http.ResponseWriter, r *http.Request) {
	indices, err := h.service.ListIndices(r.Context())
	if err != nil {
		writeErr(w, h.logger, err, "Failed to list indices")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, indices)
}

// GetMapping returns the mapped fields of an index or pattern
// @Summary Get index mapping
// @Tags Engine
// @Produce json
// @Param index path string true "Index name or pattern"
// @Success 200 {object} handlers.IndexMapping "Fields"
// @Failure 404 {object} utils.ErrorResponse "Index not found"
// @Security BearerAuth
// @Router /engine/indices/{index}/mapping [get]
func (h *EngineHandler) GetMapping(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")
	fields, err := h.service.GetMapping(r.Context(), index)
	if err != nil {
		writeErr(w, h.logger, err, "Failed to read mapping")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, IndexMapping{Index: index, Fields: fields})
}

// GetStats returns volume statistics of an index or pattern
// @Summary Get index stats
// @Tags Engine
// @Produce json
// @Param index path string true "Index name or pattern"
// @Success 200 {object} engine.IndexStats "Stats"
// @Failure 404 {object} utils.ErrorResponse "Index not found"
// @Security BearerAuth
// @Router /engine/indices/{index}/stats [get]
func (h *EngineHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetIndexStats(r.Context(), chi.URLParam(r, "index"))
	if err != nil {
		writeErr(w, h.logger, err, "Failed to read index stats")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, stats)
}

// GetCardinality returns the approximate distinct count of a field
// @Summary Get field cardinality
// @Tags Engine
// @Produce json
// @Param index path string true "Index name or pattern"
// @Param field path string true "Field name"
// @Success 200 {object} engine.FieldCardinality "Cardinality"
// @Failure 404 {object} utils.ErrorResponse "Index not found"
// @Security BearerAuth
// @Router /engine/indices/{index}/cardinality/{field} [get]
func (h *EngineHandler) GetCardinality(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.GetFieldCardinality(r.Context(), chi.URLParam(r, "index"), chi.URLParam(r, "field"))
	if err != nil {
		writeErr(w, h.logger, err, "Failed to compute cardinality")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, card)
}
