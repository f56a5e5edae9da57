package handlers

import (
	"net/http"

	"github.com/logs2metrics/l2m/internal/api/dto"
	"github.com/logs2metrics/l2m/internal/domain/analysis"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/utils"
	"github.com/logs2metrics/l2m/internal/pkg/validator"
)

type AnalysisHandler struct {
	service   analysis.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewAnalysisHandler(service analysis.Service, log *logger.Logger, val *validator.Validator) *AnalysisHandler {
	return &AnalysisHandler{
		service:   service,
		logger:    log,
		validator: val,
	}
}

// AnalyzePanels scores dashboard panels for metric conversion
// @Summary Score dashboard panels
// @Description Rate how well each panel converts to a pre-aggregated metric
// @Tags Analysis
// @Accept json
// @Produce json
// @Param request body dto.AnalyzePanelsRequest true "Panels to score"
// @Success 200 {object} dto.AnalyzePanelsResponse "Scores"
// @Failure 400 {object} utils.ErrorResponse "Validation error"
// @Security BearerAuth
// @Router /analysis/panels [post]
func (h *AnalysisHandler) AnalyzePanels(w http.ResponseWriter, r *http.Request) {
	var req dto.AnalyzePanelsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, h.logger, err, "Invalid request body")
		return
	}
	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}

	results, err := h.service.AnalyzePanels(r.Context(), req.ToRequest())
	if err != nil {
		writeErr(w, h.logger, err, "Failed to analyze panels")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.AnalyzePanelsResponse{Results: results, Count: len(results)})
}
