package handlers

import (
	"net/http"
	"strconv"

	"github.com/logs2metrics/l2m/internal/api/dto"
	"github.com/logs2metrics/l2m/internal/api/middleware"
	"github.com/logs2metrics/l2m/internal/domain/backend"
	"github.com/logs2metrics/l2m/internal/domain/cost"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/utils"
	"github.com/logs2metrics/l2m/internal/pkg/validator"
)

// RuleHandler serves the rule lifecycle endpoints
type RuleHandler struct {
	service    rule.Service
	backend    backend.MetricsBackend
	guardrails cost.Evaluator
	logger     *logger.Logger
	validator  *validator.Validator
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(service rule.Service, be backend.MetricsBackend, guardrails cost.Evaluator, log *logger.Logger, val *validator.Validator) *RuleHandler {
	return &RuleHandler{
		service:    service,
		backend:    be,
		guardrails: guardrails,
		logger:     log,
		validator:  val,
	}
}

// List returns rules with pagination
// @Summary List rules
// @Description Get a paginated list of log-to-metric rules
// @Tags Rules
// @Produce json
// @Param status query string false "Filter by status (draft, active, paused, error)"
// @Param owner query string false "Filter by owner"
// @Param search query string false "Case-insensitive name search"
// @Param page query int false "Page number (default: 1)"
// @Param page_size query int false "Page size (default: 50, max: 200)"
// @Success 200 {object} utils.PaginatedResponse{data=[]dto.RuleDTO} "List of rules"
// @Failure 400 {object} utils.ErrorResponse "Invalid filter"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /rules [get]
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := rule.Filter{
		Status: rule.Status(q.Get("status")),
		Owner:  q.Get("owner"),
		Search: q.Get("search"),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		utils.WriteError(w, errors.BadRequest("Invalid status filter: "+string(filter.Status)))
		return
	}

	p := utils.ParsePaginationParams(r)
	rules, total, err := h.service.List(r.Context(), filter, p.PageSize, p.Offset)
	if err != nil {
		writeErr(w, h.logger, err, "Failed to list rules")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(dto.NewRuleDTOs(rules), p.Page, p.PageSize, total))
}

// Get returns a single rule
// @Summary Get rule by ID
// @Tags Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} dto.RuleDTO "Rule details"
// @Failure 404 {object} utils.ErrorResponse "Rule not found"
// @Security BearerAuth
// @Router /rules/{id} [get]
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, h.logger, err, "Invalid rule ID")
		return
	}

	ru, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeErr(w, h.logger, err, "Failed to get rule")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewRuleDTO(ru))
}

// Create creates a new rule
// @Summary Create rule
// @Description Validate a rule, gate it with the guardrails, store it and provision it when created active
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body dto.CreateRuleRequest true "Rule definition"
// @Param skip_guardrails query bool false "Store the rule even if guardrails fail"
// @Success 201 {object} dto.RuleDTO "Rule created"
// @Failure 400 {object} utils.ErrorResponse "Validation error"
// @Failure 422 {object} utils.ErrorResponse{error=utils.ErrorDetail{details=cost.EstimateResponse}} "Guardrails failed"
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /rules [post]
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	ru, ok := h.decodeRule(w, r)
	if !ok {
		return
	}
	if ru.Owner == "" {
		if owner, ok := middleware.GetOwner(r); ok {
			ru.Owner = owner
		}
	}

	skip, _ := strconv.ParseBool(r.URL.Query().Get("skip_guardrails"))
	created, err := h.service.Create(r.Context(), ru, rule.CreateOptions{SkipGuardrails: skip})
	if err != nil {
		writeErr(w, h.logger, err, "Failed to create rule")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, dto.NewRuleDTO(created))
}

// Update applies a partial update
// @Summary Update rule
// @Description Patch a rule. Status changes provision or deprovision the backend.
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path int true "Rule ID"
// @Param request body dto.UpdateRuleRequest true "Fields to change"
// @Success 200 {object} dto.RuleDTO "Updated rule"
// @Failure 400 {object} utils.ErrorResponse "Validation error"
// @Failure 404 {object} utils.ErrorResponse "Rule not found"
// @Security BearerAuth
// @Router /rules/{id} [put]
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, h.logger, err, "Invalid rule ID")
		return
	}

	var req dto.UpdateRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, h.logger, err, "Invalid request body")
		return
	}
	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		writeErr(w, h.logger, configErr(err), "Validation failed")
		return
	}

	updated, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		writeErr(w, h.logger, err, "Failed to update rule")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.NewRuleDTO(updated))
}

// Delete removes a rule and its backend resources
// @Summary Delete rule
// @Tags Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} utils.SuccessResponse "Rule deleted"
// @Failure 404 {object} utils.ErrorResponse "Rule not found"
// @Security BearerAuth
// @Router /rules/{id} [delete]
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, h.logger, err, "Invalid rule ID")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeErr(w, h.logger, err, "Failed to delete rule")
		return
	}

	utils.WriteSuccessWithMessage(w, http.StatusOK, "Rule deleted successfully", nil)
}

// Status returns the live backend status of a rule
// @Summary Get backend status
// @Description Query the continuous aggregation job of an active or failed rule
// @Tags Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} backend.BackendStatus "Backend status"
// @Failure 400 {object} utils.ErrorResponse "Rule has no backend"
// @Failure 404 {object} utils.ErrorResponse "Rule not found"
// @Security BearerAuth
// @Router /rules/{id}/status [get]
func (h *RuleHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, h.logger, err, "Invalid rule ID")
		return
	}

	ru, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeErr(w, h.logger, err, "Failed to get rule")
		return
	}
	if ru.Status != rule.StatusActive && ru.Status != rule.StatusError {
		utils.WriteError(w, errors.BadRequest("Rule is "+string(ru.Status)+"; only active or failed rules have a backend"))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, h.backend.GetStatus(r.Context(), ru))
}

// Estimate runs the guardrails against a draft without storing it
// @Summary Estimate rule cost
// @Description Dry run: cost projection and guardrail results for a draft rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body dto.CreateRuleRequest true "Draft rule"
// @Success 200 {object} cost.EstimateResponse "Estimate and guardrail results"
// @Failure 400 {object} utils.ErrorResponse "Validation error"
// @Security BearerAuth
// @Router /rules/estimate [post]
func (h *RuleHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	ru, ok := h.decodeRule(w, r)
	if !ok {
		return
	}

	report := h.guardrails.Evaluate(r.Context(), ru)
	utils.WriteSuccess(w, http.StatusOK, report.Response())
}

// Validate checks a draft rule against the engine without creating anything
// @Summary Validate rule against the engine
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body dto.CreateRuleRequest true "Draft rule"
// @Success 200 {object} backend.ValidationResult "Validation result"
// @Failure 400 {object} utils.ErrorResponse "Validation error"
// @Security BearerAuth
// @Router /rules/validate [post]
func (h *RuleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ru, ok := h.decodeRule(w, r)
	if !ok {
		return
	}

	utils.WriteSuccess(w, http.StatusOK, h.backend.Validate(r.Context(), ru))
}

// decodeRule reads and validates a CreateRuleRequest. It writes the error
// response itself and reports false on failure.
func (h *RuleHandler) decodeRule(w http.ResponseWriter, r *http.Request) (*rule.Rule, bool) {
	var req dto.CreateRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, h.logger, err, "Invalid request body")
		return nil, false
	}
	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return nil, false
	}
	ru, err := req.ToRule()
	if err != nil {
		writeErr(w, h.logger, configErr(err), "Validation failed")
		return nil, false
	}
	return ru, true
}
