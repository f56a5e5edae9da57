package services

import (
	"context"
	"time"

	"github.com/logs2metrics/l2m/internal/domain/backend"
	"github.com/logs2metrics/l2m/internal/domain/cost"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/validator"
)

// RuleService implements rule.Service and owns the rule status state machine
type RuleService struct {
	repo       rule.Repository
	backend    backend.MetricsBackend
	guardrails cost.Evaluator
	events     rule.EventPublisher
	locks      *ruleLocks
	logger     *logger.Logger
}

// NewRuleService creates a new rule service
func NewRuleService(repo rule.Repository, be backend.MetricsBackend, guardrails cost.Evaluator, events rule.EventPublisher, log *logger.Logger) *RuleService {
	return &RuleService{
		repo:       repo,
		backend:    be,
		guardrails: guardrails,
		events:     events,
		locks:      newRuleLocks(),
		logger:     log.WithComponent("rule_service"),
	}
}

var _ rule.Service = (*RuleService)(nil)

// Create validates and gates a rule, stores it as a draft and, when the
// caller asked for an active rule, provisions it.
func (s *RuleService) Create(ctx context.Context, r *rule.Rule, opts rule.CreateOptions) (*rule.Rule, error) {
	if err := validateRule(r); err != nil {
		return nil, err
	}
	if r.Status == rule.StatusError {
		return nil, errors.ValidationError("Invalid rule", []validator.ValidationError{{
			Field: "status", Tag: "oneof", Value: string(r.Status), Message: "status must be one of [draft active paused]",
		}})
	}

	if !opts.SkipGuardrails {
		report := s.guardrails.Evaluate(ctx, r)
		if !report.AllPassed {
			s.logger.WithFields(map[string]interface{}{
				"rule_name": r.Name,
				"failed":    len(report.Failed()),
			}).Info("Rule rejected by guardrails")
			return nil, errors.GuardrailFailed(report.Response())
		}
	}

	requested := r.Status
	r.Status = rule.StatusDraft
	if requested == rule.StatusPaused {
		r.Status = rule.StatusPaused
	}
	r.StatusReason = ""

	id, err := s.repo.Create(ctx, r)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to create rule")
		return nil, err
	}
	r.ID = id

	s.logger.WithFields(map[string]interface{}{
		"rule_id": id,
		"owner":   r.Owner,
		"status":  requested,
	}).Info("Rule created")
	s.publish(ctx, rule.EventCreated, r)

	if requested != rule.StatusActive {
		return r, nil
	}

	unlock := s.locks.lock(id)
	defer unlock()
	s.locks.bump(id)

	s.activate(ctx, r)
	if err := s.repo.UpdateStatus(ctx, id, r.Status, r.StatusReason); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// GetByID retrieves a rule by ID
func (s *RuleService) GetByID(ctx context.Context, id int64) (*rule.Rule, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves rules with filters and pagination
func (s *RuleService) List(ctx context.Context, filter rule.Filter, limit, offset int) ([]*rule.Rule, int64, error) {
	return s.repo.ListWithPagination(ctx, filter, limit, offset)
}

// Update applies a patch and moves the backend to match the new status.
//
//	draft|paused -> active   provision
//	error -> active          deprovision leftovers, provision
//	error -> draft|paused    deprovision leftovers
//	active -> anything else  deprovision
//	active -> active         reprovision only if a baked block changed
func (s *RuleService) Update(ctx context.Context, id int64, patch rule.Patch) (*rule.Rule, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	s.locks.bump(id)

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := patch.Apply(current)
	if err := validateRule(next); err != nil {
		return nil, err
	}

	wasActive := current.Status == rule.StatusActive
	wantActive := next.Status == rule.StatusActive
	log := s.logger.WithFields(map[string]interface{}{
		"rule_id": id,
		"from":    current.Status,
		"to":      next.Status,
	})

	switch {
	case wasActive && wantActive:
		if current.BakedConfigChanged(next) {
			log.Info("Backend configuration changed, reprovisioning")
			s.backend.Deprovision(ctx, current)
			s.activate(ctx, next)
		}
	case wasActive:
		s.backend.Deprovision(ctx, current)
		next.StatusReason = ""
		if next.Status == rule.StatusPaused {
			s.publish(ctx, rule.EventPaused, next)
		}
	case wantActive:
		if current.Status == rule.StatusError {
			s.backend.Deprovision(ctx, current)
		}
		s.activate(ctx, next)
	default:
		// a failed rule may still own its transform and metrics index
		if current.Status == rule.StatusError && next.Status != rule.StatusError {
			s.backend.Deprovision(ctx, current)
		}
		if next.Status != rule.StatusError {
			next.StatusReason = ""
		}
		if next.Status == rule.StatusPaused && current.Status != rule.StatusPaused {
			s.publish(ctx, rule.EventPaused, next)
		}
	}

	if err := s.repo.Update(ctx, next); err != nil {
		log.ErrorWithErr(err, "Failed to update rule")
		return nil, err
	}

	log.Info("Rule updated")
	return next, nil
}

// Delete tears down any backend resources and removes the rule
func (s *RuleService) Delete(ctx context.Context, id int64) error {
	unlock := s.locks.lock(id)
	defer unlock()
	s.locks.bump(id)

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// a rule in error may still own a failed transform
	if r.Status == rule.StatusActive || r.Status == rule.StatusError {
		s.backend.Deprovision(ctx, r)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.ErrorWithErr(err, "Failed to delete rule")
		return err
	}

	s.logger.With("rule_id", id).Info("Rule deleted")
	s.publish(ctx, rule.EventDeleted, r)
	return nil
}

// ReconcileHealth runs check against a rule that is active and moves the rule
// to error when check reports it unhealthy. check runs without the rule's lock
// so slow engine calls never block user updates; the flip is dropped when any
// other state change landed while check was running.
func (s *RuleService) ReconcileHealth(ctx context.Context, id int64, check rule.HealthCheck) (bool, error) {
	unlock := s.locks.lock(id)
	observed, err := s.repo.GetByID(ctx, id)
	rev := s.locks.revision(id)
	unlock()
	if err != nil {
		return false, err
	}
	if observed.Status != rule.StatusActive {
		return false, nil
	}

	reason, unhealthy := check(ctx, observed)
	if !unhealthy {
		return false, nil
	}

	unlock = s.locks.lock(id)
	defer unlock()

	log := s.logger.WithFields(map[string]interface{}{
		"rule_id": id,
		"reason":  reason,
	})
	if s.locks.revision(id) != rev {
		log.Info("Rule changed during health check, keeping its status")
		return false, nil
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if r.Status != rule.StatusActive {
		return false, nil
	}

	if err := s.repo.UpdateStatus(ctx, id, rule.StatusError, reason); err != nil {
		return false, err
	}
	s.locks.bump(id)

	r.Status = rule.StatusError
	r.StatusReason = reason
	log.Warn("Rule marked as error")
	s.publish(ctx, rule.EventError, r)
	return true, nil
}

// activate provisions r and sets its status from the result. Callers hold the rule lock.
func (s *RuleService) activate(ctx context.Context, r *rule.Rule) {
	res := s.backend.Provision(ctx, r)
	if !res.Success {
		r.Status = rule.StatusError
		r.StatusReason = res.Error
		s.publish(ctx, rule.EventError, r)
		return
	}

	r.Status = rule.StatusActive
	r.StatusReason = ""
	s.publish(ctx, rule.EventActivated, r)
}

func (s *RuleService) publish(ctx context.Context, eventType string, r *rule.Rule) {
	if s.events == nil {
		return
	}
	evt := rule.Event{
		Type:       eventType,
		RuleID:     r.ID,
		RuleName:   r.Name,
		Status:     r.Status,
		Reason:     r.StatusReason,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"rule_id": r.ID,
			"event":   eventType,
		}).WarnWithErr(err, "Failed to publish rule event")
	}
}

// validateRule converts a rule's field error into a validation AppError
func validateRule(r *rule.Rule) error {
	err := r.Validate()
	if err == nil {
		return nil
	}
	if fe, ok := rule.AsFieldError(err); ok {
		return errors.ValidationError("Invalid rule", []validator.ValidationError{{
			Field: fe.Field, Tag: "invalid", Message: fe.Message,
		}})
	}
	return errors.ValidationError(err.Error(), nil)
}
