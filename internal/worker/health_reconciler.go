package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/logs2metrics/l2m/internal/domain/backend"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/metrics"
)

// HealthMarker runs a health check for one rule and flips it to error,
// serialized against every other status change of that rule
type HealthMarker interface {
	ReconcileHealth(ctx context.Context, id int64, check rule.HealthCheck) (bool, error)
}

// Snapshot is the externally visible reconciler state. RulesInError lists
// every rule stored as error at the end of the last cycle, including rules
// flagged in earlier cycles or by a failed activation.
type Snapshot struct {
	Running              bool       `json:"monitor_running"`
	LastCheckTime        *time.Time `json:"last_check_time"`
	RulesInError         []int64    `json:"rules_in_error"`
	CheckIntervalSeconds int        `json:"check_interval_seconds"`
}

// HealthReconciler periodically folds live transform health into rule status
type HealthReconciler struct {
	rules         rule.Repository
	marker        HealthMarker
	backend       backend.MetricsBackend
	interval      time.Duration
	statusTimeout time.Duration
	logger        *logger.Logger

	runningMu sync.Mutex
	scheduler *cron.Cron

	stateMu      sync.RWMutex
	running      bool
	lastCheck    *time.Time
	rulesInError []int64
}

// NewHealthReconciler creates a new reconciler worker
func NewHealthReconciler(
	rules rule.Repository,
	marker HealthMarker,
	be backend.MetricsBackend,
	interval time.Duration,
	statusTimeout time.Duration,
	log *logger.Logger,
) *HealthReconciler {
	return &HealthReconciler{
		rules:         rules,
		marker:        marker,
		backend:       be,
		interval:      interval,
		statusTimeout: statusTimeout,
		logger:        log.WithComponent("health_reconciler"),
		rulesInError:  []int64{},
	}
}

// Start schedules a cycle every interval. Overlapping cycles are skipped.
func (h *HealthReconciler) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.scheduler != nil {
		return fmt.Errorf("health reconciler is already running")
	}

	cl := cronLogger{h.logger}
	h.scheduler = cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := h.scheduler.AddFunc("@every "+h.interval.String(), func() { h.RunOnce(ctx) }); err != nil {
		h.scheduler = nil
		return fmt.Errorf("failed to schedule health reconciler: %w", err)
	}
	h.scheduler.Start()
	h.setRunning(true)

	h.logger.WithFields(map[string]interface{}{
		"interval": h.interval.String(),
	}).Info("Health reconciler started")
	return nil
}

// Stop stops scheduling and waits for a running cycle to finish
func (h *HealthReconciler) Stop() {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.scheduler == nil {
		return
	}

	<-h.scheduler.Stop().Done()
	h.scheduler = nil
	h.setRunning(false)
	h.logger.Info("Health reconciler stopped")
}

// RunOnce performs one reconciliation cycle. A panic anywhere in the cycle
// is logged and swallowed.
func (h *HealthReconciler) RunOnce(ctx context.Context) {
	start := time.Now()
	ok := true
	var flagged, inError []int64

	defer func() {
		if r := recover(); r != nil {
			ok = false
			h.logger.Error(fmt.Sprintf("Health reconciliation cycle panicked: %v", r))
		}
		metrics.RecordReconcileCycle(ok, len(inError), time.Since(start))
	}()

	rules, err := h.rules.List(ctx, rule.Filter{Status: rule.StatusActive})
	if err != nil {
		ok = false
		h.logger.ErrorWithErr(err, "Failed to list active rules")
		return
	}

	for _, r := range rules {
		if h.checkRule(ctx, r) {
			flagged = append(flagged, r.ID)
		}
	}

	inError = h.failedRules(ctx, flagged)

	now := time.Now().UTC()
	h.stateMu.Lock()
	h.lastCheck = &now
	h.rulesInError = append([]int64{}, inError...)
	h.stateMu.Unlock()

	h.logger.WithFields(map[string]interface{}{
		"rules_checked":  len(rules),
		"rules_flagged":  len(flagged),
		"rules_in_error": len(inError),
	}).Debug("Health reconciliation cycle completed")
}

// checkRule reports whether r was moved to error. Failures stay local to the rule.
func (h *HealthReconciler) checkRule(ctx context.Context, r *rule.Rule) (flagged bool) {
	log := h.logger.WithFields(map[string]interface{}{
		"rule_id":   r.ID,
		"rule_name": r.Name,
	})
	defer func() {
		if p := recover(); p != nil {
			log.Error(fmt.Sprintf("Health check panicked: %v", p))
			flagged = false
		}
	}()

	var health backend.TransformHealth
	changed, err := h.marker.ReconcileHealth(ctx, r.ID, func(ctx context.Context, cur *rule.Rule) (string, bool) {
		sctx, cancel := context.WithTimeout(ctx, h.statusTimeout)
		defer cancel()

		st := h.backend.GetStatus(sctx, cur)
		health = st.Health
		if !st.Health.Unhealthy() {
			return "", false
		}
		if st.Error != "" {
			return st.Error, true
		}
		return fmt.Sprintf("transform health is %s", st.Health), true
	})
	if err != nil {
		log.ErrorWithErr(err, "Failed to reconcile rule health")
		return false
	}
	if changed {
		log.With("health", health).Warn("Unhealthy transform, rule moved to error")
	}
	return changed
}

// failedRules returns the IDs of all rules stored as error. When the store
// cannot be read it falls back to the rules flagged in this cycle.
func (h *HealthReconciler) failedRules(ctx context.Context, flagged []int64) []int64 {
	failed, err := h.rules.List(ctx, rule.Filter{Status: rule.StatusError})
	if err != nil {
		h.logger.WarnWithErr(err, "Failed to list rules in error")
		return append([]int64{}, flagged...)
	}
	ids := make([]int64, 0, len(failed))
	for _, r := range failed {
		ids = append(ids, r.ID)
	}
	return ids
}

// Snapshot returns the current reconciler state
func (h *HealthReconciler) Snapshot() Snapshot {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()

	var last *time.Time
	if h.lastCheck != nil {
		t := *h.lastCheck
		last = &t
	}
	return Snapshot{
		Running:              h.running,
		LastCheckTime:        last,
		RulesInError:         append([]int64{}, h.rulesInError...),
		CheckIntervalSeconds: int(h.interval / time.Second),
	}
}

func (h *HealthReconciler) setRunning(v bool) {
	h.stateMu.Lock()
	h.running = v
	h.stateMu.Unlock()
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithFields(kvFields(keysAndValues)).ErrorWithErr(err, msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
