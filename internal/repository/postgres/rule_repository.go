package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/metrics"
)

const ruleColumns = `id, name, owner, source, group_by, compute, backend_config, origin, status, status_reason, created_at, updated_at`

// RuleRepository stores rules with each config block in its own JSON column
type RuleRepository struct {
	db     *sql.DB
	driver string
}

// NewRuleRepository creates a rule repository for the given driver
func NewRuleRepository(db *sql.DB, driver string) rule.Repository {
	return &RuleRepository{db: db, driver: driver}
}

func (r *RuleRepository) Create(ctx context.Context, rl *rule.Rule) (int64, error) {
	defer r.observe("insert", time.Now())

	now := time.Now().UTC()
	rl.CreatedAt = now
	rl.UpdatedAt = now

	cols, err := encodeConfig(rl)
	if err != nil {
		return 0, err
	}

	query := r.bind(`INSERT INTO log_metric_rules (name, owner, source, group_by, compute, backend_config, origin, status, status_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		rl.Name, rl.Owner, cols.source, cols.groupBy, cols.compute, cols.backend, cols.origin,
		string(rl.Status), rl.StatusReason, r.timeArg(now), r.timeArg(now),
	).Scan(&id)
	if err != nil {
		return 0, errors.DatabaseError("Failed to create rule", err)
	}

	rl.ID = id
	return id, nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*rule.Rule, error) {
	defer r.observe("select", time.Now())

	row := r.db.QueryRowContext(ctx, r.bind(`SELECT `+ruleColumns+` FROM log_metric_rules WHERE id = ?`), id)
	rl, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Rule")
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get rule", err)
	}
	return rl, nil
}

func (r *RuleRepository) Update(ctx context.Context, rl *rule.Rule) error {
	defer r.observe("update", time.Now())

	rl.UpdatedAt = time.Now().UTC()
	cols, err := encodeConfig(rl)
	if err != nil {
		return err
	}

	query := r.bind(`UPDATE log_metric_rules SET name = ?, owner = ?, source = ?, group_by = ?, compute = ?, backend_config = ?, origin = ?,
		status = ?, status_reason = ?, updated_at = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		rl.Name, rl.Owner, cols.source, cols.groupBy, cols.compute, cols.backend, cols.origin,
		string(rl.Status), rl.StatusReason, r.timeArg(rl.UpdatedAt), rl.ID,
	)
	if err != nil {
		return errors.DatabaseError("Failed to update rule", err)
	}
	return expectRow(result)
}

func (r *RuleRepository) UpdateStatus(ctx context.Context, id int64, status rule.Status, reason string) error {
	defer r.observe("update", time.Now())

	query := r.bind(`UPDATE log_metric_rules SET status = ?, status_reason = ?, updated_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, string(status), reason, r.timeArg(time.Now().UTC()), id)
	if err != nil {
		return errors.DatabaseError("Failed to update rule status", err)
	}
	return expectRow(result)
}

func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	defer r.observe("delete", time.Now())

	result, err := r.db.ExecContext(ctx, r.bind("DELETE FROM log_metric_rules WHERE id = ?"), id)
	if err != nil {
		return errors.DatabaseError("Failed to delete rule", err)
	}
	return expectRow(result)
}

func (r *RuleRepository) List(ctx context.Context, filter rule.Filter) ([]*rule.Rule, error) {
	defer r.observe("select", time.Now())

	where, args := buildRuleWhere(filter)
	query := r.bind(fmt.Sprintf(`SELECT %s FROM log_metric_rules WHERE %s ORDER BY id ASC`, ruleColumns, where))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list rules", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

func (r *RuleRepository) ListWithPagination(ctx context.Context, filter rule.Filter, limit, offset int) ([]*rule.Rule, int64, error) {
	defer r.observe("select", time.Now())

	where, args := buildRuleWhere(filter)

	var total int64
	err := r.db.QueryRowContext(ctx, r.bind(fmt.Sprintf("SELECT COUNT(*) FROM log_metric_rules WHERE %s", where)), args...).Scan(&total)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to count rules", err)
	}

	query := r.bind(fmt.Sprintf(`SELECT %s FROM log_metric_rules WHERE %s ORDER BY id DESC LIMIT ? OFFSET ?`, ruleColumns, where))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.DatabaseError("Failed to list rules", err)
	}
	defer rows.Close()

	rules, err := collectRules(rows)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

func (r *RuleRepository) bind(query string) string {
	return Rebind(r.driver, query)
}

// timeArg stores RFC3339 text in sqlite and native timestamps in postgres
func (r *RuleRepository) timeArg(t time.Time) interface{} {
	if r.driver == "postgres" {
		return t
	}
	return t.Format(time.RFC3339Nano)
}

func (r *RuleRepository) observe(op string, start time.Time) {
	metrics.RecordDBQuery(op, "log_metric_rules", time.Since(start))
}

func buildRuleWhere(filter rule.Filter) (string, []interface{}) {
	where := []string{"1 = 1"}
	var args []interface{}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Search != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	return strings.Join(where, " AND "), args
}

type configColumns struct {
	source, groupBy, compute, backend string
	origin                            sql.NullString
}

func encodeConfig(rl *rule.Rule) (configColumns, error) {
	var cols configColumns
	blocks := []struct {
		dst *string
		v   interface{}
	}{
		{&cols.source, rl.Source},
		{&cols.groupBy, rl.GroupBy},
		{&cols.compute, rl.Compute},
		{&cols.backend, rl.Backend},
	}
	for _, b := range blocks {
		data, err := json.Marshal(b.v)
		if err != nil {
			return cols, errors.Internal("Failed to encode rule config", err)
		}
		*b.dst = string(data)
	}
	if rl.Origin != nil {
		data, err := json.Marshal(rl.Origin)
		if err != nil {
			return cols, errors.Internal("Failed to encode rule origin", err)
		}
		cols.origin = sql.NullString{String: string(data), Valid: true}
	}
	return cols, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*rule.Rule, error) {
	var (
		rl                                rule.Rule
		source, groupBy, compute, backend []byte
		origin                            []byte
		status                            string
		createdAt, updatedAt              interface{}
	)
	if err := row.Scan(&rl.ID, &rl.Name, &rl.Owner, &source, &groupBy, &compute, &backend, &origin,
		&status, &rl.StatusReason, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	// Stored blocks are decoded through the same constructors used on input.
	if err := json.Unmarshal(source, &rl.Source); err != nil {
		return nil, fmt.Errorf("rule %d source: %w", rl.ID, err)
	}
	if err := json.Unmarshal(groupBy, &rl.GroupBy); err != nil {
		return nil, fmt.Errorf("rule %d group_by: %w", rl.ID, err)
	}
	if err := json.Unmarshal(compute, &rl.Compute); err != nil {
		return nil, fmt.Errorf("rule %d compute: %w", rl.ID, err)
	}
	if err := json.Unmarshal(backend, &rl.Backend); err != nil {
		return nil, fmt.Errorf("rule %d backend_config: %w", rl.ID, err)
	}
	if len(origin) > 0 {
		rl.Origin = &rule.OriginConfig{}
		if err := json.Unmarshal(origin, rl.Origin); err != nil {
			return nil, fmt.Errorf("rule %d origin: %w", rl.ID, err)
		}
	}

	rl.Status = rule.Status(status)
	rl.CreatedAt = parseTime(createdAt)
	rl.UpdatedAt = parseTime(updatedAt)
	return &rl, nil
}

func collectRules(rows *sql.Rows) ([]*rule.Rule, error) {
	var rules []*rule.Rule
	for rows.Next() {
		rl, err := scanRule(rows)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan rule", err)
		}
		rules = append(rules, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to iterate rules", err)
	}
	return rules, nil
}

func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, _ := time.Parse(time.RFC3339Nano, t)
		return parsed
	case []byte:
		parsed, _ := time.Parse(time.RFC3339Nano, string(t))
		return parsed
	default:
		return time.Time{}
	}
}

func expectRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Rule")
	}
	return nil
}
