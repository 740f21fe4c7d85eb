package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salesrouter/backend/internal/engine"
	"github.com/salesrouter/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// --- reps ---

const repColumns = `id, name, available, current_load, max_capacity, specializations, territories, conversion_rate, avg_response_time_ms, total_assignments, updated_at`

func scanRep(row pgx.Row) (models.SalesRep, error) {
	var r models.SalesRep
	var avgMs int64
	if err := row.Scan(&r.ID, &r.Name, &r.Available, &r.CurrentLoad, &r.MaxCapacity, &r.Specializations, &r.Territories, &r.ConversionRate, &avgMs, &r.TotalAssignments, &r.UpdatedAt); err != nil {
		return models.SalesRep{}, err
	}
	r.AvgResponseTime = time.Duration(avgMs) * time.Millisecond
	return r, nil
}

func (s *Store) CreateRep(ctx context.Context, r models.SalesRep) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO sales_reps (id, name, available, current_load, max_capacity, specializations, territories, conversion_rate, avg_response_time_ms, total_assignments, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
	`, r.ID, r.Name, r.Available, r.CurrentLoad, r.MaxCapacity, r.Specializations, r.Territories, r.ConversionRate, r.AvgResponseTime.Milliseconds(), r.TotalAssignments)
	return err
}

func (s *Store) GetRep(ctx context.Context, id string) (models.SalesRep, error) {
	r, err := scanRep(s.Pool.QueryRow(ctx, `SELECT `+repColumns+` FROM sales_reps WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SalesRep{}, engine.ErrNotFound
	}
	return r, err
}

func (s *Store) ListReps(ctx context.Context) ([]models.SalesRep, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+repColumns+` FROM sales_reps ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SalesRep
	for rows.Next() {
		r, err := scanRep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListEligible(ctx context.Context, q engine.EligibilityQuery) ([]models.SalesRep, error) {
	query := `SELECT ` + repColumns + ` FROM sales_reps WHERE available = true AND current_load < max_capacity`
	var args []any
	if len(q.RepIDs) > 0 {
		args = append(args, q.RepIDs)
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	if len(q.Specializations) > 0 {
		args = append(args, q.Specializations)
		query += fmt.Sprintf(" AND specializations && $%d", len(args))
	}
	query += " ORDER BY id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SalesRep
	for rows.Next() {
		r, err := scanRep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reserve is the single atomic compare-and-increment on a rep's load; the
// WHERE guard loses the race cleanly when two decisions target the same rep.
func (s *Store) Reserve(ctx context.Context, repID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sales_reps
		SET current_load = current_load + 1, total_assignments = total_assignments + 1, updated_at = NOW()
		WHERE id = $1 AND current_load < max_capacity
	`, repID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sales_reps WHERE id = $1)`, repID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return engine.ErrNotFound
		}
		return engine.ErrAtCapacity
	}
	return nil
}

func (s *Store) Release(ctx context.Context, repID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sales_reps
		SET current_load = GREATEST(current_load - 1, 0), updated_at = NOW()
		WHERE id = $1
	`, repID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateRepSettings(ctx context.Context, id string, available *bool, maxCapacity *int) (models.SalesRep, error) {
	sets := []string{"updated_at = NOW()"}
	var args []any
	if available != nil {
		args = append(args, *available)
		sets = append(sets, fmt.Sprintf("available = $%d", len(args)))
	}
	if maxCapacity != nil && *maxCapacity > 0 {
		args = append(args, *maxCapacity)
		sets = append(sets, fmt.Sprintf("max_capacity = $%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE sales_reps SET %s WHERE id = $%d RETURNING `+repColumns, strings.Join(sets, ", "), len(args))

	r, err := scanRep(s.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SalesRep{}, engine.ErrNotFound
	}
	return r, err
}

// --- rules ---

const ruleColumns = `id, name, priority, is_active, routing_type, min_company_size, max_company_size, regions, industries, sources, eligible_rep_ids, required_specializations, leads_routed, success_rate, created_at, updated_at`

func scanRule(row pgx.Row) (models.RoutingRule, error) {
	var r models.RoutingRule
	if err := row.Scan(&r.ID, &r.Name, &r.Priority, &r.IsActive, &r.RoutingType,
		&r.Conditions.MinCompanySize, &r.Conditions.MaxCompanySize,
		&r.Conditions.Regions, &r.Conditions.Industries, &r.Conditions.Sources,
		&r.EligibleRepIDs, &r.RequiredSpecializations,
		&r.LeadsRouted, &r.SuccessRate, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return models.RoutingRule{}, err
	}
	return r, nil
}

func (s *Store) CreateRule(ctx context.Context, r models.RoutingRule) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO routing_rules (id, name, priority, is_active, routing_type, min_company_size, max_company_size, regions, industries, sources, eligible_rep_ids, required_specializations, leads_routed, success_rate, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
	`, r.ID, r.Name, r.Priority, r.IsActive, r.RoutingType,
		r.Conditions.MinCompanySize, r.Conditions.MaxCompanySize,
		r.Conditions.Regions, r.Conditions.Industries, r.Conditions.Sources,
		r.EligibleRepIDs, r.RequiredSpecializations, r.LeadsRouted, r.SuccessRate)
	return err
}

func (s *Store) GetRule(ctx context.Context, id string) (models.RoutingRule, error) {
	r, err := scanRule(s.Pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM routing_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RoutingRule{}, engine.ErrNotFound
	}
	return r, err
}

func (s *Store) ListRules(ctx context.Context) ([]models.RoutingRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM routing_rules ORDER BY priority ASC, id ASC`)
}

func (s *Store) ActiveRulesOrdered(ctx context.Context) ([]models.RoutingRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM routing_rules WHERE is_active = true ORDER BY priority ASC, id ASC`)
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]models.RoutingRule, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RoutingRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRule(ctx context.Context, r models.RoutingRule) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE routing_rules
		SET name = $1, priority = $2, is_active = $3, routing_type = $4,
			min_company_size = $5, max_company_size = $6, regions = $7, industries = $8, sources = $9,
			eligible_rep_ids = $10, required_specializations = $11, updated_at = NOW()
		WHERE id = $12
	`, r.Name, r.Priority, r.IsActive, r.RoutingType,
		r.Conditions.MinCompanySize, r.Conditions.MaxCompanySize,
		r.Conditions.Regions, r.Conditions.Industries, r.Conditions.Sources,
		r.EligibleRepIDs, r.RequiredSpecializations, r.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM routing_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementLeadsRouted(ctx context.Context, ruleID string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE routing_rules SET leads_routed = leads_routed + 1, updated_at = NOW() WHERE id = $1`, ruleID)
	return err
}

// --- leads ---

func (s *Store) CreateLead(ctx context.Context, l models.Lead) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO leads (id, company_name, company_size, region, industry, source, priority, needs, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, l.ID, l.CompanyName, l.CompanySize, l.Region, l.Industry, l.Source, l.Priority, l.Needs, l.CreatedAt)
	return err
}

func (s *Store) GetLead(ctx context.Context, id string) (models.Lead, error) {
	var l models.Lead
	err := s.Pool.QueryRow(ctx, `
		SELECT id, company_name, company_size, region, industry, source, priority, needs, created_at
		FROM leads WHERE id = $1
	`, id).Scan(&l.ID, &l.CompanyName, &l.CompanySize, &l.Region, &l.Industry, &l.Source, &l.Priority, &l.Needs, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Lead{}, engine.ErrNotFound
	}
	return l, err
}

// --- assignments ---

const assignmentColumns = `id, lead_id, rep_id, rule_id, rule_priority, status, reason, match_score, reasoning, assigned_at, responded_at, escalated_at`

func scanAssignment(row pgx.Row) (models.LeadAssignment, error) {
	var a models.LeadAssignment
	if err := row.Scan(&a.ID, &a.LeadID, &a.RepID, &a.RuleID, &a.RulePriority, &a.Status, &a.Reason, &a.MatchScore, &a.Reasoning, &a.AssignedAt, &a.RespondedAt, &a.EscalatedAt); err != nil {
		return models.LeadAssignment{}, err
	}
	return a, nil
}

func (s *Store) Create(ctx context.Context, a models.LeadAssignment) error {
	// The partial unique index on (lead_id) WHERE status IN
	// ('pending','accepted') enforces the single-active-assignment invariant.
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO lead_assignments (id, lead_id, rep_id, rule_id, rule_priority, status, reason, match_score, reasoning, assigned_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, a.ID, a.LeadID, a.RepID, a.RuleID, a.RulePriority, a.Status, a.Reason, a.MatchScore, a.Reasoning, a.AssignedAt)
	if err != nil && strings.Contains(err.Error(), "idx_lead_assignments_active") {
		return engine.ErrAlreadyAssigned
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (models.LeadAssignment, error) {
	a, err := scanAssignment(s.Pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM lead_assignments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.LeadAssignment{}, engine.ErrNotFound
	}
	return a, err
}

func (s *Store) ActiveByLead(ctx context.Context, leadID string) (*models.LeadAssignment, error) {
	a, err := scanAssignment(s.Pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM lead_assignments
		WHERE lead_id = $1 AND status IN ('pending','accepted')
		LIMIT 1
	`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) List(ctx context.Context, f engine.AssignmentFilter) ([]models.LeadAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM lead_assignments`
	var args []any
	var wheres []string
	if f.LeadID != "" {
		args = append(args, f.LeadID)
		wheres = append(wheres, fmt.Sprintf("lead_id = $%d", len(args)))
	}
	if f.RepID != "" {
		args = append(args, f.RepID)
		wheres = append(wheres, fmt.Sprintf("rep_id = $%d", len(args)))
	}
	if f.RuleID != "" {
		args = append(args, f.RuleID)
		wheres = append(wheres, fmt.Sprintf("rule_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		wheres = append(wheres, fmt.Sprintf("assigned_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		wheres = append(wheres, fmt.Sprintf("assigned_at <= $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY assigned_at ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeadAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Transition is the status CAS: the UPDATE only lands when the row still
// carries the expected `from` status, which keeps overlapping escalation
// sweeps and rep actions from double-applying.
func (s *Store) Transition(ctx context.Context, id string, from, to models.AssignmentStatus, at time.Time) (models.LeadAssignment, error) {
	set := "status = $1"
	switch to {
	case models.StatusAccepted, models.StatusRejected:
		set += ", responded_at = $4"
	case models.StatusEscalated:
		set += ", escalated_at = $4"
	}

	query := `UPDATE lead_assignments SET ` + set + ` WHERE id = $2 AND status = $3 RETURNING ` + assignmentColumns
	args := []any{to, id, from}
	if strings.Contains(set, "$4") {
		args = append(args, at)
	}

	a, err := scanAssignment(s.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, engine.ErrNotFound) {
			return models.LeadAssignment{}, engine.ErrNotFound
		}
		return models.LeadAssignment{}, engine.ErrInvalidTransition
	}
	return a, err
}

// --- strategy.CursorStore ---

func (s *Store) Cursor(ctx context.Context, ruleID string) (string, error) {
	var repID string
	err := s.Pool.QueryRow(ctx, `SELECT last_rep_id FROM rotation_cursors WHERE rule_id = $1`, ruleID).Scan(&repID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return repID, err
}

func (s *Store) SetCursor(ctx context.Context, ruleID string, repID string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO rotation_cursors (rule_id, last_rep_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (rule_id) DO UPDATE SET last_rep_id = EXCLUDED.last_rep_id, updated_at = NOW()
	`, ruleID, repID)
	return err
}
