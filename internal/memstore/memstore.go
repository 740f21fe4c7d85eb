// Package memstore implements the engine's storage interfaces in memory.
// It backs dev runs without a database and the engine's tests. All methods
// are safe for concurrent use; Reserve and Transition follow the same
// compare-and-set discipline as the Postgres store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/salesrouter/backend/internal/engine"
	"github.com/salesrouter/backend/internal/models"
)

type Store struct {
	mu          sync.Mutex
	reps        map[string]models.SalesRep
	rules       map[string]models.RoutingRule
	assignments map[string]models.LeadAssignment
	leads       map[string]models.Lead
	cursors     map[string]string
}

func New() *Store {
	return &Store{
		reps:        map[string]models.SalesRep{},
		rules:       map[string]models.RoutingRule{},
		assignments: map[string]models.LeadAssignment{},
		leads:       map[string]models.Lead{},
		cursors:     map[string]string{},
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

// --- RepDirectory ---

func (s *Store) ListEligible(ctx context.Context, q engine.EligibilityQuery) ([]models.SalesRep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := map[string]bool{}
	for _, id := range q.RepIDs {
		allowed[id] = true
	}

	var out []models.SalesRep
	for _, r := range s.reps {
		if !r.Available || r.CurrentLoad >= r.MaxCapacity {
			continue
		}
		if len(allowed) > 0 && !allowed[r.ID] {
			continue
		}
		if len(q.Specializations) > 0 && !anyOverlap(r.Specializations, q.Specializations) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Reserve(ctx context.Context, repID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reps[repID]
	if !ok {
		return engine.ErrNotFound
	}
	if r.CurrentLoad >= r.MaxCapacity {
		return engine.ErrAtCapacity
	}
	r.CurrentLoad++
	r.TotalAssignments++
	r.UpdatedAt = time.Now().UTC()
	s.reps[repID] = r
	return nil
}

func (s *Store) Release(ctx context.Context, repID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reps[repID]
	if !ok {
		return engine.ErrNotFound
	}
	if r.CurrentLoad > 0 {
		r.CurrentLoad--
	}
	r.UpdatedAt = time.Now().UTC()
	s.reps[repID] = r
	return nil
}

// --- rep CRUD (admin surface) ---

func (s *Store) CreateRep(ctx context.Context, r models.SalesRep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reps[r.ID] = r
	return nil
}

func (s *Store) GetRep(ctx context.Context, id string) (models.SalesRep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reps[id]
	if !ok {
		return models.SalesRep{}, engine.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListReps(ctx context.Context) ([]models.SalesRep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SalesRep, 0, len(s.reps))
	for _, r := range s.reps {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateRepSettings changes availability and capacity, never current_load;
// load moves only through Reserve and Release.
func (s *Store) UpdateRepSettings(ctx context.Context, id string, available *bool, maxCapacity *int) (models.SalesRep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reps[id]
	if !ok {
		return models.SalesRep{}, engine.ErrNotFound
	}
	if available != nil {
		r.Available = *available
	}
	if maxCapacity != nil && *maxCapacity > 0 {
		r.MaxCapacity = *maxCapacity
	}
	r.UpdatedAt = time.Now().UTC()
	s.reps[id] = r
	return r, nil
}

// --- RuleSource + rule CRUD ---

func (s *Store) ActiveRulesOrdered(ctx context.Context) ([]models.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RoutingRule
	for _, r := range s.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].ID < out[j].ID
		}
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (s *Store) IncrementLeadsRouted(ctx context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return engine.ErrNotFound
	}
	r.LeadsRouted++
	r.UpdatedAt = time.Now().UTC()
	s.rules[ruleID] = r
	return nil
}

func (s *Store) CreateRule(ctx context.Context, r models.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) GetRule(ctx context.Context, id string) (models.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return models.RoutingRule{}, engine.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListRules(ctx context.Context) ([]models.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RoutingRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].ID < out[j].ID
		}
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (s *Store) UpdateRule(ctx context.Context, r models.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return engine.ErrNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return engine.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// --- AssignmentLog ---

func (s *Store) Create(ctx context.Context, a models.LeadAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.LeadID == a.LeadID && !existing.Status.Terminal() && existing.Status != models.StatusEscalated {
			return engine.ErrAlreadyAssigned
		}
	}
	s.assignments[a.ID] = a
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.LeadAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return models.LeadAssignment{}, engine.ErrNotFound
	}
	return a, nil
}

func (s *Store) ActiveByLead(ctx context.Context, leadID string) (*models.LeadAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.LeadID == leadID && (a.Status == models.StatusPending || a.Status == models.StatusAccepted) {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) List(ctx context.Context, f engine.AssignmentFilter) ([]models.LeadAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LeadAssignment
	for _, a := range s.assignments {
		if f.LeadID != "" && a.LeadID != f.LeadID {
			continue
		}
		if f.RepID != "" && a.RepID != f.RepID {
			continue
		}
		if f.RuleID != "" && a.RuleID != f.RuleID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.Since.IsZero() && a.AssignedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && a.AssignedAt.After(f.Until) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (s *Store) Transition(ctx context.Context, id string, from, to models.AssignmentStatus, at time.Time) (models.LeadAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return models.LeadAssignment{}, engine.ErrNotFound
	}
	if a.Status != from {
		return models.LeadAssignment{}, engine.ErrInvalidTransition
	}
	a.Status = to
	switch to {
	case models.StatusAccepted, models.StatusRejected:
		t := at
		a.RespondedAt = &t
	case models.StatusEscalated:
		t := at
		a.EscalatedAt = &t
	}
	s.assignments[id] = a
	return a, nil
}

// --- LeadSource + lead CRUD ---

func (s *Store) GetLead(ctx context.Context, id string) (models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return models.Lead{}, engine.ErrNotFound
	}
	return l, nil
}

func (s *Store) CreateLead(ctx context.Context, l models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.ID] = l
	return nil
}

// --- strategy.CursorStore ---

func (s *Store) Cursor(ctx context.Context, ruleID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[ruleID], nil
}

func (s *Store) SetCursor(ctx context.Context, ruleID string, repID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[ruleID] = repID
	return nil
}

func anyOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
