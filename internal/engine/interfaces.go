package engine

import (
	"context"
	"errors"
	"time"

	"github.com/salesrouter/backend/internal/models"
)

var (
	// ErrAtCapacity is returned by Reserve when the rep is already at max
	// load. Transient: the engine retries on the remaining candidates.
	ErrAtCapacity = errors.New("rep at capacity")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the assignment's current state. Caller-visible, never retried.
	ErrInvalidTransition = errors.New("invalid assignment transition")
	// ErrAlreadyAssigned rejects routing a lead that still has an active
	// assignment. Caller-visible.
	ErrAlreadyAssigned = errors.New("lead already assigned")
	// ErrNotFound covers lookups of unknown reps, rules, leads, assignments.
	ErrNotFound = errors.New("not found")
)

// EligibilityQuery narrows the rep set for one rule evaluation. Empty fields
// impose no constraint; availability and spare capacity are always required.
type EligibilityQuery struct {
	RepIDs          []string
	Specializations []string
}

// RepDirectory is the live registry of reps and the only way capacity moves.
type RepDirectory interface {
	ListEligible(ctx context.Context, q EligibilityQuery) ([]models.SalesRep, error)
	// Reserve atomically increments current_load iff it is under capacity.
	Reserve(ctx context.Context, repID string) error
	// Release atomically decrements current_load, floored at zero.
	Release(ctx context.Context, repID string) error
}

// RuleSource serves a consistent, ordered snapshot of active rules.
type RuleSource interface {
	// ActiveRulesOrdered returns active rules sorted by priority asc, then
	// id asc.
	ActiveRulesOrdered(ctx context.Context) ([]models.RoutingRule, error)
	IncrementLeadsRouted(ctx context.Context, ruleID string) error
}

// AssignmentFilter scopes assignment listings.
type AssignmentFilter struct {
	LeadID  string
	RepID   string
	RuleID  string
	Status  models.AssignmentStatus
	Since   time.Time
	Until   time.Time
}

// AssignmentLog persists assignments and owns the status CAS discipline.
type AssignmentLog interface {
	Create(ctx context.Context, a models.LeadAssignment) error
	Get(ctx context.Context, id string) (models.LeadAssignment, error)
	// ActiveByLead returns the lead's pending or accepted assignment, or nil.
	ActiveByLead(ctx context.Context, leadID string) (*models.LeadAssignment, error)
	List(ctx context.Context, f AssignmentFilter) ([]models.LeadAssignment, error)
	// Transition flips status from exactly `from` to `to`, stamping
	// responded_at / escalated_at as the target state requires. Returns
	// ErrInvalidTransition if the current status is not `from`.
	Transition(ctx context.Context, id string, from, to models.AssignmentStatus, at time.Time) (models.LeadAssignment, error)
}

// LeadSource resolves leads during routing and escalation re-routes.
type LeadSource interface {
	GetLead(ctx context.Context, id string) (models.Lead, error)
}
