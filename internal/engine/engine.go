package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/salesrouter/backend/internal/models"
	"github.com/salesrouter/backend/internal/strategy"
)

// Engine orchestrates rule evaluation, strategy dispatch, capacity
// reservation and assignment creation. Safe for concurrent use; the only
// shared mutable state is behind the RepDirectory and AssignmentLog.
type Engine struct {
	Reps        RepDirectory
	Rules       RuleSource
	Assignments AssignmentLog
	Leads       LeadSource
	Selectors   map[models.RoutingType]strategy.Selector
	Logger      zerolog.Logger
	Now         func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// RuleAttempt records one rule's outcome inside a routing decision; the
// slice of attempts is persisted as the assignment's reasoning blob.
type RuleAttempt struct {
	RuleID     string `json:"rule_id"`
	RuleName   string `json:"rule_name"`
	Priority   int    `json:"priority"`
	Matched    bool   `json:"matched"`
	Candidates int    `json:"candidates"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
}

// RouteResult is the outcome of routing one lead. Unrouted is a normal
// terminal condition, not an error.
type RouteResult struct {
	Assignment *models.LeadAssignment `json:"assignment,omitempty"`
	Unrouted   bool                   `json:"unrouted"`
	Attempts   []RuleAttempt          `json:"attempts"`
}

// Route assigns a lead to a rep by walking active rules in priority order.
func (e *Engine) Route(ctx context.Context, lead models.Lead) (RouteResult, error) {
	return e.RouteFrom(ctx, lead, math.MinInt, "")
}

// RouteFrom is Route restricted to rules with priority >= minPriority,
// excluding excludeRuleID. The escalation monitor uses it to keep re-routes
// in the same or a lower priority tier than the expiring assignment.
func (e *Engine) RouteFrom(ctx context.Context, lead models.Lead, minPriority int, excludeRuleID string) (RouteResult, error) {
	active, err := e.Assignments.ActiveByLead(ctx, lead.ID)
	if err != nil {
		return RouteResult{}, err
	}
	if active != nil {
		return RouteResult{}, ErrAlreadyAssigned
	}

	rules, err := e.Rules.ActiveRulesOrdered(ctx)
	if err != nil {
		return RouteResult{}, err
	}

	result := RouteResult{}
	for _, rule := range rules {
		if rule.Priority < minPriority || rule.ID == excludeRuleID {
			continue
		}
		attempt := RuleAttempt{RuleID: rule.ID, RuleName: rule.Name, Priority: rule.Priority}

		if !rule.MatchesLead(lead) {
			attempt.Outcome = "NO_MATCH"
			result.Attempts = append(result.Attempts, attempt)
			continue
		}
		attempt.Matched = true

		candidates, err := e.Reps.ListEligible(ctx, EligibilityQuery{
			RepIDs:          rule.EligibleRepIDs,
			Specializations: rule.RequiredSpecializations,
		})
		if err != nil {
			e.Logger.Error().Err(err).Str("rule_id", rule.ID).Str("lead_id", lead.ID).Msg("candidate lookup failed")
			attempt.Outcome = "LOOKUP_ERROR"
			attempt.Detail = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			continue
		}
		attempt.Candidates = len(candidates)
		if len(candidates) == 0 {
			attempt.Outcome = "NO_ELIGIBLE_REPS"
			result.Attempts = append(result.Attempts, attempt)
			continue
		}

		selector, ok := e.Selectors[rule.RoutingType]
		if !ok {
			attempt.Outcome = "UNKNOWN_ROUTING_TYPE"
			result.Attempts = append(result.Attempts, attempt)
			continue
		}

		assignment, outcome, detail := e.tryRule(ctx, rule, lead, selector, candidates)
		attempt.Outcome = outcome
		attempt.Detail = detail
		result.Attempts = append(result.Attempts, attempt)

		if assignment != nil {
			reasoning, _ := json.Marshal(result.Attempts)
			assignment.Reasoning = reasoning
			if err := e.Assignments.Create(ctx, *assignment); err != nil {
				// Undo the reservation; another routing decision may have
				// won the single-active-assignment race at the store.
				_ = e.Reps.Release(ctx, assignment.RepID)
				return RouteResult{}, err
			}
			if err := e.Rules.IncrementLeadsRouted(ctx, rule.ID); err != nil {
				e.Logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("leads_routed increment failed")
			}
			e.Logger.Info().
				Str("lead_id", lead.ID).
				Str("rep_id", assignment.RepID).
				Str("rule_id", rule.ID).
				Float64("match_score", assignment.MatchScore).
				Msg("lead routed")
			result.Assignment = assignment
			return result, nil
		}
	}

	e.Logger.Info().Str("lead_id", lead.ID).Int("rules_tried", len(result.Attempts)).Msg("lead unrouted")
	result.Unrouted = true
	return result, nil
}

// tryRule runs one rule's strategy with a bounded reserve-retry loop: a rep
// lost to a concurrent reservation is dropped from the set and the strategy
// re-invoked, at most len(candidates) times.
func (e *Engine) tryRule(ctx context.Context, rule models.RoutingRule, lead models.Lead, selector strategy.Selector, candidates []models.SalesRep) (*models.LeadAssignment, string, string) {
	remaining := candidates
	for attempt := 0; attempt < len(candidates) && len(remaining) > 0; attempt++ {
		sel, err := selector.Select(ctx, rule, lead, remaining)
		if err != nil {
			if errors.Is(err, strategy.ErrNoCandidate) {
				return nil, "NO_CANDIDATE", selectDetail(err)
			}
			e.Logger.Error().Err(err).Str("rule_id", rule.ID).Msg("strategy failed")
			return nil, "STRATEGY_ERROR", err.Error()
		}

		if err := e.Reps.Reserve(ctx, sel.Rep.ID); err != nil {
			if errors.Is(err, ErrAtCapacity) {
				remaining = without(remaining, sel.Rep.ID)
				continue
			}
			e.Logger.Error().Err(err).Str("rep_id", sel.Rep.ID).Msg("reserve failed")
			return nil, "RESERVE_ERROR", err.Error()
		}

		if committer, ok := selector.(strategy.Committer); ok {
			if err := committer.Commit(ctx, rule, sel); err != nil {
				e.Logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("cursor commit failed")
			}
		}

		return &models.LeadAssignment{
			ID:           uuid.NewString(),
			LeadID:       lead.ID,
			RepID:        sel.Rep.ID,
			RuleID:       rule.ID,
			RulePriority: rule.Priority,
			Status:       models.StatusPending,
			Reason:       sel.Reason,
			MatchScore:   sel.Score,
			AssignedAt:   e.now(),
		}, "ASSIGNED", sel.Reason
	}
	return nil, "ALL_AT_CAPACITY", ""
}

func selectDetail(err error) string {
	if errors.Is(err, strategy.ErrNoCandidate) && err != strategy.ErrNoCandidate {
		return err.Error()
	}
	return ""
}

func without(reps []models.SalesRep, id string) []models.SalesRep {
	out := make([]models.SalesRep, 0, len(reps))
	for _, r := range reps {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
