package engine

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/salesrouter/backend/internal/models"
)

// SLAPolicy maps a lead priority onto its response-time budget.
type SLAPolicy func(leadPriority string) time.Duration

// Monitor sweeps pending assignments against their SLA and re-routes or
// expires the ones left unanswered. Sweeps may overlap; the pending ->
// escalated CAS guarantees each assignment escalates at most once.
type Monitor struct {
	Engine *Engine
	SLA    SLAPolicy
	Logger zerolog.Logger

	cron *cron.Cron
}

// SweepSummary reports what one sweep did.
type SweepSummary struct {
	Scanned   int `json:"scanned"`
	Escalated int `json:"escalated"`
	Rerouted  int `json:"rerouted"`
	Expired   int `json:"expired"`
}

// Sweep processes every overdue pending assignment independently; one bad
// assignment never aborts the rest.
func (m *Monitor) Sweep(ctx context.Context) (SweepSummary, error) {
	pending, err := m.Engine.Assignments.List(ctx, AssignmentFilter{Status: models.StatusPending})
	if err != nil {
		return SweepSummary{}, err
	}

	summary := SweepSummary{Scanned: len(pending)}
	now := m.Engine.now()
	for _, a := range pending {
		lead, err := m.Engine.Leads.GetLead(ctx, a.LeadID)
		if err != nil {
			m.Logger.Error().Err(err).Str("lead_id", a.LeadID).Msg("lead lookup failed during sweep")
			continue
		}
		if now.Sub(a.AssignedAt) < m.SLA(lead.Priority) {
			continue
		}

		if err := m.escalate(ctx, a, lead); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// Lost the race to a rep action or a concurrent sweep.
				continue
			}
			m.Logger.Error().Err(err).Str("assignment_id", a.ID).Msg("escalation failed")
			continue
		}
		summary.Escalated++

		result, err := m.Engine.RouteFrom(ctx, lead, a.RulePriority, a.RuleID)
		if err != nil {
			m.Logger.Error().Err(err).Str("lead_id", lead.ID).Msg("re-route after escalation failed")
			continue
		}
		if result.Unrouted {
			if _, err := m.Engine.Assignments.Transition(ctx, a.ID, models.StatusEscalated, models.StatusExpired, m.Engine.now()); err != nil {
				m.Logger.Error().Err(err).Str("assignment_id", a.ID).Msg("expire failed")
				continue
			}
			summary.Expired++
		} else {
			summary.Rerouted++
		}
	}
	return summary, nil
}

func (m *Monitor) escalate(ctx context.Context, a models.LeadAssignment, lead models.Lead) error {
	if _, err := m.Engine.Assignments.Transition(ctx, a.ID, models.StatusPending, models.StatusEscalated, m.Engine.now()); err != nil {
		return err
	}
	if err := m.Engine.Reps.Release(ctx, a.RepID); err != nil {
		m.Logger.Error().Err(err).Str("rep_id", a.RepID).Msg("release after escalation failed")
	}
	m.Logger.Info().
		Str("assignment_id", a.ID).
		Str("lead_id", lead.ID).
		Str("rep_id", a.RepID).
		Msg("assignment escalated")
	return nil
}

// Start schedules periodic sweeps on the given cron spec.
func (m *Monitor) Start(schedule string) error {
	m.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := m.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		summary, err := m.Sweep(ctx)
		if err != nil {
			m.Logger.Error().Err(err).Msg("escalation sweep failed")
			return
		}
		if summary.Escalated > 0 {
			m.Logger.Info().
				Int("scanned", summary.Scanned).
				Int("escalated", summary.Escalated).
				Int("rerouted", summary.Rerouted).
				Int("expired", summary.Expired).
				Msg("escalation sweep")
		}
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts scheduled sweeps, waiting for a running sweep to finish.
func (m *Monitor) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}
