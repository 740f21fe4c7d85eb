package metrics

import (
	"context"
	"time"

	"github.com/salesrouter/backend/internal/engine"
	"github.com/salesrouter/backend/internal/models"
)

// AssignmentSource is the read-only slice of the assignment log the
// aggregator needs.
type AssignmentSource interface {
	List(ctx context.Context, f engine.AssignmentFilter) ([]models.LeadAssignment, error)
}

// Aggregator derives routing metrics from assignment history. Read side
// only; never mutates anything.
type Aggregator struct {
	Assignments AssignmentSource
}

// Query scopes a metrics computation. Zero fields widen the scope.
type Query struct {
	RepID  string
	RuleID string
	Since  time.Time
	Until  time.Time
}

func (g *Aggregator) Compute(ctx context.Context, q Query) (models.RoutingMetrics, error) {
	assignments, err := g.Assignments.List(ctx, engine.AssignmentFilter{
		RepID:  q.RepID,
		RuleID: q.RuleID,
		Since:  q.Since,
		Until:  q.Until,
	})
	if err != nil {
		return models.RoutingMetrics{}, err
	}

	var m models.RoutingMetrics
	var responseTotal time.Duration
	var responded int
	for _, a := range assignments {
		m.TotalAssignments++
		switch a.Status {
		case models.StatusAccepted:
			m.Accepted++
		case models.StatusConverted:
			m.Converted++
		case models.StatusRejected:
			m.Rejected++
		case models.StatusEscalated:
			m.Escalated++
		case models.StatusExpired:
			m.Expired++
		}
		if a.RespondedAt != nil {
			responseTotal += a.ResponseTime()
			responded++
		}
	}

	if m.TotalAssignments > 0 {
		m.AcceptanceRate = float64(m.Accepted+m.Converted) / float64(m.TotalAssignments)
		m.ConversionRate = float64(m.Converted) / float64(m.TotalAssignments)
	}
	if responded > 0 {
		m.AvgResponseTime = responseTotal / time.Duration(responded)
	}
	return m, nil
}

// PerRep computes a metrics breakdown for each given rep id.
func (g *Aggregator) PerRep(ctx context.Context, repIDs []string, q Query) (map[string]models.RoutingMetrics, error) {
	out := make(map[string]models.RoutingMetrics, len(repIDs))
	for _, id := range repIDs {
		scoped := q
		scoped.RepID = id
		m, err := g.Compute(ctx, scoped)
		if err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, nil
}

// PerRule computes a metrics breakdown for each given rule id.
func (g *Aggregator) PerRule(ctx context.Context, ruleIDs []string, q Query) (map[string]models.RoutingMetrics, error) {
	out := make(map[string]models.RoutingMetrics, len(ruleIDs))
	for _, id := range ruleIDs {
		scoped := q
		scoped.RuleID = id
		m, err := g.Compute(ctx, scoped)
		if err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, nil
}
