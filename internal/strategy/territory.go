package strategy

import (
	"context"

	"github.com/salesrouter/backend/internal/models"
)

// Territory restricts candidates to reps covering the lead's region, then
// hands the restricted set to the weighted draw. A region nobody covers
// yields no candidate.
type Territory struct {
	Weighted *Weighted
}

func (t *Territory) Select(ctx context.Context, rule models.RoutingRule, lead models.Lead, candidates []models.SalesRep) (Selection, error) {
	var inRegion []models.SalesRep
	for _, c := range candidates {
		for _, terr := range c.Territories {
			if terr == lead.Region {
				inRegion = append(inRegion, c)
				break
			}
		}
	}
	if len(inRegion) == 0 {
		return Selection{}, ErrNoCandidate
	}

	sel, err := t.Weighted.Select(ctx, rule, lead, inRegion)
	if err != nil {
		return Selection{}, err
	}
	sel.Reason = "territory match " + lead.Region + ", " + sel.Reason
	return sel, nil
}
