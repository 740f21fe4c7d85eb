package strategy

import (
	"context"
	"fmt"

	"github.com/salesrouter/backend/internal/models"
)

// RoundRobin rotates through candidates in rep-id order. The cursor holds the
// last rep assigned under the rule; selection picks the next id after it,
// wrapping around. The cursor moves only via Commit.
type RoundRobin struct {
	Cursors CursorStore
}

func (r *RoundRobin) Select(ctx context.Context, rule models.RoutingRule, lead models.Lead, candidates []models.SalesRep) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidate
	}

	ordered := sortByID(candidates)

	last, err := r.Cursors.Cursor(ctx, rule.ID)
	if err != nil {
		return Selection{}, err
	}

	pick := ordered[0]
	for _, c := range ordered {
		if c.ID > last {
			pick = c
			break
		}
	}

	return Selection{
		Rep:    pick,
		Score:  50,
		Reason: fmt.Sprintf("round robin rotation after %q", last),
	}, nil
}

func (r *RoundRobin) Commit(ctx context.Context, rule models.RoutingRule, sel Selection) error {
	return r.Cursors.SetCursor(ctx, rule.ID, sel.Rep.ID)
}
