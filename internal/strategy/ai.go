package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salesrouter/backend/internal/models"
	"github.com/salesrouter/backend/internal/scoring"
)

// AIScored asks an external model for a 0-100 score per candidate and picks
// the maximum. The whole selection shares one deadline; a timeout or scoring
// failure degrades to ErrNoCandidate so the engine falls through instead of
// blocking the lead.
type AIScored struct {
	Scorer  scoring.Scorer
	Timeout time.Duration
}

func (a *AIScored) Select(ctx context.Context, rule models.RoutingRule, lead models.Lead, candidates []models.SalesRep) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidate
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var best models.SalesRep
	bestScore := -1.0
	for _, c := range sortByID(candidates) {
		score, err := a.Scorer.Score(ctx, lead, c)
		if err != nil {
			if errors.Is(err, scoring.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				return Selection{}, errors.Join(ErrNoCandidate, scoring.ErrTimeout)
			}
			return Selection{}, errors.Join(ErrNoCandidate, err)
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}

	return Selection{
		Rep:    best,
		Score:  bestScore,
		Reason: fmt.Sprintf("model score %.1f", bestScore),
	}, nil
}
