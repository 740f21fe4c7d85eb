package scoring

import (
	"context"

	"github.com/salesrouter/backend/internal/models"
	"github.com/salesrouter/backend/internal/utils"
)

// MockScorer derives a stable pseudo-score from the lead/rep pair, so dev
// runs without a model service still produce varied, repeatable rankings.
type MockScorer struct {
	ModelVersion string
}

func (m MockScorer) Score(ctx context.Context, lead models.Lead, rep models.SalesRep) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	h := utils.HashStringToUint64(lead.ID + "|" + rep.ID)
	score := float64(h % 61) // 0..60 base

	for _, t := range rep.Territories {
		if t == lead.Region {
			score += 20
			break
		}
	}
	for _, s := range rep.Specializations {
		for _, n := range lead.Needs {
			if s == n {
				score += 20
				break
			}
		}
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
