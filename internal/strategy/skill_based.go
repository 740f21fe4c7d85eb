package strategy

import (
	"context"
	"fmt"

	"github.com/salesrouter/backend/internal/models"
)

// SkillBased scores each candidate by how much of their specialization set
// the lead's declared needs cover, and picks the best overlap. Ties break by
// higher conversion rate, then rep id.
type SkillBased struct{}

func (s *SkillBased) Select(ctx context.Context, rule models.RoutingRule, lead models.Lead, candidates []models.SalesRep) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidate
	}

	needs := map[string]bool{}
	for _, n := range lead.Needs {
		needs[n] = true
	}

	var best models.SalesRep
	bestOverlap := -1.0
	for _, c := range sortByID(candidates) {
		overlap := overlapRatio(c.Specializations, needs)
		if overlap > bestOverlap ||
			(overlap == bestOverlap && c.ConversionRate > best.ConversionRate) {
			best = c
			bestOverlap = overlap
		}
	}

	return Selection{
		Rep:    best,
		Score:  bestOverlap * 100,
		Reason: fmt.Sprintf("specialization overlap %.0f%%", bestOverlap*100),
	}, nil
}

func overlapRatio(specializations []string, needs map[string]bool) float64 {
	if len(specializations) == 0 {
		return 0
	}
	matched := 0
	for _, s := range specializations {
		if needs[s] {
			matched++
		}
	}
	return float64(matched) / float64(len(specializations))
}
