package strategy

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/salesrouter/backend/internal/models"
	"github.com/salesrouter/backend/internal/utils"
)

// SeedFunc derives the RNG seed for a weighted draw. Injectable so tests can
// pin the draw; the default hashes lead and rule ids, which keeps repeated
// routing of the same lead reproducible.
type SeedFunc func(rule models.RoutingRule, lead models.Lead) uint64

func DefaultSeed(rule models.RoutingRule, lead models.Lead) uint64 {
	return utils.HashStringToUint64(lead.ID + "|" + rule.ID)
}

// Weighted draws a candidate with probability proportional to the inverse of
// current load, so emptier reps absorb more leads. Candidates are ordered by
// (load asc, id asc) before the draw, which makes equal-weight ties resolve
// to the least-loaded, lowest-id rep.
type Weighted struct {
	Seed SeedFunc
}

func (w *Weighted) Select(ctx context.Context, rule models.RoutingRule, lead models.Lead, candidates []models.SalesRep) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidate
	}

	ordered := make([]models.SalesRep, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CurrentLoad == ordered[j].CurrentLoad {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CurrentLoad < ordered[j].CurrentLoad
	})

	weights := make([]float64, len(ordered))
	var total float64
	for i, c := range ordered {
		weights[i] = 1.0 / float64(1+c.CurrentLoad)
		total += weights[i]
	}

	seed := w.Seed
	if seed == nil {
		seed = DefaultSeed
	}
	rng := rand.New(rand.NewSource(int64(seed(rule, lead))))

	draw := rng.Float64() * total
	idx := len(ordered) - 1
	var cum float64
	for i, wt := range weights {
		cum += wt
		if draw < cum {
			idx = i
			break
		}
	}

	pick := ordered[idx]
	return Selection{
		Rep:    pick,
		Score:  100 * weights[idx] / total,
		Reason: fmt.Sprintf("weighted draw, load %d of %d", pick.CurrentLoad, pick.MaxCapacity),
	}, nil
}
