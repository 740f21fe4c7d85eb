package strategy

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/salesrouter/backend/internal/models"
	"github.com/salesrouter/backend/internal/scoring"
)

// ErrNoCandidate signals that a strategy could not pick anyone from the
// candidate set. The engine treats it as "fall through to the next rule",
// never as a failure.
var ErrNoCandidate = errors.New("no candidate")

// Selection is a strategy's verdict: who gets the lead and why.
type Selection struct {
	Rep    models.SalesRep
	Score  float64
	Reason string
}

// Selector picks one rep from a non-empty candidate set. Implementations
// must be deterministic for a given (rule, lead, candidates) triple; the
// weighted draw achieves this through a seeded RNG.
type Selector interface {
	Select(ctx context.Context, rule models.RoutingRule, lead models.Lead, candidates []models.SalesRep) (Selection, error)
}

// Committer is implemented by selectors that keep rotation state. The engine
// calls Commit only after capacity reservation succeeds, so a rep skipped by
// an AtCapacity race is not skipped on the next rotation too.
type Committer interface {
	Commit(ctx context.Context, rule models.RoutingRule, sel Selection) error
}

// CursorStore persists per-rule rotation cursors across restarts.
type CursorStore interface {
	Cursor(ctx context.Context, ruleID string) (string, error)
	SetCursor(ctx context.Context, ruleID string, repID string) error
}

// Selectors builds the dispatch table, one selector per routing type.
func Selectors(cursors CursorStore, scorer scoring.Scorer, scoringTimeout time.Duration, seed SeedFunc) map[models.RoutingType]Selector {
	weighted := &Weighted{Seed: seed}
	return map[models.RoutingType]Selector{
		models.RoutingRoundRobin: &RoundRobin{Cursors: cursors},
		models.RoutingWeighted:   weighted,
		models.RoutingSkillBased: &SkillBased{},
		models.RoutingTerritory:  &Territory{Weighted: weighted},
		models.RoutingAI:         &AIScored{Scorer: scorer, Timeout: scoringTimeout},
	}
}

func sortByID(candidates []models.SalesRep) []models.SalesRep {
	out := make([]models.SalesRep, len(candidates))
	copy(out, candidates)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
