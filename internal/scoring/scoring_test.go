package scoring

import (
	"context"
	"testing"

	"github.com/salesrouter/backend/internal/models"
)

func TestMockScorerDeterministic(t *testing.T) {
	m := MockScorer{ModelVersion: "dev"}
	lead := models.Lead{ID: "l1", Region: "NA", Needs: []string{"crm"}}
	rep := models.SalesRep{ID: "r1", Territories: []string{"NA"}, Specializations: []string{"crm"}}

	a, err := m.Score(context.Background(), lead, rep)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	b, err := m.Score(context.Background(), lead, rep)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if a != b {
		t.Fatalf("same pair must score identically: %v vs %v", a, b)
	}
	if a < 0 || a > 100 {
		t.Fatalf("score out of range: %v", a)
	}
}

func TestMockScorerRewardsFit(t *testing.T) {
	m := MockScorer{}
	lead := models.Lead{ID: "l1", Region: "NA", Needs: []string{"crm"}}
	fit := models.SalesRep{ID: "r1", Territories: []string{"NA"}, Specializations: []string{"crm"}}
	misfit := models.SalesRep{ID: "r1", Territories: []string{"EU"}, Specializations: []string{"analytics"}}

	// Same rep id, so the hash base is identical; the bonuses must separate
	// the two.
	a, _ := m.Score(context.Background(), lead, fit)
	b, _ := m.Score(context.Background(), lead, misfit)
	if a <= b {
		t.Fatalf("expected territory and specialization bonuses, fit %v misfit %v", a, b)
	}
}

func TestMockScorerHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (MockScorer{}).Score(ctx, models.Lead{ID: "l1"}, models.SalesRep{ID: "r1"}); err == nil {
		t.Fatalf("expected context error")
	}
}
