package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/salesrouter/backend/internal/engine"
	"github.com/salesrouter/backend/internal/models"
)

func TestConcurrentReserveHonorsCapacity(t *testing.T) {
	s := New()
	const capacity = 4
	if err := s.CreateRep(context.Background(), models.SalesRep{ID: "r1", Available: true, MaxCapacity: capacity}); err != nil {
		t.Fatalf("create rep: %v", err)
	}

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Reserve(context.Background(), "r1")
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
				return
			}
			if !errors.Is(err, engine.ErrAtCapacity) {
				t.Errorf("unexpected reserve error: %v", err)
			}
		}()
	}
	wg.Wait()

	if won != capacity {
		t.Fatalf("expected %d successful reservations, got %d", capacity, won)
	}
	rep, _ := s.GetRep(context.Background(), "r1")
	if rep.CurrentLoad != capacity {
		t.Fatalf("expected load %d, got %d", capacity, rep.CurrentLoad)
	}
	if rep.TotalAssignments != capacity {
		t.Fatalf("expected total assignments %d, got %d", capacity, rep.TotalAssignments)
	}
}

func TestReleaseFloorsAtZero(t *testing.T) {
	s := New()
	if err := s.CreateRep(context.Background(), models.SalesRep{ID: "r1", Available: true, MaxCapacity: 3}); err != nil {
		t.Fatalf("create rep: %v", err)
	}

	if err := s.Release(context.Background(), "r1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	rep, _ := s.GetRep(context.Background(), "r1")
	if rep.CurrentLoad != 0 {
		t.Fatalf("expected load 0, got %d", rep.CurrentLoad)
	}

	if err := s.Release(context.Background(), "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionCompareAndSet(t *testing.T) {
	s := New()
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	if err := s.Create(context.Background(), models.LeadAssignment{ID: "a1", LeadID: "l1", Status: models.StatusPending, AssignedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transition(context.Background(), "a1", models.StatusPending, models.StatusAccepted, now.Add(time.Minute))
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
				return
			}
			if !errors.Is(err, engine.ErrInvalidTransition) {
				t.Errorf("unexpected transition error: %v", err)
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
	a, _ := s.Get(context.Background(), "a1")
	if a.Status != models.StatusAccepted || a.RespondedAt == nil {
		t.Fatalf("expected accepted with responded_at, got %+v", a)
	}
}

func TestTransitionStampsEscalatedAt(t *testing.T) {
	s := New()
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	if err := s.Create(context.Background(), models.LeadAssignment{ID: "a1", LeadID: "l1", Status: models.StatusPending, AssignedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err := s.Transition(context.Background(), "a1", models.StatusPending, models.StatusEscalated, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if a.EscalatedAt == nil || !a.EscalatedAt.Equal(now.Add(2*time.Hour)) {
		t.Fatalf("expected escalated_at stamped, got %+v", a)
	}
	if a.RespondedAt != nil {
		t.Fatalf("escalation must not set responded_at")
	}
}

func TestCreateEnforcesSingleActive(t *testing.T) {
	s := New()
	now := time.Now().UTC()
	if err := s.Create(context.Background(), models.LeadAssignment{ID: "a1", LeadID: "l1", Status: models.StatusPending, AssignedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := s.Create(context.Background(), models.LeadAssignment{ID: "a2", LeadID: "l1", Status: models.StatusPending, AssignedAt: now})
	if !errors.Is(err, engine.ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}

	// An escalated assignment is superseded history; it does not block a
	// replacement.
	if _, err := s.Transition(context.Background(), "a1", models.StatusPending, models.StatusEscalated, now); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if err := s.Create(context.Background(), models.LeadAssignment{ID: "a3", LeadID: "l1", Status: models.StatusPending, AssignedAt: now}); err != nil {
		t.Fatalf("create after escalation: %v", err)
	}
}

func TestListEligibleFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	reps := []models.SalesRep{
		{ID: "r1", Available: true, MaxCapacity: 5, Specializations: []string{"crm"}},
		{ID: "r2", Available: false, MaxCapacity: 5, Specializations: []string{"crm"}},
		{ID: "r3", Available: true, MaxCapacity: 1, CurrentLoad: 1, Specializations: []string{"crm"}},
		{ID: "r4", Available: true, MaxCapacity: 5, Specializations: []string{"analytics"}},
	}
	for _, r := range reps {
		if err := s.CreateRep(ctx, r); err != nil {
			t.Fatalf("create rep: %v", err)
		}
	}

	got, err := s.ListEligible(ctx, engine.EligibilityQuery{})
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r4" {
		t.Fatalf("expected [r1 r4], got %+v", got)
	}

	got, err = s.ListEligible(ctx, engine.EligibilityQuery{Specializations: []string{"crm"}})
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected [r1], got %+v", got)
	}

	got, err = s.ListEligible(ctx, engine.EligibilityQuery{RepIDs: []string{"r4"}})
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r4" {
		t.Fatalf("expected [r4], got %+v", got)
	}
}

func TestActiveByLeadCoversPendingAndAccepted(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Create(ctx, models.LeadAssignment{ID: "a1", LeadID: "l1", Status: models.StatusPending, AssignedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}

	active, err := s.ActiveByLead(ctx, "l1")
	if err != nil || active == nil || active.ID != "a1" {
		t.Fatalf("expected a1 active, got %+v err %v", active, err)
	}

	if _, err := s.Transition(ctx, "a1", models.StatusPending, models.StatusAccepted, now); err != nil {
		t.Fatalf("accept: %v", err)
	}
	active, _ = s.ActiveByLead(ctx, "l1")
	if active == nil {
		t.Fatalf("accepted assignment must still count as active")
	}

	if _, err := s.Transition(ctx, "a1", models.StatusAccepted, models.StatusConverted, now); err != nil {
		t.Fatalf("convert: %v", err)
	}
	active, _ = s.ActiveByLead(ctx, "l1")
	if active != nil {
		t.Fatalf("converted assignment must not be active, got %+v", active)
	}
}

func TestRotationCursorRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	cur, err := s.Cursor(ctx, "rule-1")
	if err != nil || cur != "" {
		t.Fatalf("expected empty cursor, got %q err %v", cur, err)
	}
	if err := s.SetCursor(ctx, "rule-1", "r2"); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	cur, _ = s.Cursor(ctx, "rule-1")
	if cur != "r2" {
		t.Fatalf("expected r2, got %q", cur)
	}
}
