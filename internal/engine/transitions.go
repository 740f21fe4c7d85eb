package engine

import (
	"context"
	"errors"

	"github.com/salesrouter/backend/internal/models"
)

// Accept marks a pending assignment as accepted by the rep. Capacity stays
// reserved; the rep now owns the lead.
func (e *Engine) Accept(ctx context.Context, assignmentID string) (models.LeadAssignment, error) {
	return e.Assignments.Transition(ctx, assignmentID, models.StatusPending, models.StatusAccepted, e.now())
}

// Reject declines a pending assignment and frees the rep's capacity.
func (e *Engine) Reject(ctx context.Context, assignmentID string) (models.LeadAssignment, error) {
	a, err := e.Assignments.Transition(ctx, assignmentID, models.StatusPending, models.StatusRejected, e.now())
	if err != nil {
		return models.LeadAssignment{}, err
	}
	if err := e.Reps.Release(ctx, a.RepID); err != nil {
		e.Logger.Error().Err(err).Str("rep_id", a.RepID).Msg("release after reject failed")
	}
	return a, nil
}

// Convert closes an accepted assignment as won and frees capacity.
func (e *Engine) Convert(ctx context.Context, assignmentID string) (models.LeadAssignment, error) {
	a, err := e.Assignments.Transition(ctx, assignmentID, models.StatusAccepted, models.StatusConverted, e.now())
	if err != nil {
		return models.LeadAssignment{}, err
	}
	if err := e.Reps.Release(ctx, a.RepID); err != nil {
		e.Logger.Error().Err(err).Str("rep_id", a.RepID).Msg("release after convert failed")
	}
	return a, nil
}

// Cancel withdraws a lead's assignment, allowed from pending or accepted.
func (e *Engine) Cancel(ctx context.Context, assignmentID string) (models.LeadAssignment, error) {
	a, err := e.Assignments.Transition(ctx, assignmentID, models.StatusPending, models.StatusCancelled, e.now())
	if errors.Is(err, ErrInvalidTransition) {
		a, err = e.Assignments.Transition(ctx, assignmentID, models.StatusAccepted, models.StatusCancelled, e.now())
	}
	if err != nil {
		return models.LeadAssignment{}, err
	}
	if relErr := e.Reps.Release(ctx, a.RepID); relErr != nil {
		e.Logger.Error().Err(relErr).Str("rep_id", a.RepID).Msg("release after cancel failed")
	}
	return a, nil
}
