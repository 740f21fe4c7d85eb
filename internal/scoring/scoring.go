package scoring

import (
	"context"
	"errors"

	"github.com/salesrouter/backend/internal/models"
)

// ErrTimeout marks a scoring call that exceeded its deadline. The engine
// treats it the same as "no candidate" and falls through to the next rule.
var ErrTimeout = errors.New("scoring timed out")

// Scorer rates how well a rep fits a lead, 0-100. Implementations must
// respect ctx cancellation; the engine bounds every call with a deadline.
type Scorer interface {
	Score(ctx context.Context, lead models.Lead, rep models.SalesRep) (float64, error)
}
