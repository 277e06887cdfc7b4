package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	"github.com/tablewise/floorstaff-backend/pkg/pagination"
	"github.com/tablewise/floorstaff-backend/pkg/types"
)

// ErrNoMatch is the compare-and-swap sentinel: the stored row no longer
// matches the expected status/assignee, so the conditional update wrote
// nothing. Losing a claim race surfaces as this error.
var ErrNoMatch = errors.New("assignment state did not match expectation")

// ErrDuplicateActiveAssignment reports an insert that collided with an
// existing non-terminal assignment for the same order.
var ErrDuplicateActiveAssignment = errors.New("active assignment already exists for order")

// Expectation is the prior state a conditional update requires. Assignee nil
// means the stored assignee must be NULL.
type Expectation struct {
	Status   enums.AssignmentStatus
	Assignee *uuid.UUID
}

// StateChange describes the transition applied when the expectation holds.
// Pointer fields overwrite the stored value, including explicit clears via
// the Clear* flags; Rejections replaces the history only when non-nil.
type StateChange struct {
	Status         enums.AssignmentStatus
	Assignee       *uuid.UUID
	ClaimedAt      *time.Time
	CompletedAt    *time.Time
	TimeoutAt      *time.Time
	ClearAssignee  bool
	ClearClaimedAt bool
	ClearTimeoutAt bool
	Rejections     *types.RejectionList
	Priority       *int
}

// Repository exposes persistence for assignments. CompareAndSwap is the only
// mutation path for status/assignee; nothing else may write those columns.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindActiveForOrder(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind) (*models.Assignment, error)
	Insert(ctx context.Context, assignment *models.Assignment) error
	CompareAndSwap(ctx context.Context, id uuid.UUID, expect Expectation, change StateChange) (*models.Assignment, error)
	ListWaitingOrMineProcessing(ctx context.Context, staffID uuid.UUID, params pagination.Params) ([]models.Assignment, int64, error)
	ListProcessingTimedOut(ctx context.Context, cutoff time.Time, limit int) ([]models.Assignment, error)
}

// EventPublisher is the broadcast surface the engine and factory notify.
// Delivery is best-effort; a publish failure never rolls back a transition.
type EventPublisher interface {
	Broadcast(ctx context.Context, event string, assignment *models.Assignment) error
}
