package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
	"github.com/tablewise/floorstaff-backend/pkg/pagination"
)

// Broadcast event names carried on the staff channel.
const (
	EventNewAssignment     = "new_order_assignment"
	EventClaimed           = "order_claimed"
	EventReleased          = "order_released"
	EventCompleted         = "order_completed"
	EventAssignmentUpdated = "order_assignment_updated"
)

// ReasonClaimTimeout is recorded when the sweep releases an expired claim.
const ReasonClaimTimeout = "claim_timeout"

// Service is the claim engine: the only writer of assignment state
// transitions. Correctness under concurrent calls rests entirely on the
// repository's compare-and-swap; the precondition reads below exist to give
// callers precise errors, never to guard the write.
type Service interface {
	Claim(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error)
	Release(ctx context.Context, assignmentID, staffID uuid.UUID, reason string) (*models.Assignment, error)
	Complete(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error)
	Cancel(ctx context.Context, assignmentID uuid.UUID) (*models.Assignment, error)
	ListForStaff(ctx context.Context, staffID uuid.UUID, params pagination.Params) (*ListResult, error)
}

// ServiceParams configure the claim engine.
type ServiceParams struct {
	Repo         Repository
	Events       EventPublisher
	Logger       *logger.Logger
	ClaimTimeout time.Duration
	Now          func() time.Time
}

type service struct {
	repo         Repository
	events       EventPublisher
	logg         *logger.Logger
	claimTimeout time.Duration
	now          func() time.Time
}

// NewService wires the claim engine dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "assignments repository required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event publisher required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:         params.Repo,
		events:       params.Events,
		logg:         params.Logger,
		claimTimeout: params.ClaimTimeout,
		now:          now,
	}, nil
}

func (s *service) Claim(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error) {
	if staffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff id required")
	}

	current, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	// Fast-path rejections for precise errors; the swap below remains the
	// sole correctness mechanism.
	if current.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is closed")
	}
	if current.Rejections.Contains(staffID) {
		return nil, pkgerrors.New(pkgerrors.CodePreviouslyRejected, "assignment was previously rejected by caller")
	}
	if current.Status != enums.AssignmentStatusWaiting || current.AssigneeID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyClaimed, "assignment already claimed")
	}

	claimedAt := s.now()
	change := StateChange{
		Status:    enums.AssignmentStatusProcessing,
		Assignee:  &staffID,
		ClaimedAt: &claimedAt,
	}
	if s.claimTimeout > 0 {
		timeoutAt := claimedAt.Add(s.claimTimeout)
		change.TimeoutAt = &timeoutAt
	}

	updated, err := s.repo.CompareAndSwap(ctx, assignmentID, Expectation{Status: enums.AssignmentStatusWaiting}, change)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyClaimed, "assignment already claimed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim assignment")
	}

	s.broadcast(ctx, EventClaimed, updated)
	return updated, nil
}

func (s *service) Release(ctx context.Context, assignmentID, staffID uuid.UUID, reason string) (*models.Assignment, error) {
	if staffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff id required")
	}

	current, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is closed")
	}
	if current.AssigneeID == nil || *current.AssigneeID != staffID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller is not the current assignee")
	}

	rejections := current.Rejections.Append(staffID, reason, s.now())
	updated, err := s.repo.CompareAndSwap(ctx, assignmentID,
		Expectation{Status: enums.AssignmentStatusProcessing, Assignee: &staffID},
		StateChange{
			Status:         enums.AssignmentStatusWaiting,
			ClearAssignee:  true,
			ClearClaimedAt: true,
			ClearTimeoutAt: true,
			Rejections:     &rejections,
		})
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment state changed during release")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release assignment")
	}

	s.broadcast(ctx, EventReleased, updated)
	return updated, nil
}

func (s *service) Complete(ctx context.Context, assignmentID, staffID uuid.UUID) (*models.Assignment, error) {
	if staffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff id required")
	}

	current, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current.Status != enums.AssignmentStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is not being processed")
	}
	if current.AssigneeID == nil || *current.AssigneeID != staffID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller is not the current assignee")
	}

	completedAt := s.now()
	updated, err := s.repo.CompareAndSwap(ctx, assignmentID,
		Expectation{Status: enums.AssignmentStatusProcessing, Assignee: &staffID},
		StateChange{
			Status:         enums.AssignmentStatusCompleted,
			CompletedAt:    &completedAt,
			ClearTimeoutAt: true,
		})
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment state changed during completion")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete assignment")
	}

	s.broadcast(ctx, EventCompleted, updated)
	return updated, nil
}

// Cancel terminates the assignment on behalf of the upstream order. Both
// waiting and processing records can be cancelled; terminal records cannot.
func (s *service) Cancel(ctx context.Context, assignmentID uuid.UUID) (*models.Assignment, error) {
	current, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is closed")
	}

	updated, err := s.repo.CompareAndSwap(ctx, assignmentID,
		Expectation{Status: current.Status, Assignee: current.AssigneeID},
		StateChange{
			Status:         enums.AssignmentStatusCancelled,
			ClearAssignee:  true,
			ClearClaimedAt: true,
			ClearTimeoutAt: true,
		})
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment state changed during cancel")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel assignment")
	}

	s.broadcast(ctx, EventAssignmentUpdated, updated)
	return updated, nil
}

func (s *service) ListForStaff(ctx context.Context, staffID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if staffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff id required")
	}

	rows, total, err := s.repo.ListWaitingOrMineProcessing(ctx, staffID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}

	items := make([]StaffAssignmentView, 0, len(rows))
	for i := range rows {
		items = append(items, NewStaffAssignmentView(&rows[i], staffID))
	}
	return &ListResult{
		Items: items,
		Meta:  pagination.NewMeta(params, total),
	}, nil
}

func (s *service) load(ctx context.Context, assignmentID uuid.UUID) (*models.Assignment, error) {
	if assignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	current, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	return current, nil
}

func (s *service) broadcast(ctx context.Context, event string, assignment *models.Assignment) {
	if err := s.events.Broadcast(ctx, event, assignment); err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event":         event,
			"assignment_id": assignment.ID.String(),
		})
		s.logg.Warn(ctx, "assignment event broadcast failed")
	}
}
