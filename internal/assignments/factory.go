package assignments

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
)

// Factory creates and refreshes assignment records on behalf of upstream
// order and reservation events. It never transitions claims; that belongs to
// the engine.
type Factory interface {
	EnsureAssignment(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind, priority int) (*models.Assignment, error)
	RefreshAssignment(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind, priority int) (*models.Assignment, error)
	CancelForOrder(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind) (*models.Assignment, error)
}

// FactoryParams configure the assignment factory.
type FactoryParams struct {
	Repo   Repository
	Engine Service
	Events EventPublisher
	Logger *logger.Logger
}

type factory struct {
	repo   Repository
	engine Service
	events EventPublisher
	logg   *logger.Logger
}

// NewFactory wires the factory dependencies.
func NewFactory(params FactoryParams) (Factory, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "assignments repository required")
	}
	if params.Engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "claim engine required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event publisher required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &factory{
		repo:   params.Repo,
		engine: params.Engine,
		events: params.Events,
		logg:   params.Logger,
	}, nil
}

// EnsureAssignment returns the active assignment for the order, inserting a
// new waiting record when none exists. Losing the insert race to a concurrent
// ensure is resolved by returning the surviving row, so retries and duplicate
// upstream events are harmless.
func (f *factory) EnsureAssignment(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind, priority int) (*models.Assignment, error) {
	if orderRef == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order kind")
	}

	existing, err := f.repo.FindActiveForOrder(ctx, orderRef, kind)
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
	}

	record := &models.Assignment{
		ID:        uuid.New(),
		OrderRef:  orderRef,
		OrderKind: kind,
		Status:    enums.AssignmentStatusWaiting,
		Priority:  priority,
	}
	if err := f.repo.Insert(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateActiveAssignment) {
			survivor, findErr := f.repo.FindActiveForOrder(ctx, orderRef, kind)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "lookup assignment after insert race")
			}
			return survivor, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert assignment")
	}

	f.broadcast(ctx, EventNewAssignment, record)
	return record, nil
}

// RefreshAssignment bumps the priority of the active assignment. A missing
// active assignment surfaces as NotFound; upstream callers treat that as a
// no-op because the order may already be served. Rejection history is kept;
// a priority change does not re-offer the assignment to staff who passed.
func (f *factory) RefreshAssignment(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind, priority int) (*models.Assignment, error) {
	if orderRef == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order kind")
	}

	current, err := f.repo.FindActiveForOrder(ctx, orderRef, kind)
	if err != nil {
		if IsNotFound(err) {
			ctx = f.logg.WithField(ctx, "order_ref", orderRef.String())
			f.logg.Info(ctx, "refresh skipped; no active assignment for order")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active assignment for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
	}

	updated, err := f.repo.CompareAndSwap(ctx, current.ID,
		Expectation{Status: current.Status, Assignee: current.AssigneeID},
		StateChange{Status: current.Status, Assignee: current.AssigneeID, Priority: &priority})
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment state changed during refresh")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh assignment")
	}

	f.broadcast(ctx, EventAssignmentUpdated, updated)
	return updated, nil
}

// CancelForOrder closes the active assignment when the upstream order is
// cancelled. Missing assignments are reported as NotFound for the same
// reason refresh does.
func (f *factory) CancelForOrder(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind) (*models.Assignment, error) {
	if orderRef == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order kind")
	}

	current, err := f.repo.FindActiveForOrder(ctx, orderRef, kind)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active assignment for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active assignment")
	}

	return f.engine.Cancel(ctx, current.ID)
}

func (f *factory) broadcast(ctx context.Context, event string, assignment *models.Assignment) {
	if err := f.events.Broadcast(ctx, event, assignment); err != nil {
		ctx = f.logg.WithFields(ctx, map[string]any{
			"event":         event,
			"assignment_id": assignment.ID.String(),
		})
		f.logg.Warn(ctx, "assignment event broadcast failed")
	}
}
