package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/tablewise/floorstaff-backend/internal/assignments"
	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	pkgerrors "github.com/tablewise/floorstaff-backend/pkg/errors"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
)

const defaultSweepBatchSize = 100

// timedOutReader lists processing assignments whose claim timeout passed.
type timedOutReader interface {
	ListProcessingTimedOut(ctx context.Context, cutoff time.Time, limit int) ([]models.Assignment, error)
}

// AssignmentTimeoutJobParams configure the stale-claim sweep.
type AssignmentTimeoutJobParams struct {
	Logger    *logger.Logger
	Reader    timedOutReader
	Engine    assignments.Service
	BatchSize int
}

// NewAssignmentTimeoutJob builds the cron job that returns expired claims to
// the pool. Releasing goes through the claim engine so the usual conditional
// update and broadcast apply; an assignment completed between the listing and
// the release simply loses the race and is skipped.
func NewAssignmentTimeoutJob(params AssignmentTimeoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("timed-out reader required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("claim engine required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &assignmentTimeoutJob{
		logg:      params.Logger,
		reader:    params.Reader,
		engine:    params.Engine,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type assignmentTimeoutJob struct {
	logg      *logger.Logger
	reader    timedOutReader
	engine    assignments.Service
	batchSize int
	now       func() time.Time
}

func (j *assignmentTimeoutJob) Name() string {
	return "assignment_timeout_sweep"
}

func (j *assignmentTimeoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	stale, err := j.reader.ListProcessingTimedOut(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("list timed out assignments: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	released := 0
	for i := range stale {
		assignment := stale[i]
		if assignment.AssigneeID == nil {
			continue
		}
		_, err := j.engine.Release(ctx, assignment.ID, *assignment.AssigneeID, assignments.ReasonClaimTimeout)
		if err != nil {
			if releaseConflict(err) {
				// Completed or released since the listing; nothing to sweep.
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", assignment.ID, err))
			continue
		}
		released++
	}

	jobCtx := j.logg.WithFields(ctx, map[string]any{
		"stale":    len(stale),
		"released": released,
	})
	j.logg.Info(jobCtx, "stale claim sweep finished")
	return errs
}

// releaseConflict reports errors that mean the assignment moved on before the
// sweep got to it. Those are expected and not job failures.
func releaseConflict(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict, pkgerrors.CodeForbidden:
		return true
	}
	return false
}
