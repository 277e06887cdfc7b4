package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewise/floorstaff-backend/pkg/db"
	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	"github.com/tablewise/floorstaff-backend/pkg/pagination"
)

const activeOrderConstraint = "assignments_active_order_uniq"

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an assignments repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repositoryImpl) FindActiveForOrder(ctx context.Context, orderRef uuid.UUID, kind enums.OrderKind) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("order_ref = ? AND order_kind = ? AND status IN ?", orderRef, kind, enums.ActiveAssignmentStatuses).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repositoryImpl) Insert(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		if db.IsUniqueViolation(err, activeOrderConstraint) {
			return ErrDuplicateActiveAssignment
		}
		return err
	}
	return nil
}

// CompareAndSwap applies the state change only when the stored row still
// carries the expected status and assignee. The match condition lives in the
// UPDATE's WHERE clause, so two concurrent swaps against the same row can
// never both succeed; the loser sees ErrNoMatch.
func (r *repositoryImpl) CompareAndSwap(ctx context.Context, id uuid.UUID, expect Expectation, change StateChange) (*models.Assignment, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, expect.Status)
	if expect.Assignee != nil {
		query = query.Where("assignee_id = ?", *expect.Assignee)
	} else {
		query = query.Where("assignee_id IS NULL")
	}

	result := query.Updates(buildUpdates(change))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNoMatch
	}
	return r.FindByID(ctx, id)
}

func buildUpdates(change StateChange) map[string]any {
	updates := map[string]any{
		"status":     change.Status,
		"updated_at": time.Now().UTC(),
	}
	switch {
	case change.Assignee != nil:
		updates["assignee_id"] = *change.Assignee
	case change.ClearAssignee:
		updates["assignee_id"] = nil
	}
	switch {
	case change.ClaimedAt != nil:
		updates["claimed_at"] = *change.ClaimedAt
	case change.ClearClaimedAt:
		updates["claimed_at"] = nil
	}
	switch {
	case change.TimeoutAt != nil:
		updates["timeout_at"] = *change.TimeoutAt
	case change.ClearTimeoutAt:
		updates["timeout_at"] = nil
	}
	if change.CompletedAt != nil {
		updates["completed_at"] = *change.CompletedAt
	}
	if change.Rejections != nil {
		updates["rejections"] = *change.Rejections
	}
	if change.Priority != nil {
		updates["priority"] = *change.Priority
	}
	return updates
}

func (r *repositoryImpl) ListWaitingOrMineProcessing(ctx context.Context, staffID uuid.UUID, params pagination.Params) ([]models.Assignment, int64, error) {
	normalized := params.Normalize()

	filtered := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.Assignment{}).
			Where("status = ? OR (status = ? AND assignee_id = ?)",
				enums.AssignmentStatusWaiting, enums.AssignmentStatusProcessing, staffID)
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Assignment
	err := filtered().
		Order("priority DESC, created_at ASC").
		Offset(normalized.Offset()).
		Limit(normalized.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repositoryImpl) ListProcessingTimedOut(ctx context.Context, cutoff time.Time, limit int) ([]models.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Where("status = ? AND timeout_at IS NOT NULL AND timeout_at < ?", enums.AssignmentStatusProcessing, cutoff).
		Order("timeout_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// IsNotFound reports whether the error is the store's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
