package assignments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	"github.com/tablewise/floorstaff-backend/pkg/pagination"
	"github.com/tablewise/floorstaff-backend/pkg/types"
)

func setupAssignmentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  order_ref TEXT NOT NULL,
  order_kind TEXT NOT NULL,
  assignee_id TEXT,
  status TEXT NOT NULL DEFAULT 'waiting',
  rejections TEXT NOT NULL DEFAULT '[]',
  priority INTEGER NOT NULL DEFAULT 0,
  claimed_at DATETIME,
  completed_at DATETIME,
  timeout_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	require.NoError(t, conn.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS assignments_active_order_uniq
  ON assignments (order_ref, order_kind)
  WHERE status IN ('waiting', 'processing');`).Error)

	t.Cleanup(func() {
		conn.Exec("DELETE FROM assignments")
	})
	return conn
}

func seedAssignment(t *testing.T, conn *gorm.DB, mutate func(*models.Assignment)) *models.Assignment {
	t.Helper()
	assignment := &models.Assignment{
		ID:         uuid.New(),
		OrderRef:   uuid.New(),
		OrderKind:  enums.OrderKindWalkInOrder,
		Status:     enums.AssignmentStatusWaiting,
		Rejections: types.RejectionList{},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if mutate != nil {
		mutate(assignment)
	}
	require.NoError(t, conn.Create(assignment).Error)
	return assignment
}

func TestRepository_InsertAndFindActive(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	assignment := &models.Assignment{
		OrderRef:  uuid.New(),
		OrderKind: enums.OrderKindReservation,
		Status:    enums.AssignmentStatusWaiting,
		Priority:  3,
	}
	require.NoError(t, repo.Insert(ctx, assignment))
	require.NotEqual(t, uuid.Nil, assignment.ID)

	found, err := repo.FindActiveForOrder(ctx, assignment.OrderRef, enums.OrderKindReservation)
	require.NoError(t, err)
	assert.Equal(t, assignment.ID, found.ID)
	assert.Equal(t, 3, found.Priority)
	assert.Empty(t, found.Rejections)
}

func TestRepository_Insert_DuplicateActiveOrder(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	first := seedAssignment(t, conn, nil)

	dup := &models.Assignment{
		OrderRef:  first.OrderRef,
		OrderKind: first.OrderKind,
		Status:    enums.AssignmentStatusWaiting,
	}
	err := repo.Insert(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicateActiveAssignment)
}

func TestRepository_Insert_TerminalRowDoesNotBlock(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	done := seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusCompleted
	})

	fresh := &models.Assignment{
		OrderRef:  done.OrderRef,
		OrderKind: done.OrderKind,
		Status:    enums.AssignmentStatusWaiting,
	}
	require.NoError(t, repo.Insert(ctx, fresh))
}

func TestRepository_CompareAndSwap_ClaimsWaitingRow(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	assignment := seedAssignment(t, conn, nil)
	staffID := uuid.New()
	claimedAt := time.Now().UTC().Truncate(time.Second)

	updated, err := repo.CompareAndSwap(ctx, assignment.ID,
		Expectation{Status: enums.AssignmentStatusWaiting},
		StateChange{
			Status:    enums.AssignmentStatusProcessing,
			Assignee:  &staffID,
			ClaimedAt: &claimedAt,
		})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusProcessing, updated.Status)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, staffID, *updated.AssigneeID)
	require.NotNil(t, updated.ClaimedAt)
}

func TestRepository_CompareAndSwap_StaleExpectation(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	owner := uuid.New()
	assignment := seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusProcessing
		a.AssigneeID = &owner
	})

	other := uuid.New()
	_, err := repo.CompareAndSwap(ctx, assignment.ID,
		Expectation{Status: enums.AssignmentStatusWaiting},
		StateChange{Status: enums.AssignmentStatusProcessing, Assignee: &other})
	require.ErrorIs(t, err, ErrNoMatch)

	_, err = repo.CompareAndSwap(ctx, assignment.ID,
		Expectation{Status: enums.AssignmentStatusProcessing, Assignee: &other},
		StateChange{Status: enums.AssignmentStatusCompleted})
	require.ErrorIs(t, err, ErrNoMatch)

	var stored models.Assignment
	require.NoError(t, conn.Where("id = ?", assignment.ID).First(&stored).Error)
	assert.Equal(t, enums.AssignmentStatusProcessing, stored.Status)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, owner, *stored.AssigneeID)
}

func TestRepository_CompareAndSwap_ReleasePersistsRejections(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	owner := uuid.New()
	claimedAt := time.Now().UTC()
	assignment := seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusProcessing
		a.AssigneeID = &owner
		a.ClaimedAt = &claimedAt
	})

	rejections := types.RejectionList{}.Append(owner, "too far", time.Now().UTC())
	updated, err := repo.CompareAndSwap(ctx, assignment.ID,
		Expectation{Status: enums.AssignmentStatusProcessing, Assignee: &owner},
		StateChange{
			Status:         enums.AssignmentStatusWaiting,
			ClearAssignee:  true,
			ClearClaimedAt: true,
			Rejections:     &rejections,
		})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusWaiting, updated.Status)
	assert.Nil(t, updated.AssigneeID)
	assert.Nil(t, updated.ClaimedAt)
	require.Len(t, updated.Rejections, 1)
	assert.Equal(t, owner, updated.Rejections[0].StaffID)
	assert.Equal(t, "too far", updated.Rejections[0].Reason)
}

func TestRepository_FindByID_NotFound(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepository_ListWaitingOrMineProcessing(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	me := uuid.New()
	other := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	lowPriority := seedAssignment(t, conn, func(a *models.Assignment) {
		a.Priority = 1
		a.CreatedAt = base
	})
	highPriority := seedAssignment(t, conn, func(a *models.Assignment) {
		a.Priority = 5
		a.CreatedAt = base.Add(time.Minute)
	})
	mine := seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusProcessing
		a.AssigneeID = &me
		a.Priority = 2
		a.CreatedAt = base.Add(2 * time.Minute)
	})
	seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusProcessing
		a.AssigneeID = &other
	})
	seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusCompleted
	})

	rows, total, err := repo.ListWaitingOrMineProcessing(ctx, me, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, rows, 3)
	assert.Equal(t, highPriority.ID, rows[0].ID)
	assert.Equal(t, mine.ID, rows[1].ID)
	assert.Equal(t, lowPriority.ID, rows[2].ID)

	paged, total, err := repo.ListWaitingOrMineProcessing(ctx, me, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, paged, 1)
	assert.Equal(t, lowPriority.ID, paged[0].ID)
}

func TestRepository_ListProcessingTimedOut(t *testing.T) {
	conn := setupAssignmentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	owner := uuid.New()
	now := time.Now().UTC()
	expired := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	stale := seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusProcessing
		a.AssigneeID = &owner
		a.TimeoutAt = &expired
	})
	seedAssignment(t, conn, func(a *models.Assignment) {
		a.Status = enums.AssignmentStatusProcessing
		a.AssigneeID = &owner
		a.TimeoutAt = &future
	})
	seedAssignment(t, conn, nil)

	rows, err := repo.ListProcessingTimedOut(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}
