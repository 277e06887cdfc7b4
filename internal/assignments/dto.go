package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/pkg/db/models"
	"github.com/tablewise/floorstaff-backend/pkg/enums"
	"github.com/tablewise/floorstaff-backend/pkg/pagination"
)

// StaffAssignmentView is the per-viewer projection of an assignment returned
// by the staff listing. CanClaim and IsMine depend on who is asking.
type StaffAssignmentView struct {
	ID          uuid.UUID              `json:"id"`
	OrderRef    uuid.UUID              `json:"order_ref"`
	OrderKind   enums.OrderKind        `json:"order_kind"`
	Status      enums.AssignmentStatus `json:"status"`
	AssigneeID  *uuid.UUID             `json:"assignee_id,omitempty"`
	Priority    int                    `json:"priority"`
	CanClaim    bool                   `json:"can_claim"`
	IsMine      bool                   `json:"is_mine"`
	ClaimedAt   *time.Time             `json:"claimed_at,omitempty"`
	TimeoutAt   *time.Time             `json:"timeout_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewStaffAssignmentView projects an assignment for the given viewer.
func NewStaffAssignmentView(a *models.Assignment, viewer uuid.UUID) StaffAssignmentView {
	view := StaffAssignmentView{
		ID:         a.ID,
		OrderRef:   a.OrderRef,
		OrderKind:  a.OrderKind,
		Status:     a.Status,
		AssigneeID: a.AssigneeID,
		Priority:   a.Priority,
		ClaimedAt:  a.ClaimedAt,
		TimeoutAt:  a.TimeoutAt,
		CreatedAt:  a.CreatedAt,
	}
	view.IsMine = a.AssigneeID != nil && *a.AssigneeID == viewer
	view.CanClaim = a.Status == enums.AssignmentStatusWaiting &&
		a.AssigneeID == nil &&
		!a.Rejections.Contains(viewer)
	return view
}

// ListResult pairs the staff listing with pagination metadata.
type ListResult struct {
	Items []StaffAssignmentView `json:"items"`
	Meta  pagination.Meta       `json:"meta"`
}
