package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tablewise/floorstaff-backend/pkg/enums"
	"github.com/tablewise/floorstaff-backend/pkg/types"
)

// Assignment maps an order or reservation to at most one active staff member.
//
// Invariants enforced by the claim engine through conditional updates:
// assignee set implies status processing, waiting implies no assignee, and a
// partial unique index keeps (order_ref, order_kind) unique among rows that
// are not completed/cancelled.
type Assignment struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderRef    uuid.UUID              `gorm:"column:order_ref;type:uuid;not null" json:"order_ref"`
	OrderKind   enums.OrderKind        `gorm:"column:order_kind;type:text;not null" json:"order_kind"`
	AssigneeID  *uuid.UUID             `gorm:"column:assignee_id;type:uuid" json:"assignee_id"`
	Status      enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'waiting'" json:"status"`
	Rejections  types.RejectionList    `gorm:"column:rejections;type:jsonb;not null;default:'[]'" json:"rejections"`
	Priority    int                    `gorm:"column:priority;not null;default:0" json:"priority"`
	ClaimedAt   *time.Time             `gorm:"column:claimed_at" json:"claimed_at"`
	CompletedAt *time.Time             `gorm:"column:completed_at" json:"completed_at"`
	TimeoutAt   *time.Time             `gorm:"column:timeout_at" json:"timeout_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name for GORM.
func (Assignment) TableName() string {
	return "assignments"
}

// IsActive reports whether the assignment still occupies the per-order slot.
func (a *Assignment) IsActive() bool {
	return !a.Status.IsTerminal()
}
