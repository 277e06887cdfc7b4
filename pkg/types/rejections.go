package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rejection records a staff member passing on an assignment.
type Rejection struct {
	StaffID    uuid.UUID `json:"staff_id"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

// RejectionList is the append-only rejection history stored on an assignment.
// Persisted as a jsonb column; entries are never removed.
type RejectionList []Rejection

// Contains reports whether the staff member already rejected the assignment.
func (l RejectionList) Contains(staffID uuid.UUID) bool {
	for _, rejection := range l {
		if rejection.StaffID == staffID {
			return true
		}
	}
	return false
}

// Append returns a copy of the list with the new rejection added. The
// receiver is never mutated so callers can hand the result to a conditional
// update without aliasing the loaded row.
func (l RejectionList) Append(staffID uuid.UUID, reason string, at time.Time) RejectionList {
	out := make(RejectionList, 0, len(l)+1)
	out = append(out, l...)
	out = append(out, Rejection{StaffID: staffID, Reason: reason, RejectedAt: at})
	return out
}

// Value serializes the list to JSON for storage. An empty or nil list is
// stored as the empty array so the column never holds SQL NULL.
func (l RejectionList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan loads the JSON column back into the list.
func (l *RejectionList) Scan(value any) error {
	if value == nil {
		*l = RejectionList{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported rejections column type %T", value)
	}
	if len(raw) == 0 {
		*l = RejectionList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}
