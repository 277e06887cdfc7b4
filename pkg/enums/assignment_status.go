package enums

import "fmt"

// AssignmentStatus tracks the lifecycle of a staff assignment.
type AssignmentStatus string

const (
	AssignmentStatusWaiting    AssignmentStatus = "waiting"
	AssignmentStatusProcessing AssignmentStatus = "processing"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
	AssignmentStatusCancelled  AssignmentStatus = "cancelled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusWaiting,
	AssignmentStatusProcessing,
	AssignmentStatusCompleted,
	AssignmentStatusCancelled,
}

// ActiveAssignmentStatuses lists the non-terminal states.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusWaiting,
	AssignmentStatusProcessing,
}

// String implements fmt.Stringer.
func (a AssignmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (a AssignmentStatus) IsTerminal() bool {
	return a == AssignmentStatusCompleted || a == AssignmentStatusCancelled
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
