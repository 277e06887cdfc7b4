package enums

import "fmt"

// StaffRole represents the permission level carried in an access token.
type StaffRole string

const (
	StaffRoleFloor   StaffRole = "floor"
	StaffRoleManager StaffRole = "manager"
	StaffRoleService StaffRole = "service"
)

var validStaffRoles = []StaffRole{
	StaffRoleFloor,
	StaffRoleManager,
	StaffRoleService,
}

// String implements fmt.Stringer.
func (s StaffRole) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StaffRole.
func (s StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
