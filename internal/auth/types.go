package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer may read status and history.
	RoleViewer Role = "viewer"

	// RoleOperator may additionally abort a running cycle, which moves
	// real hardware.
	RoleOperator Role = "operator"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Auth errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrWeakSecret   = errors.New("signing secret too short")
)
