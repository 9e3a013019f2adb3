package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the platform-wide authorization role carried in the identity token.
type Role string

const (
	RoleUser          Role = "user"
	RolePA            Role = "pa"
	RoleFaculty       Role = "faculty"
	RoleStudentLeader Role = "student_leader"
	RoleAdmin         Role = "admin"
)

var knownRoles = map[Role]struct{}{
	RoleUser:          {},
	RolePA:            {},
	RoleFaculty:       {},
	RoleStudentLeader: {},
	RoleAdmin:         {},
}

// ParseRole returns the Role for s. Unknown values are rejected.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if _, ok := knownRoles[r]; !ok {
		return "", false
	}
	return r, true
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// CanActOnBehalf reports whether the role may reserve slots for other participants.
func (r Role) CanActOnBehalf() bool {
	switch r {
	case RolePA, RoleFaculty, RoleStudentLeader, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// User is a participant profile known to the platform.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
