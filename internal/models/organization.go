package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a community partner that offers events.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrganizationUserRole is the role of a user in an organization.
const (
	OrgRoleOwner        = "owner"
	OrgRoleEventManager = "event_manager"
	OrgRoleMember       = "member"
)

// CanManageEvents reports whether an organization role may create and delete the organization's events.
func CanManageEvents(orgRole string) bool {
	return orgRole == OrgRoleOwner || orgRole == OrgRoleEventManager
}
