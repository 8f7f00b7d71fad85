// Package domain defines org membership: which users belong to which
// organizations, and with what role.
package domain

import "time"

// Membership ties a user to an organization. A user's first membership by
// created_at is their default org at login.
type Membership struct {
	ID        string
	UserID    string
	OrgID     string
	Role      Role
	CreatedAt time.Time
}

// Role is the member's role within the org.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)
