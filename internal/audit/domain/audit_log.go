// Package domain holds the audit log row written for every authenticated
// request and auth-flow event.
package domain

import "time"

// AuditLog is one recorded action. OrgID is "_system" for events with no org
// context (failed logins, token-only logouts). UserID may be empty when the
// actor is unauthenticated.
type AuditLog struct {
	ID        string
	OrgID     string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
