package domain

import "time"

// Policy represents an org-level agent access policy written in Rego.
type Policy struct {
	ID        string
	OrgID     string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
