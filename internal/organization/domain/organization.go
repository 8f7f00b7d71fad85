package domain

import (
	"errors"
	"time"
)

// Org represents an organization/tenant.
type Org struct {
	ID        string
	Name      string
	Slug      string
	Plan      Plan
	Status    OrgStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

// Plan is the org's billing plan; the tenant policy caps concurrent agent runs by plan.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if o.Slug == "" {
		return errors.New("slug is required")
	}
	if o.Plan == "" {
		o.Plan = PlanFree
	}
	if o.Status == "" {
		o.Status = OrgStatusActive
	}
	return nil
}
