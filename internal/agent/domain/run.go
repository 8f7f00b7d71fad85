package domain

import (
	"errors"
	"time"
)

// RunStatus is the lifecycle state of an agent run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one agent execution owned by a user within an org.
type Run struct {
	ID         string
	OrgID      string
	UserID     string
	AgentID    string
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Validate checks required fields before persistence.
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if r.OrgID == "" {
		return errors.New("run org id is required")
	}
	if r.UserID == "" {
		return errors.New("run user id is required")
	}
	if r.AgentID == "" {
		return errors.New("run agent id is required")
	}
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	return nil
}

// Finished reports whether the run has reached a terminal state.
func (r *Run) Finished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
