// Package domain holds the agent coordination types shared by the bus,
// the run service, and the event stream.
package domain

import (
	"encoding/json"
	"time"

	"github.com/segmentio/ksuid"
)

// EventType classifies agent lifecycle and output events.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventRunProgress  EventType = "run_progress"
	EventRunOutput    EventType = "run_output"
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"
)

// AgentEvent is one event on the agent bus. IDs are KSUIDs so events sort
// chronologically without coordination; Seq orders events within a run.
type AgentEvent struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"org_id"`
	UserID    string          `json:"user_id"`
	RunID     string          `json:"run_id"`
	AgentID   string          `json:"agent_id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Seq       uint64          `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEvent builds an event with a fresh KSUID and timestamp.
func NewEvent(orgID, userID, runID, agentID string, typ EventType, payload json.RawMessage) AgentEvent {
	return AgentEvent{
		ID:        ksuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		RunID:     runID,
		AgentID:   agentID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
