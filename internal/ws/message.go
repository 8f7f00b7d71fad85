package ws

import (
	"encoding/json"

	"netra-apex/backend/internal/agent/domain"
)

// Envelope is the wire shape of every frame pushed to clients.
type Envelope struct {
	Type    string            `json:"type"`
	Payload domain.AgentEvent `json:"payload"`
}

func marshalEvent(event domain.AgentEvent) ([]byte, error) {
	return json.Marshal(Envelope{Type: "agent_event", Payload: event})
}
