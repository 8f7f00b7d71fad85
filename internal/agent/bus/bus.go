// Package bus carries agent events between the run service and live
// subscribers (the WebSocket stream and any other consumer).
package bus

import (
	"context"

	"netra-apex/backend/internal/agent/domain"
)

// Handler receives one decoded agent event. Handlers must not block; slow
// consumers should buffer on their side.
type Handler func(event domain.AgentEvent)

// Subscription is an active event subscription.
type Subscription interface {
	Unsubscribe() error
}

// Bus publishes and delivers agent events scoped to an (org, user) pair.
type Bus interface {
	Publish(ctx context.Context, event domain.AgentEvent) error
	// Subscribe delivers events for the given org and user. userID may be
	// "*" to receive all events for the org.
	Subscribe(orgID, userID string, handler Handler) (Subscription, error)
	Close()
}
