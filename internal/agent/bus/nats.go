package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	natspkg "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"netra-apex/backend/internal/agent/domain"
)

const subjectPrefix = "agents.events"

// NATSBus is the production Bus backed by core NATS pub/sub. Events are
// published on agents.events.<org>.<user>.
type NATSBus struct {
	nc  *natspkg.Conn
	log *zap.Logger
}

// NewNATSBus connects to the given NATS URL.
func NewNATSBus(url string, log *zap.Logger) (*NATSBus, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := natspkg.Connect(url,
		natspkg.MaxReconnects(-1),
		natspkg.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSBus{nc: nc, log: log}, nil
}

// IsConnected reports whether the underlying connection is up.
func (b *NATSBus) IsConnected() bool {
	return b.nc != nil && b.nc.Status() == natspkg.CONNECTED
}

// Publish encodes the event and publishes it, retrying transient failures.
func (b *NATSBus) Publish(ctx context.Context, event domain.AgentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := Subject(event.OrgID, event.UserID)
	return retry.Do(
		func() error { return b.nc.Publish(subject, data) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// Subscribe delivers events for the given org and user.
func (b *NATSBus) Subscribe(orgID, userID string, handler Handler) (Subscription, error) {
	sub, err := b.nc.Subscribe(Subject(orgID, userID), func(msg *natspkg.Msg) {
		var event domain.AgentEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.log.Warn("bus: dropping undecodable event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Subject(orgID, userID), err)
	}
	return sub, nil
}

// Close drains the connection so in-flight handlers finish.
func (b *NATSBus) Close() {
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}

// Subject returns the NATS subject for an (org, user) pair. Token separators
// in the IDs are replaced so callers cannot widen their subscription.
func Subject(orgID, userID string) string {
	return subjectPrefix + "." + sanitizeToken(orgID) + "." + sanitizeToken(userID)
}

func sanitizeToken(s string) string {
	if s == "*" {
		return s
	}
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return r.Replace(s)
}
