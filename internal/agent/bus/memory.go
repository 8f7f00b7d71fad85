package bus

import (
	"context"
	"sync"

	"netra-apex/backend/internal/agent/domain"
)

// MemoryBus is an in-process Bus. It backs single-node deployments where no
// NATS URL is configured, and tests.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*memorySub
	closed bool
}

type memorySub struct {
	id      int
	orgID   string
	userID  string
	handler Handler
	bus     *MemoryBus
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, event domain.AgentEvent) error {
	b.mu.RLock()
	var targets []Handler
	for _, s := range b.subs {
		if s.orgID == event.OrgID && (s.userID == "*" || s.userID == event.UserID) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()
	for _, h := range targets {
		h(event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(orgID, userID string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &memorySub{id: b.nextID, orgID: orgID, userID: userID, handler: handler, bus: b}
	b.subs[s.id] = s
	return s, nil
}

func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[int]*memorySub)
	b.closed = true
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	return nil
}
