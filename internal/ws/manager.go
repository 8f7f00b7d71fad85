// Package ws streams agent events to browser clients over WebSocket.
package ws

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"netra-apex/backend/internal/agent/bus"
	"netra-apex/backend/internal/agent/domain"
	"netra-apex/backend/internal/security"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	// sendBuffer is the per-client queue. A client that cannot keep up with
	// its own event stream is disconnected rather than allowed to stall
	// everyone else's fan-out.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token auth gates the upgrade; origin is not trusted
	},
}

// TokenValidator authenticates the upgrade request.
type TokenValidator interface {
	ValidateAccess(tokenString string) (security.Identity, error)
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	orgID  string
	userID string
}

// Manager is the single WebSocket fan-out for agent events. One bus
// subscription is held per connected (org, user) pair; every event is copied
// into each matching client's send queue.
type Manager struct {
	tokens TokenValidator
	bus    bus.Bus
	log    *zap.Logger

	mu      sync.Mutex
	clients map[string]map[*client]struct{} // keyed by orgID+"/"+userID
	subs    map[string]bus.Subscription

	connections prometheus.Gauge
	dropped     prometheus.Counter
}

// NewManager wires the manager and registers its metrics on reg (nil skips
// registration, for tests).
func NewManager(tokens TokenValidator, b bus.Bus, log *zap.Logger, reg prometheus.Registerer) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		tokens:  tokens,
		bus:     b,
		log:     log,
		clients: make(map[string]map[*client]struct{}),
		subs:    make(map[string]bus.Subscription),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Currently connected WebSocket clients.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_slow_clients_dropped_total",
			Help: "Clients disconnected because their send queue filled up.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.dropped)
	}
	return m
}

// ServeHTTP upgrades GET requests on the agent-events endpoint. The access
// token comes from the Authorization header or, for browser clients that
// cannot set headers on WebSocket dials, the token query parameter.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, `{"error":"missing access token"}`, http.StatusUnauthorized)
		return
	}
	identity, err := m.tokens.ValidateAccess(token)
	if err != nil {
		http.Error(w, `{"error":"invalid access token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		orgID:  identity.OrgID,
		userID: identity.UserID,
	}
	if err := m.register(c); err != nil {
		m.log.Error("ws: bus subscribe failed", zap.String("org_id", c.orgID), zap.Error(err))
		conn.Close()
		return
	}
	m.connections.Inc()
	m.log.Info("ws: client connected",
		zap.String("org_id", c.orgID), zap.String("user_id", c.userID))

	go m.writeLoop(c)
	m.readLoop(c)
}

// register adds the client and ensures a bus subscription exists for its
// (org, user) pair.
func (m *Manager) register(c *client) error {
	key := c.orgID + "/" + c.userID
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[key]; !ok {
		sub, err := m.bus.Subscribe(c.orgID, c.userID, func(event domain.AgentEvent) {
			m.fanOut(key, event)
		})
		if err != nil {
			return err
		}
		m.subs[key] = sub
	}
	if m.clients[key] == nil {
		m.clients[key] = make(map[*client]struct{})
	}
	m.clients[key][c] = struct{}{}
	return nil
}

func (m *Manager) unregister(c *client) {
	key := c.orgID + "/" + c.userID
	m.mu.Lock()
	set, ok := m.clients[key]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			m.connections.Dec()
		}
		if len(set) == 0 {
			delete(m.clients, key)
			if sub := m.subs[key]; sub != nil {
				_ = sub.Unsubscribe()
			}
			delete(m.subs, key)
		}
	}
	m.mu.Unlock()
	c.conn.Close()
}

// fanOut copies the event into every matching client's queue. Full queues
// mark the client slow; it is dropped outside the lock.
func (m *Manager) fanOut(key string, event domain.AgentEvent) {
	data, err := marshalEvent(event)
	if err != nil {
		m.log.Error("ws: encode event", zap.Error(err))
		return
	}

	var slow []*client
	m.mu.Lock()
	for c := range m.clients[key] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	m.mu.Unlock()

	for _, c := range slow {
		m.dropped.Inc()
		m.log.Warn("ws: dropping slow client",
			zap.String("org_id", c.orgID), zap.String("user_id", c.userID))
		m.unregister(c)
	}
}

func (m *Manager) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames to service pongs and close handshakes.
// Inbound data frames are ignored; the stream is one-way.
func (m *Manager) readLoop(c *client) {
	defer m.unregister(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Debug("ws: read error", zap.Error(err))
			}
			return
		}
	}
}

// ConnectionCount reports currently connected clients.
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, set := range m.clients {
		n += len(set)
	}
	return n
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
