// Package gateway manages long-lived WebSocket connections: it sends the
// session-list snapshot on connect, handles subscribe/unsubscribe commands,
// and bridges bus topics onto each connection with a no-gap, no-duplicate
// handoff between history and live events.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/models"
)

// EventStore is the read surface the gateway needs. Implemented by
// store.Store.
type EventStore interface {
	ListSessions(ctx context.Context) ([]*models.Session, error)
	GetSessionEvents(ctx context.Context, sessionID string) ([]*models.Event, error)
}

// ConnectionManager manages WebSocket connections and their bus
// subscriptions. One instance per process.
type ConnectionManager struct {
	store EventStore
	bus   *events.Bus

	// Active connections: connection_id → *Connection
	connections map[string]*Connection
	mu          sync.RWMutex

	// Write timeout for WebSocket sends
	writeTimeout time.Duration
}

// Connection represents a single WebSocket client.
//
// subscriptions is accessed without a lock: subscribe, unsubscribe and the
// deferred cleanup all run on the goroutine that owns this connection
// (HandleConnection's read loop). Forwarding goroutines never touch the map.
type Connection struct {
	ID   string
	Conn *websocket.Conn

	subscriptions map[string]*events.Subscription // session id → bus subscription
	globalSub     *events.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectionManager creates a ConnectionManager.
func NewConnectionManager(store EventStore, bus *events.Bus, writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		store:        store,
		bus:          bus,
		connections:  make(map[string]*Connection),
		writeTimeout: writeTimeout,
	}
}

// HandleConnection manages the lifecycle of a single authenticated
// WebSocket connection. Called by the HTTP handler after upgrade; blocks
// until the connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Conn:          conn,
		subscriptions: make(map[string]*events.Subscription),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	// Initial snapshot: the full session list.
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		slog.Error("Failed to load session list for new connection",
			"connection_id", connID, "error", err)
		return
	}
	m.sendJSON(c, events.SessionsListPayload{
		Type:     events.TypeSessionsList,
		Sessions: sessions,
	})

	// Every connection receives the global topic.
	c.globalSub = m.bus.Subscribe(events.GlobalTopic)
	c.wg.Add(1)
	go m.forwardGlobal(c)

	// Read loop — process client commands until the connection closes.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", connID, "error", err)
			continue
		}

		m.handleClientMessage(ctx, c, &msg)
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) handleClientMessage(ctx context.Context, c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.SessionID == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "sessionId is required for subscribe"})
			return
		}
		m.subscribe(ctx, c, msg.SessionID)

	case "unsubscribe":
		if msg.SessionID == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "sessionId is required for unsubscribe"})
			return
		}
		m.unsubscribe(c, msg.SessionID)

	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

// subscribe joins the session topic and sends the event history snapshot.
//
// Ordering contract: the bus subscription is taken BEFORE the history query,
// and live forwarding skips any message whose store sequence is at or below
// the snapshot's high-water mark. An event committed before the query is in
// the snapshot; an event committed after it is published after the
// subscription exists. Together that closes the gap/duplicate window across
// the snapshot boundary.
func (m *ConnectionManager) subscribe(ctx context.Context, c *Connection, sessionID string) {
	if _, exists := c.subscriptions[sessionID]; exists {
		return
	}

	sub := m.bus.Subscribe(events.SessionTopic(sessionID))

	history, err := m.store.GetSessionEvents(ctx, sessionID)
	if err != nil {
		sub.Close()
		slog.Error("Failed to load session history",
			"connection_id", c.ID, "session_id", sessionID, "error", err)
		m.sendJSON(c, map[string]string{
			"type":    "error",
			"message": "failed to load session history",
		})
		return
	}

	var watermark int64
	for _, e := range history {
		if e.Seq > watermark {
			watermark = e.Seq
		}
	}

	m.sendJSON(c, events.SessionEventsPayload{
		Type:      events.TypeSessionEvents,
		SessionID: sessionID,
		Events:    history,
	})

	c.subscriptions[sessionID] = sub
	c.wg.Add(1)
	go m.forwardSession(c, sub, watermark)
}

// unsubscribe leaves a session topic. The forwarding goroutine exits when
// the bus closes its channel.
func (m *ConnectionManager) unsubscribe(c *Connection, sessionID string) {
	if sub, exists := c.subscriptions[sessionID]; exists {
		delete(c.subscriptions, sessionID)
		sub.Close()
	}
}

// forwardSession pumps live events for one session topic, dropping anything
// already delivered in the history snapshot.
func (m *ConnectionManager) forwardSession(c *Connection, sub *events.Subscription, watermark int64) {
	defer c.wg.Done()
	for msg := range sub.C {
		if msg.Seq != 0 && msg.Seq <= watermark {
			continue
		}
		if err := m.sendRaw(c, msg.Payload); err != nil {
			slog.Warn("Failed to send to WebSocket client",
				"connection_id", c.ID, "error", err)
			return
		}
	}
}

// forwardGlobal pumps the global topic, filtering frames that are internal
// to the schedulers.
func (m *ConnectionManager) forwardGlobal(c *Connection) {
	defer c.wg.Done()
	for msg := range c.globalSub.C {
		if msg.Type == events.TypeThreadReady {
			continue
		}
		if err := m.sendRaw(c, msg.Payload); err != nil {
			slog.Warn("Failed to send to WebSocket client",
				"connection_id", c.ID, "error", err)
			return
		}
	}
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

// unregisterConnection releases every bus subscription and closes the socket.
func (m *ConnectionManager) unregisterConnection(c *Connection) {
	for sessionID := range c.subscriptions {
		m.unsubscribe(c, sessionID)
	}
	if c.globalSub != nil {
		c.globalSub.Close()
	}

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
	c.wg.Wait()
}

// sendJSON marshals and sends a JSON message to a single connection.
func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
