package handler

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"docstream/internal/domain"
	"docstream/internal/events"
)

const writeWait = 5 * time.Second

// EventsHandler upgrades clients to WebSocket and relays bus events to them.
type EventsHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler. checkOrigin decides which
// origins may open event connections; nil allows all.
func NewEventsHandler(bus *events.Bus, checkOrigin func(r *http.Request) bool) *EventsHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &EventsHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// wsConn adapts one WebSocket connection to the bus Conn contract. gorilla
// allows only one concurrent writer per connection, hence the mutex.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) WriteEvent(event domain.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(event)
}

func (w *wsConn) writeControl(payload interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(payload)
}

// clientMessage is one inbound frame on the events socket. A subscribe or
// unsubscribe frame carries exactly one scoping id; documentTypeId wins when
// several are set.
type clientMessage struct {
	Type           string    `json:"type"` // subscribe | unsubscribe | ping
	DocumentTypeID uuid.UUID `json:"documentTypeId"`
	JobID          uuid.UUID `json:"jobId"`
	BatchID        uuid.UUID `json:"batchId"`
}

func (m *clientMessage) scope() (events.Scope, bool) {
	switch {
	case m.DocumentTypeID != uuid.Nil:
		return events.Scope{Kind: events.ScopeDocumentType, ID: m.DocumentTypeID}, true
	case m.JobID != uuid.Nil:
		return events.Scope{Kind: events.ScopeJob, ID: m.JobID}, true
	case m.BatchID != uuid.Nil:
		return events.Scope{Kind: events.ScopeBatch, ID: m.BatchID}, true
	}
	return events.Scope{}, false
}

// Serve handles GET /api/v1/events/ws. The read loop owns the connection's
// bus registration: when it exits, the client and all its subscriptions are
// gone.
func (h *EventsHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("eventsHandler: upgrade: %v", err)
		return
	}

	client := &wsConn{conn: conn}
	h.bus.Register(client)
	defer func() {
		h.bus.Remove(client)
		_ = conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("eventsHandler: read: %v", err)
			}
			return
		}

		switch msg.Type {
		case "subscribe", "unsubscribe":
			scope, ok := msg.scope()
			if !ok {
				_ = client.writeControl(gin.H{"error": "documentTypeId, jobId, or batchId is required"})
				continue
			}
			if msg.Type == "subscribe" {
				h.bus.Subscribe(client, scope)
			} else {
				h.bus.Unsubscribe(client, scope)
			}
			_ = client.writeControl(gin.H{"ack": msg.Type, "id": scope.ID})
		case "ping":
			_ = client.writeControl(gin.H{"type": "pong"})
		default:
			_ = client.writeControl(gin.H{"error": "unknown message type"})
		}
	}
}
