// Package events routes job and batch lifecycle events to exactly the
// connections that subscribed to them. Delivery is best-effort and
// at-most-once; a failed send removes the connection from every scope.
package events

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"docstream/internal/domain"
)

// ScopeKind discriminates the subscription key kinds.
type ScopeKind string

const (
	ScopeDocumentType ScopeKind = "document_type"
	ScopeJob          ScopeKind = "job"
	ScopeBatch        ScopeKind = "batch"
)

// Scope is one subscription key. Document-type scopes are the preferred
// routing; job and batch scopes exist for legacy consumers.
type Scope struct {
	Kind ScopeKind
	ID   uuid.UUID
}

// Conn is a live client connection capable of receiving events. WriteEvent
// must be safe for concurrent use by the bus.
type Conn interface {
	WriteEvent(event domain.Event) error
}

// Bus is the in-memory subscription registry. It is constructed once at
// startup and shared by reference; all mutation happens under one mutex.
type Bus struct {
	mu      sync.Mutex
	scopes  map[Scope]map[Conn]struct{}
	clients map[Conn]map[Scope]struct{}
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		scopes:  make(map[Scope]map[Conn]struct{}),
		clients: make(map[Conn]map[Scope]struct{}),
	}
}

// Register tracks a connection globally so it can always be fully removed on
// close, even if it never subscribes to anything.
func (b *Bus) Register(c Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; !ok {
		b.clients[c] = make(map[Scope]struct{})
	}
}

// Subscribe adds the connection to a scope. Unregistered connections are
// registered implicitly.
func (b *Bus) Subscribe(c Conn, s Scope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; !ok {
		b.clients[c] = make(map[Scope]struct{})
	}
	b.clients[c][s] = struct{}{}
	if _, ok := b.scopes[s]; !ok {
		b.scopes[s] = make(map[Conn]struct{})
	}
	b.scopes[s][c] = struct{}{}
}

// Unsubscribe removes the connection from a single scope.
func (b *Bus) Unsubscribe(c Conn, s Scope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.clients[c]; ok {
		delete(subs, s)
	}
	b.dropFromScope(c, s)
}

// Remove deletes the connection from the global registry and every scope it
// subscribed to. Safe to call more than once.
func (b *Bus) Remove(c Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c)
}

func (b *Bus) removeLocked(c Conn) {
	for s := range b.clients[c] {
		b.dropFromScope(c, s)
	}
	delete(b.clients, c)
}

func (b *Bus) dropFromScope(c Conn, s Scope) {
	if conns, ok := b.scopes[s]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(b.scopes, s)
		}
	}
}

// ClientCount returns the number of registered connections.
func (b *Bus) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast delivers the event to every connection subscribed to any of the
// event's scopes. Events with no scoping identifier are dropped. The send
// happens outside the registry lock; connections whose send fails are
// removed from all scopes, with no redelivery.
func (b *Bus) Broadcast(event domain.Event) {
	scopes := eventScopes(event)
	if len(scopes) == 0 {
		log.Printf("events.Broadcast: dropping unscoped %s event", event.Type)
		return
	}

	b.mu.Lock()
	targets := make(map[Conn]struct{})
	for _, s := range scopes {
		for c := range b.scopes[s] {
			targets[c] = struct{}{}
		}
	}
	b.mu.Unlock()

	var dead []Conn
	for c := range targets {
		if err := c.WriteEvent(event); err != nil {
			log.Printf("events.Broadcast: send failed, pruning connection: %v", err)
			dead = append(dead, c)
		}
	}
	if len(dead) > 0 {
		b.mu.Lock()
		for _, c := range dead {
			b.removeLocked(c)
		}
		b.mu.Unlock()
	}
}

func eventScopes(event domain.Event) []Scope {
	var scopes []Scope
	if event.DocumentTypeID != nil {
		scopes = append(scopes, Scope{Kind: ScopeDocumentType, ID: *event.DocumentTypeID})
	}
	if event.JobID != nil {
		scopes = append(scopes, Scope{Kind: ScopeJob, ID: *event.JobID})
	}
	if event.BatchID != nil {
		scopes = append(scopes, Scope{Kind: ScopeBatch, ID: *event.BatchID})
	}
	return scopes
}
