// Package session maps opaque session identifiers to per-caller state
// for the multiplexed HTTP transport.
//
// A session binds together exactly one backend client (one credential),
// one MCP server instance, and one transport handle (the event/done
// channel pair a read stream attaches to). The registry is the only
// place multiple sessions are visible at once, so it is the lock
// boundary; everything inside a session is single-caller by contract.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// eventBuffer is the capacity of a session's server-to-client event
// channel. Writers drop events rather than block when no reader keeps up.
const eventBuffer = 16

// Session is one logical client connection: an unguessable identifier,
// an exclusively-owned backend client, and an exclusively-owned MCP
// server instance.
//
// Session implements mcpserver.ClientSession and is registered with its
// MCP server at creation, so notifications the server emits (tool-list
// changes, request-scoped notifications) flow through the notification
// channel onto the events channel the read stream drains.
type Session struct {
	// ID is generated by the registry and unique for its lifetime.
	// Treat it as a security boundary: a guessed ID would grant access
	// to another tenant's credential.
	ID string

	client *api.Client
	server *mcpserver.MCPServer

	// dispatchMu serializes tool dispatch so the client's mutable
	// project scope is never observed mid-overwrite by a second
	// invocation on the same session.
	dispatchMu sync.Mutex

	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool

	events chan []byte
	done   chan struct{}
	once   sync.Once
}

var _ mcpserver.ClientSession = (*Session)(nil)

// Client returns the session's backend client.
func (s *Session) Client() *api.Client {
	return s.client
}

// Dispatch feeds one raw JSON-RPC message to the session's MCP server,
// attributed to this session so initialization state and notifications
// are tracked per session. Calls on the same session are processed one
// at a time, in order; a nil result means the message was a notification.
func (s *Session) Dispatch(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	ctx = s.server.WithContext(ctx, s)
	return s.server.HandleMessage(ctx, message)
}

// SessionID implements mcpserver.ClientSession.
func (s *Session) SessionID() string {
	return s.ID
}

// NotificationChannel implements mcpserver.ClientSession. The pump
// goroutine forwards everything written here onto the events channel.
func (s *Session) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return s.notifications
}

// Initialize implements mcpserver.ClientSession.
func (s *Session) Initialize() {
	s.initialized.Store(true)
}

// Initialized implements mcpserver.ClientSession.
func (s *Session) Initialized() bool {
	return s.initialized.Load()
}

// Events is the server-to-client push channel a read stream drains.
func (s *Session) Events() <-chan []byte {
	return s.events
}

// Done is closed when the session is destroyed; read streams must
// return when it fires.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Push queues an event for the session's read stream, dropping it when
// the buffer is full or the session is already closed.
func (s *Session) Push(event []byte) {
	select {
	case <-s.done:
	case s.events <- event:
	default:
	}
}

// pump moves server-emitted notifications onto the events channel until
// the session closes.
func (s *Session) pump() {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.notifications:
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			s.Push(data)
		}
	}
}

// close releases the session's transport handle. Safe to call twice.
func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// --- Registry ---

// Registry owns the sessionId → Session map. One registry per process;
// its lifecycle is tied to the transport that owns it, so tests can run
// several independent registries side by side.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session around the given client and server
// instance and returns it with a freshly generated identifier. The
// session is also registered with the MCP server as its client session,
// which is what routes server-side notifications to the read stream.
func (r *Registry) Create(client *api.Client, srv *mcpserver.MCPServer) (*Session, error) {
	s := &Session{
		ID:            uuid.NewString(),
		client:        client,
		server:        srv,
		notifications: make(chan mcp.JSONRPCNotification, eventBuffer),
		events:        make(chan []byte, eventBuffer),
		done:          make(chan struct{}),
	}

	if err := srv.RegisterSession(context.Background(), s); err != nil {
		return nil, err
	}
	go s.pump()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

// Lookup returns the session for id, or ok=false when absent.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Destroy removes and closes the session with the given id. Destroying
// an absent session is a no-op.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.close()
		s.server.UnregisterSession(context.Background(), s.ID)
	}
}

// DestroyAll tears down every session, for shutdown. The id snapshot is
// taken under the lock and sessions are destroyed outside it, so a
// concurrent Destroy of one of them is safe (Destroy is idempotent).
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Destroy(id)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
