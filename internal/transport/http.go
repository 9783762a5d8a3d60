package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
	"github.com/taskdeck/taskdeck-mcp/internal/config"
	"github.com/taskdeck/taskdeck-mcp/internal/server"
	"github.com/taskdeck/taskdeck-mcp/internal/session"
)

const (
	// sessionHeader carries the opaque session identifier on every
	// request after the first.
	sessionHeader = "Mcp-Session-Id"

	// apiKeyHeader is the dedicated credential header; the alternative
	// is a standard Authorization bearer token.
	apiKeyHeader = "X-API-Key"

	// maxBodySize bounds inbound protocol messages.
	maxBodySize = 4 << 20

	// keepAliveInterval paces SSE comments on idle read streams.
	keepAliveInterval = 15 * time.Second

	// shutdownTimeout bounds the HTTP server drain on shutdown.
	shutdownTimeout = 5 * time.Second
)

// Gateway is the multiplexed adapter: many concurrent sessions over one
// shared endpoint, each identified by header and bound to its own
// credential and MCP server instance.
type Gateway struct {
	addr     string
	settings *config.Settings
	registry *session.Registry
	log      *zap.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server

	shutdownOnce sync.Once
}

// NewGateway creates an HTTP gateway listening on addr. The registry is
// owned by the gateway and torn down with it.
func NewGateway(addr string, settings *config.Settings, log *zap.Logger) *Gateway {
	return &Gateway{
		addr:     addr,
		settings: settings,
		registry: session.NewRegistry(),
		log:      log,
	}
}

// Registry exposes the session registry (health endpoint, tests).
func (g *Gateway) Registry() *session.Registry {
	return g.registry
}

// Router builds the gateway's HTTP surface.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", g.handleHealth)
	r.Post("/mcp", g.handleMessage)
	r.Get("/mcp", g.handleStream)
	r.Delete("/mcp", g.handleTeardown)
	return r
}

// Serve runs the gateway until ctx is cancelled, then performs an
// orderly shutdown: destroy all sessions, close the listener, drain.
func (g *Gateway) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.addr)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.listener = ln
	g.httpServer = &http.Server{
		Handler:           g.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := g.httpServer
	g.mu.Unlock()

	g.log.Info("gateway listening", zap.String("addr", ln.Addr().String()))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		g.Shutdown()
		return nil
	})

	return eg.Wait()
}

// Shutdown destroys every session and closes the listening socket.
// Idempotent: a second invocation (signal during an in-flight shutdown)
// is a no-op.
func (g *Gateway) Shutdown() {
	g.shutdownOnce.Do(func() {
		g.log.Info("shutting down", zap.Int("sessions", g.registry.Len()))
		g.registry.DestroyAll()

		g.mu.Lock()
		srv := g.httpServer
		g.mu.Unlock()

		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.log.Warn("http shutdown", zap.Error(err))
			}
		}
	})
}

// Addr reports the bound listen address, or "" before Serve has opened
// the socket. With an ":0" configured address this is where the actual
// port shows up.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// --- Handlers ---

// handleMessage is the message-submission endpoint. A recognized session
// header routes to the existing session; otherwise only an initialize
// request may create one, authenticated by header. Responses map
// one-to-one to requests in submission order per session.
func (g *Gateway) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "reading request body failed")
		return
	}

	var sess *session.Session
	if id := r.Header.Get(sessionHeader); id != "" {
		existing, ok := g.registry.Lookup(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown session — reinitialize")
			return
		}
		sess = existing
	} else {
		created, status, msg := g.createSession(r, body)
		if created == nil {
			writeJSONError(w, status, msg)
			return
		}
		sess = created
		w.Header().Set(sessionHeader, sess.ID)
	}

	resp := sess.Dispatch(r.Context(), body)
	if resp == nil {
		// Notification: nothing to return.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.log.Warn("encoding response", zap.Error(err))
	}
}

// createSession authenticates a first message and registers a session
// for it. Authentication happens before any session state or backend
// call exists; failure returns (nil, status, message).
func (g *Gateway) createSession(r *http.Request, body []byte) (*session.Session, int, string) {
	if !isInitializeRequest(body) {
		return nil, http.StatusBadRequest, "no session — the first message must be an initialize request"
	}

	credential := extractCredential(r)
	if credential == "" {
		return nil, http.StatusUnauthorized, "missing credential — send Authorization: Bearer <key> or " + apiKeyHeader
	}

	client := api.NewClient(g.settings.APIURL, credential)
	sess, err := g.registry.Create(client, server.New(client))
	if err != nil {
		g.log.Error("registering session", zap.Error(err))
		return nil, http.StatusInternalServerError, "creating session failed"
	}

	g.log.Info("session created",
		zap.String("session_id", sess.ID),
		zap.Int("sessions", g.registry.Len()),
	)
	return sess, 0, ""
}

// handleStream is the companion server-to-client read stream, tied to
// an existing session. It closes when the session is destroyed or the
// client disconnects.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "missing "+sessionHeader+" header")
		return
	}
	sess, ok := g.registry.Lookup(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown session — reinitialize")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")

	// Initial comment opens the stream on proxies.
	_, _ = io.WriteString(w, ":\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			return
		case event := <-sess.Events():
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", event)
			flusher.Flush()
		case <-ticker.C:
			_, _ = io.WriteString(w, ":\n\n")
			flusher.Flush()
		}
	}
}

// handleTeardown destroys a session immediately instead of waiting for
// an idle timeout. Idempotent: tearing down an unknown session is fine.
func (g *Gateway) handleTeardown(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "missing "+sessionHeader+" header")
		return
	}

	if _, ok := g.registry.Lookup(id); ok {
		g.registry.Destroy(id)
		g.log.Info("session destroyed",
			zap.String("session_id", id),
			zap.Int("sessions", g.registry.Len()),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth is the unauthenticated liveness endpoint.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":      server.Name,
		"version":   server.Version,
		"transport": "http",
		"sessions":  g.registry.Len(),
		"pid":       os.Getpid(),
	})
}

// --- Helpers ---

// extractCredential accepts the two credential conventions: a bearer
// token or the dedicated key header. Returns "" when neither is present.
func extractCredential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != "" && token != auth {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// isInitializeRequest peeks at a raw message's method without fully
// decoding it. Batches and non-initialize methods don't create sessions.
func isInitializeRequest(body []byte) bool {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Method == "initialize"
}

// writeJSONError writes a transport-level error body. Domain errors
// never pass through here — they are rendered by the tool layer.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message},
	})
}
