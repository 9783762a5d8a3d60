package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskdeck/taskdeck-mcp/internal/config"
)

const initializeBody = `{
	"jsonrpc": "2.0",
	"id": 1,
	"method": "initialize",
	"params": {
		"protocolVersion": "2024-11-05",
		"capabilities": {},
		"clientInfo": {"name": "test-client", "version": "0.0.1"}
	}
}`

const listProjectsCall = `{
	"jsonrpc": "2.0",
	"id": 2,
	"method": "tools/call",
	"params": {"name": "list_projects", "arguments": {}}
}`

// recordingBackend counts Taskdeck API requests and records the API key
// each one carried.
type recordingBackend struct {
	mu   sync.Mutex
	keys []string
}

func (b *recordingBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.keys = append(b.keys, r.Header.Get("X-API-Key"))
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
}

func (b *recordingBackend) seenKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.keys...)
}

// setupGateway serves a gateway router over httptest, pointed at the
// given backend. Returns the gateway and the gateway's base URL.
func setupGateway(t *testing.T, backend *recordingBackend) (*Gateway, string) {
	t.Helper()

	backendURL := "http://backend.invalid"
	if backend != nil {
		ts := httptest.NewServer(backend.handler())
		t.Cleanup(ts.Close)
		backendURL = ts.URL
	}

	g := NewGateway(":0", &config.Settings{APIURL: backendURL}, zap.NewNop())
	ts := httptest.NewServer(g.Router())
	t.Cleanup(ts.Close)
	return g, ts.URL
}

// postMCP sends one message to the gateway, with optional session and
// credential headers.
func postMCP(t *testing.T, gatewayURL, sessionID, bearer, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, gatewayURL+"/mcp", strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("posting to gateway: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// initSession initializes a new session and returns its id.
func initSession(t *testing.T, gatewayURL, bearer string) string {
	t.Helper()
	resp := postMCP(t, gatewayURL, "", bearer, initializeBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize returned %d", resp.StatusCode)
	}
	id := resp.Header.Get("Mcp-Session-Id")
	if id == "" {
		t.Fatal("initialize response has no Mcp-Session-Id header")
	}
	return id
}

// --- session creation ---

func TestGateway_InitializeCreatesSession(t *testing.T) {
	g, url := setupGateway(t, nil)

	id := initSession(t, url, "tk_key_a")
	if g.Registry().Len() != 1 {
		t.Errorf("registry has %d sessions, want 1", g.Registry().Len())
	}
	if _, ok := g.Registry().Lookup(id); !ok {
		t.Errorf("returned session id %q is not registered", id)
	}
}

func TestGateway_MissingCredentialIs401BeforeAnySessionExists(t *testing.T) {
	backend := &recordingBackend{}
	g, url := setupGateway(t, backend)

	resp := postMCP(t, url, "", "", initializeBody)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if g.Registry().Len() != 0 {
		t.Errorf("registry has %d sessions, want 0 after rejected init", g.Registry().Len())
	}
	if len(backend.seenKeys()) != 0 {
		t.Errorf("backend saw %d requests, want 0", len(backend.seenKeys()))
	}
}

func TestGateway_APIKeyHeaderAlsoAuthenticates(t *testing.T) {
	g, url := setupGateway(t, nil)

	req, err := http.NewRequest(http.MethodPost, url+"/mcp", strings.NewReader(initializeBody))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("X-API-Key", "tk_key_a")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("posting: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if g.Registry().Len() != 1 {
		t.Errorf("registry has %d sessions, want 1", g.Registry().Len())
	}
}

func TestGateway_NonInitializeWithoutSessionIs400(t *testing.T) {
	g, url := setupGateway(t, nil)

	resp := postMCP(t, url, "", "tk_key_a", listProjectsCall)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if g.Registry().Len() != 0 {
		t.Errorf("registry has %d sessions, want 0", g.Registry().Len())
	}
}

func TestGateway_UnknownSessionIs404(t *testing.T) {
	_, url := setupGateway(t, nil)

	resp := postMCP(t, url, "not-a-session", "", listProjectsCall)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// --- session routing ---

func TestGateway_SessionReuseRoutesToSameServer(t *testing.T) {
	backend := &recordingBackend{}
	_, url := setupGateway(t, backend)

	id := initSession(t, url, "tk_key_a")

	resp := postMCP(t, url, id, "", listProjectsCall)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tools/call returned %d", resp.StatusCode)
	}

	var rpc struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(rpc.Error) > 0 {
		t.Fatalf("tools/call returned rpc error: %s", rpc.Error)
	}

	keys := backend.seenKeys()
	if len(keys) != 1 || keys[0] != "tk_key_a" {
		t.Errorf("backend saw keys %v, want exactly the session's key", keys)
	}
}

func TestGateway_SessionsAreCredentialIsolated(t *testing.T) {
	backend := &recordingBackend{}
	_, url := setupGateway(t, backend)

	idA := initSession(t, url, "tk_key_a")
	idB := initSession(t, url, "tk_key_b")

	// Credential headers on later calls are ignored: the session's own
	// stored key is what reaches the backend.
	if resp := postMCP(t, url, idA, "tk_key_b", listProjectsCall); resp.StatusCode != http.StatusOK {
		t.Fatalf("session A call returned %d", resp.StatusCode)
	}
	if resp := postMCP(t, url, idB, "", listProjectsCall); resp.StatusCode != http.StatusOK {
		t.Fatalf("session B call returned %d", resp.StatusCode)
	}

	keys := backend.seenKeys()
	if len(keys) != 2 || keys[0] != "tk_key_a" || keys[1] != "tk_key_b" {
		t.Errorf("backend saw keys %v, want [tk_key_a tk_key_b]", keys)
	}
}

func TestGateway_NotificationReturns202(t *testing.T) {
	_, url := setupGateway(t, nil)
	id := initSession(t, url, "tk_key_a")

	notification := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	resp := postMCP(t, url, id, "", notification)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202 for a notification", resp.StatusCode)
	}
}

func TestGateway_StreamDeliversSessionEvents(t *testing.T) {
	g, url := setupGateway(t, nil)
	id := initSession(t, url, "tk_key_a")

	req, err := http.NewRequest(http.MethodGet, url+"/mcp", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Mcp-Session-Id", id)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening read stream: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	sess, ok := g.Registry().Lookup(id)
	if !ok {
		t.Fatal("session vanished")
	}
	sess.Push([]byte(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`))

	events := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				events <- line
				return
			}
		}
	}()

	select {
	case line := <-events:
		if !strings.Contains(line, "list_changed") {
			t.Errorf("stream delivered %q, want the pushed notification", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pushed event never arrived on the read stream")
	}
}

// --- teardown ---

func TestGateway_DeleteDestroysSessionIdempotently(t *testing.T) {
	g, url := setupGateway(t, nil)
	id := initSession(t, url, "tk_key_a")

	del := func() int {
		req, err := http.NewRequest(http.MethodDelete, url+"/mcp", nil)
		if err != nil {
			t.Fatalf("building request: %v", err)
		}
		req.Header.Set("Mcp-Session-Id", id)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("deleting session: %v", err)
		}
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	if status := del(); status != http.StatusNoContent {
		t.Errorf("first DELETE = %d, want 204", status)
	}
	if g.Registry().Len() != 0 {
		t.Errorf("registry has %d sessions after DELETE, want 0", g.Registry().Len())
	}
	if status := del(); status != http.StatusNoContent {
		t.Errorf("second DELETE = %d, want 204 (idempotent)", status)
	}

	// The session id no longer routes.
	resp := postMCP(t, url, id, "", listProjectsCall)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("post-delete status = %d, want 404", resp.StatusCode)
	}
}

// --- health ---

func TestGateway_Health(t *testing.T) {
	_, url := setupGateway(t, nil)
	initSession(t, url, "tk_key_a")
	initSession(t, url, "tk_key_b")

	resp, err := http.Get(url + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health struct {
		Name      string `json:"name"`
		Transport string `json:"transport"`
		Sessions  int    `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Name != "taskdeck" || health.Transport != "http" {
		t.Errorf("health = %+v, want name=taskdeck transport=http", health)
	}
	if health.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", health.Sessions)
	}
}

// --- shutdown ---

func TestGateway_ShutdownDestroysAllSessionsAndClosesListenerOnce(t *testing.T) {
	g := NewGateway("127.0.0.1:0", &config.Settings{APIURL: "http://backend.invalid"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- g.Serve(ctx) }()

	var url string
	for i := 0; i < 200; i++ {
		if addr := g.Addr(); addr != "" {
			url = "http://" + addr
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if url == "" {
		t.Fatal("gateway never bound its listener")
	}

	ids := []string{
		initSession(t, url, "tk_key_a"),
		initSession(t, url, "tk_key_b"),
		initSession(t, url, "tk_key_c"),
	}

	// Two shutdown triggers racing: the context cancellation path and a
	// direct call. The listener must close exactly once, no panic.
	cancel()
	g.Shutdown()

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}

	if g.Registry().Len() != 0 {
		t.Errorf("registry has %d sessions after shutdown, want 0", g.Registry().Len())
	}
	for _, id := range ids {
		if _, ok := g.Registry().Lookup(id); ok {
			t.Errorf("session %s survived shutdown", id)
		}
	}

	// The socket is closed: new connections must fail.
	if resp, err := http.Get(url + "/health"); err == nil {
		_ = resp.Body.Close()
		t.Error("listener still accepting connections after shutdown")
	}
}
