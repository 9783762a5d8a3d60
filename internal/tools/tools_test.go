package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskdeck/taskdeck-mcp/internal/api"
)

// testAPIKey is the only credential the fake backend accepts.
const testAPIKey = "tk_test_key"

// --- Fake backend ---

// fakeBackend is an in-memory Taskdeck API with real status transition
// rules: start requires pending, progress and complete require
// in-progress, anything else is a 409.
type fakeBackend struct {
	mu       sync.Mutex
	projects []api.Project
	specs    map[string][]api.Spec // projectID → specs
	tasks    map[string]*api.Task
	requests int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		projects: []api.Project{
			{ID: "proj-1", Name: "Widgets", RepoFullName: "acme/widgets"},
			{ID: "proj-2", Name: "Gadgets"},
		},
		specs: map[string][]api.Spec{
			"proj-1": {{ID: "spec-1", ProjectID: "proj-1", Title: "Checkout flow", TaskCount: 2}},
		},
		tasks: map[string]*api.Task{
			"task-1": {ID: "task-1", ProjectID: "proj-1", SpecID: "spec-1", Title: "Add cart endpoint", Status: api.StatusPending,
				AcceptanceCriteria: "POST /cart returns 201"},
			"task-2": {ID: "task-2", ProjectID: "proj-1", SpecID: "spec-1", Title: "Wire payment client", Status: api.StatusInProgress},
			"task-3": {ID: "task-3", ProjectID: "proj-1", Title: "Write release notes", Status: api.StatusDone},
		},
	}
}

func (f *fakeBackend) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeBackend) taskStatus(id string) api.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task, ok := f.tasks[id]; ok {
		return task.Status
	}
	return ""
}

func (f *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests++

		if r.Header.Get("X-API-Key") != testAPIKey {
			writeBackendError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api/v1")
		parts := strings.Split(strings.Trim(path, "/"), "/")

		switch {
		case r.Method == http.MethodGet && path == "/projects":
			writeJSON(w, f.projects)

		case r.Method == http.MethodGet && path == "/projects/by-repo":
			repo := r.URL.Query().Get("repo")
			for _, p := range f.projects {
				if p.RepoFullName == repo {
					writeJSON(w, p)
					return
				}
			}
			writeBackendError(w, http.StatusNotFound, "no project linked to "+repo)

		case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "projects" && parts[2] == "specs":
			writeJSON(w, f.specs[parts[1]])

		case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "projects" && parts[2] == "tasks":
			f.listTasks(w, parts[1], r.URL.Query().Get("status"), r.URL.Query().Get("specId"))

		case len(parts) >= 2 && parts[0] == "tasks":
			f.taskEndpoint(w, r, parts)

		default:
			writeBackendError(w, http.StatusNotFound, "no such endpoint")
		}
	})
}

func (f *fakeBackend) listTasks(w http.ResponseWriter, projectID, status, specID string) {
	if !f.projectExists(projectID) {
		writeBackendError(w, http.StatusNotFound, "project not found")
		return
	}
	out := []api.Task{}
	for _, task := range f.tasks {
		if task.ProjectID != projectID {
			continue
		}
		if status != "" && string(task.Status) != status {
			continue
		}
		if specID != "" && task.SpecID != specID {
			continue
		}
		out = append(out, *task)
	}
	writeJSON(w, out)
}

func (f *fakeBackend) taskEndpoint(w http.ResponseWriter, r *http.Request, parts []string) {
	task, ok := f.tasks[parts[1]]
	if !ok {
		writeBackendError(w, http.StatusNotFound, "task not found")
		return
	}

	action := ""
	if len(parts) == 3 {
		action = parts[2]
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		writeJSON(w, task)

	case r.Method == http.MethodPost && action == "start":
		if task.Status != api.StatusPending {
			writeBackendError(w, http.StatusConflict, "task is "+string(task.Status)+", expected pending")
			return
		}
		task.Status = api.StatusInProgress
		writeJSON(w, task)

	case r.Method == http.MethodPost && action == "complete":
		if task.Status != api.StatusInProgress {
			writeBackendError(w, http.StatusConflict, "task is "+string(task.Status)+", expected in-progress")
			return
		}
		task.Status = api.StatusDone
		writeJSON(w, task)

	case r.Method == http.MethodPost && action == "progress":
		if task.Status != api.StatusInProgress {
			writeBackendError(w, http.StatusConflict, "task is "+string(task.Status)+", expected in-progress")
			return
		}
		var req api.ReportProgressRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, api.ProgressUpdate{ID: "upd-1", TaskID: task.ID, Message: req.Message, Percent: req.Percent})

	default:
		writeBackendError(w, http.StatusNotFound, "no such endpoint")
	}
}

func (f *fakeBackend) projectExists(id string) bool {
	for _, p := range f.projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeBackendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message},
	})
}

// newBackendServer serves the fake backend over HTTP and returns its URL.
func newBackendServer(t *testing.T, backend *fakeBackend) string {
	t.Helper()
	ts := httptest.NewServer(backend.handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// setupBackend starts the fake backend and returns it with a client
// authenticated against it.
func setupBackend(t *testing.T) (*fakeBackend, *api.Client) {
	t.Helper()
	backend := newFakeBackend()
	return backend, api.NewClient(newBackendServer(t, backend), testAPIKey)
}

// --- Result helpers ---

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
