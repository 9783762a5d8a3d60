// Package api is the Taskdeck backend proxy: one Client per session,
// holding one API key and issuing authenticated HTTP calls to the remote
// task-management API.
//
// Design decisions:
//   - One method per backend capability, one round trip per method
//   - Failures are tagged (api.Error) so the tool layer can render them
//     exhaustively; the key never appears in any message
//   - The mutable project scope lives here; withProject guarantees
//     save/restore around scoped calls even when the call fails
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// apiPrefix is the versioned path prefix all endpoints live under.
	apiPrefix = "/api/v1"

	// requestTimeout bounds every outbound call. A timeout surfaces
	// as KindNetworkError; retries are the calling agent's business.
	requestTimeout = 30 * time.Second

	// authHeader carries the API key on outbound backend requests.
	authHeader = "X-API-Key"
)

// Client talks to the Taskdeck API on behalf of one session. The API key
// is immutable after construction; the project scope is mutable and must
// only be touched by one in-flight call at a time (the transport layer
// serializes calls per session).
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	// projectID is the session's current project scope. Operations
	// that need a project but were not given one fall back to it.
	projectID string
}

// NewClient creates a backend proxy for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// ProjectID returns the current project scope ("" when unset).
func (c *Client) ProjectID() string {
	return c.projectID
}

// SetProjectID sets the session's default project scope.
func (c *Client) SetProjectID(id string) {
	c.projectID = id
}

// withProject runs fn with the scope temporarily set to projectID and
// restores the previous scope afterward, unconditionally. When projectID
// is empty the current scope is kept; if that is also empty, the call
// fails NotConfigured before any network traffic.
func (c *Client) withProject(projectID string, fn func(projectID string) error) error {
	if projectID == "" {
		if c.projectID == "" {
			return newError(KindNotConfigured,
				"no project selected — pass projectId, pass workingDir for auto-detection, or set TASKDECK_PROJECT_ID")
		}
		return fn(c.projectID)
	}

	prev := c.projectID
	c.projectID = projectID
	defer func() { c.projectID = prev }()

	return fn(projectID)
}

// --- Backend operations ---

// ListProjects returns all projects visible to this API key.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, apiPrefix+"/projects", nil, &projects, KindProjectNotFound); err != nil {
		return nil, err
	}
	return projects, nil
}

// FindProjectByRepo looks up the project linked to an "owner/repo" name.
// A backend 404 here is an expected outcome ("no project is linked to
// this repo"), not an error: it returns (nil, nil).
func (c *Client) FindProjectByRepo(ctx context.Context, repoFullName string) (*Project, error) {
	query := url.Values{"repo": {repoFullName}}
	var project Project
	err := c.get(ctx, apiPrefix+"/projects/by-repo", query, &project, KindProjectNotFound)
	if err != nil {
		if IsKind(err, KindProjectNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// ListSpecs returns the specs of a project. An explicit projectID
// temporarily overrides the session scope for this one call.
func (c *Client) ListSpecs(ctx context.Context, projectID string) ([]Spec, error) {
	var specs []Spec
	err := c.withProject(projectID, func(id string) error {
		path := fmt.Sprintf("%s/projects/%s/specs", apiPrefix, url.PathEscape(id))
		return c.get(ctx, path, nil, &specs, KindProjectNotFound)
	})
	if err != nil {
		return nil, err
	}
	return specs, nil
}

// ListTasks returns a project's tasks filtered by status and, optionally,
// spec. An explicit projectID temporarily overrides the session scope.
// status "all" (or "") lists every task.
func (c *Client) ListTasks(ctx context.Context, projectID string, status TaskStatus, specID string) ([]Task, error) {
	var tasks []Task
	err := c.withProject(projectID, func(id string) error {
		query := url.Values{}
		if status != "" && status != "all" {
			query.Set("status", string(status))
		}
		if specID != "" {
			query.Set("specId", specID)
		}
		path := fmt.Sprintf("%s/projects/%s/tasks", apiPrefix, url.PathEscape(id))
		return c.get(ctx, path, query, &tasks, KindProjectNotFound)
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	path := fmt.Sprintf("%s/tasks/%s", apiPrefix, url.PathEscape(taskID))
	if err := c.get(ctx, path, nil, &task, KindTaskNotFound); err != nil {
		return nil, err
	}
	return &task, nil
}

// StartTask transitions a task to in-progress. The backend rejects the
// call with 409 when the task is not pending.
func (c *Client) StartTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	path := fmt.Sprintf("%s/tasks/%s/start", apiPrefix, url.PathEscape(taskID))
	if err := c.post(ctx, path, nil, &task, KindTaskNotFound); err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteTask transitions a task to done with a completion summary.
func (c *Client) CompleteTask(ctx context.Context, taskID string, req CompleteTaskRequest) (*Task, error) {
	var task Task
	path := fmt.Sprintf("%s/tasks/%s/complete", apiPrefix, url.PathEscape(taskID))
	if err := c.post(ctx, path, req, &task, KindTaskNotFound); err != nil {
		return nil, err
	}
	return &task, nil
}

// ReportProgress posts a progress update against an in-progress task.
func (c *Client) ReportProgress(ctx context.Context, taskID string, req ReportProgressRequest) (*ProgressUpdate, error) {
	var update ProgressUpdate
	path := fmt.Sprintf("%s/tasks/%s/progress", apiPrefix, url.PathEscape(taskID))
	if err := c.post(ctx, path, req, &update, KindTaskNotFound); err != nil {
		return nil, err
	}
	return &update, nil
}

// CurrentUser fetches the identity bound to the API key. Used to
// validate a key without touching any project data.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, apiPrefix+"/me", nil, &user, KindAPIError); err != nil {
		return nil, err
	}
	return &user, nil
}

// --- HTTP plumbing ---

func (c *Client) get(ctx context.Context, path string, query url.Values, out any, notFoundKind Kind) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, notFoundKind)
}

func (c *Client) post(ctx context.Context, path string, body any, out any, notFoundKind Kind) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, notFoundKind)
}

// do performs one round trip: attach the key, send, decode or map the
// failure. notFoundKind picks the 404 flavor (task vs project) so callers
// get a kind-specific NotFound.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, notFoundKind Kind) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(authHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Never echo the URL's query or headers here — only the path.
		return newError(KindNetworkError, "request to %s failed: %v", path, unwrapNetErr(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatus(resp, path, notFoundKind)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(KindAPIError, "decoding response from %s: %v", path, err)
	}
	return nil
}

// mapStatus converts a non-2xx backend response into a tagged Error.
func mapStatus(resp *http.Response, path string, notFoundKind Kind) *Error {
	message := backendMessage(resp.Body)
	if message == "" {
		message = fmt.Sprintf("%s returned %s", path, resp.Status)
	}

	kind := KindAPIError
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusNotFound:
		kind = notFoundKind
	case http.StatusConflict:
		kind = KindInvalidStateTransition
	}

	return &Error{Kind: kind, Message: message, Status: resp.StatusCode}
}

// backendMessage extracts the error text from a backend failure body.
// The API wraps errors as {"error": {"message": "..."}}; older responses
// use a flat {"error": "..."}. Anything unparseable yields "".
func backendMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}

	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &flat); err == nil {
		if flat.Error != "" {
			return flat.Error
		}
		if flat.Message != "" {
			return flat.Message
		}
	}
	return ""
}

// unwrapNetErr strips the "Get/Post <full url>:" prefix url.Error adds,
// so network failures don't leak query strings into user-visible text.
func unwrapNetErr(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		return uerr.Err
	}
	return err
}
