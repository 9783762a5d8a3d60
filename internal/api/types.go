package api

// --- Task status enum ---

// TaskStatus is the backend's task state. Transitions are one-directional
// (pending → in-progress → done) and enforced by the backend, not here.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// validStatuses is the set of statuses accepted as a list_tasks filter.
var validStatuses = map[TaskStatus]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusDone:       true,
}

// ValidStatus reports whether s is a recognized task status.
func ValidStatus(s TaskStatus) bool {
	return validStatuses[s]
}

// --- Backend resource types ---

// Project is a Taskdeck project: the container for specs and tasks.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// RepoFullName is the "owner/repo" of the linked git repository,
	// empty when the project is not linked to one.
	RepoFullName string `json:"repoFullName,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// Spec is a specification document tasks are derived from.
type Spec struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Status    string `json:"status,omitempty"`
	TaskCount int    `json:"taskCount,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Task is one unit of implementation work.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	SpecID      string     `json:"specId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	// AcceptanceCriteria and Notes are free-form guidance written by
	// the spec author; surfaced verbatim in get_task.
	AcceptanceCriteria string `json:"acceptanceCriteria,omitempty"`
	Notes              string `json:"notes,omitempty"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

// ProgressUpdate is one progress report posted against an in-progress task.
type ProgressUpdate struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	Message   string `json:"message"`
	Percent   *int   `json:"percent,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// User is the identity bound to an API key, used for key validation.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// --- Request bodies ---

// CompleteTaskRequest is the body for the task completion endpoint.
type CompleteTaskRequest struct {
	Summary        string   `json:"summary"`
	FilesModified  []string `json:"filesModified,omitempty"`
	Implementation string   `json:"implementation,omitempty"`
}

// ReportProgressRequest is the body for the progress endpoint.
type ReportProgressRequest struct {
	Message string `json:"message"`
	Percent *int   `json:"percent,omitempty"`
}
