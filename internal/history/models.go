package history

import "time"

// Kind distinguishes scheduled day renders from on-demand range renders.
type Kind string

const (
	KindDaily Kind = "daily"
	KindRange Kind = "range"
)

// Status is the lifecycle state of a render run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// InterruptedReason is recorded on runs found running at startup.
const InterruptedReason = "interrupted"

// Run is one persisted render attempt.
type Run struct {
	ID            string     `json:"id"`
	Kind          Kind       `json:"kind"`
	Label         string     `json:"label"`
	FrameCount    int        `json:"frame_count"`
	Status        Status     `json:"status"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ArtifactPath  string     `json:"artifact_path,omitempty"`
	ThumbnailPath string     `json:"thumbnail_path,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Duration reports how long a finished run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome carries the result of a run to Finish.
type Outcome struct {
	Status        Status
	ErrorMessage  string
	ArtifactPath  string
	ThumbnailPath string
}

// Summary counts runs by status.
type Summary struct {
	Total     int
	Running   int
	Succeeded int
	Failed    int
	LastRun   *Run
}
