package model

// JobStatus is the lifecycle state of a remote batch job. Transitions only
// move forward: queued → running → one of the terminal states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusExpired   JobStatus = "expired"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusExpired, JobStatusCancelled:
		return true
	}
	return false
}

// BatchJob tracks one remote batch job and its transient file handles.
// OutputFileID is populated only once the job completes.
type BatchJob struct {
	JobID        string    `json:"job_id"`
	InputFileID  string    `json:"input_file_id"`
	Status       JobStatus `json:"status"`
	OutputFileID string    `json:"output_file_id,omitempty"`
}
