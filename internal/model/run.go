package model

import "time"

// RunStatus is the lifecycle state of a local classification run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is one entry in the local run history. It exists for operator
// visibility only; a failed or interrupted run is never resumed from it.
type RunRecord struct {
	ID           string     `json:"id"`
	InputFile    string     `json:"input_file"`
	TaxonomyFile string     `json:"taxonomy_file"`
	JobID        string     `json:"job_id,omitempty"`
	Status       RunStatus  `json:"status"`
	TotalRows    int        `json:"total_rows"`
	Sent         int        `json:"sent"`
	Skipped      int        `json:"skipped"`
	Missing      int        `json:"missing"`
	ParseErrors  int        `json:"parse_errors"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
