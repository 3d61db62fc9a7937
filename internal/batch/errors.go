package batch

import (
	"fmt"

	"github.com/sells-group/classify-cli/internal/model"
)

// UploadError reports a transport-level failure uploading the request
// payload. The run aborts; the caller may resubmit from scratch.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("batch: upload payload: %v", e.Err) }

func (e *UploadError) Unwrap() error { return e.Err }

// JobCreationError reports that the service rejected the batch, e.g. a
// malformed payload. InputFileID names the already-uploaded payload.
type JobCreationError struct {
	InputFileID string
	Err         error
}

func (e *JobCreationError) Error() string {
	return fmt.Sprintf("batch: create job for file %s: %v", e.InputFileID, e.Err)
}

func (e *JobCreationError) Unwrap() error { return e.Err }

// JobTimeoutError reports that the job did not reach a terminal status
// before the polling deadline.
type JobTimeoutError struct {
	JobID      string
	LastStatus model.JobStatus
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("batch: job %s timed out (last status %s)", e.JobID, e.LastStatus)
}

// JobFailedError reports a terminal failure status (failed, expired,
// cancelled). The same job is never retried; the batch must be rebuilt and
// resubmitted.
type JobFailedError struct {
	JobID  string
	Status model.JobStatus
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("batch: job %s ended with status %s", e.JobID, e.Status)
}
