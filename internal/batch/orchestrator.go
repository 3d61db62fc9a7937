package batch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/resilience"
	"github.com/sells-group/classify-cli/pkg/zhipu"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

// Sleeper blocks for d or until ctx is cancelled. Injectable so the poll
// loop is testable without wall-clock delay.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config tunes the orchestrator's polling behavior.
type Config struct {
	// PollInterval is the fixed wait between status queries. Default 5s.
	PollInterval time.Duration
	// Timeout bounds the whole poll loop. Default 30m.
	Timeout time.Duration
	// Retry governs transport-level retries within a single API call.
	Retry resilience.RetryConfig
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSleeper replaces the real sleep between polls.
func WithSleeper(s Sleeper) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithClock replaces the wall clock used for the polling deadline.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator drives one batch job through its asynchronous lifecycle:
// queued → running → {completed, failed, expired, cancelled}. Exactly one
// job is in flight per run.
type Orchestrator struct {
	client zhipu.Client
	cfg    Config
	sleep  Sleeper
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator over the given batch API client.
func NewOrchestrator(client zhipu.Client, cfg Config, opts ...OrchestratorOption) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPollTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	o := &Orchestrator{
		client: client,
		cfg:    cfg,
		sleep:  defaultSleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run submits the payload and drives the job to completion, returning the
// raw output lines of the completed job. Result line order is arbitrary;
// callers must route by custom_id, never by position.
//
// The uploaded input file and the output file are deleted best-effort on
// every exit path, including timeout and fetch failure. Cancelling ctx
// stops local polling only: the remote job is advisory-cancelled at best
// and may continue executing (and billing) on the provider side.
func (o *Orchestrator) Run(ctx context.Context, payload []byte) ([][]byte, error) {
	job, err := o.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	return o.Await(ctx, job)
}

// Await drives an already-submitted job to a terminal state and returns its
// output lines. Terminal failure statuses surface as *JobFailedError; the
// job's remote file handles are released on every exit path.
func (o *Orchestrator) Await(ctx context.Context, job *model.BatchJob) ([][]byte, error) {
	defer o.release(job)

	if err := o.waitTerminal(ctx, job); err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusCompleted {
		return nil, &JobFailedError{JobID: job.JobID, Status: job.Status}
	}

	return o.Fetch(ctx, job)
}

// Submit uploads the serialized payload and creates a job referencing it.
// Transport failures surface as *UploadError, service-side rejection of the
// batch as *JobCreationError.
func (o *Orchestrator) Submit(ctx context.Context, payload []byte) (*model.BatchJob, error) {
	fileID, err := resilience.DoVal(ctx, o.retryCfg("upload"), func(ctx context.Context) (string, error) {
		return o.client.UploadFile(ctx, "batch_requests.jsonl", bytes.NewReader(payload))
	})
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	zap.L().Info("uploaded batch payload", zap.String("file_id", fileID), zap.Int("bytes", len(payload)))

	remote, err := resilience.DoVal(ctx, o.retryCfg("create batch"), func(ctx context.Context) (*zhipu.Batch, error) {
		return o.client.CreateBatch(ctx, fileID)
	})
	if err != nil {
		// The input file is already remote; release it here since no job
		// owns it yet.
		o.deleteFile(fileID)
		return nil, &JobCreationError{InputFileID: fileID, Err: err}
	}

	job := &model.BatchJob{
		JobID:       remote.ID,
		InputFileID: fileID,
		Status:      mapStatus(remote.Status),
	}
	zap.L().Info("batch job created",
		zap.String("job_id", job.JobID),
		zap.String("status", string(job.Status)),
	)
	return job, nil
}

// Poll refreshes the job's status with a single query.
func (o *Orchestrator) Poll(ctx context.Context, job *model.BatchJob) error {
	remote, err := resilience.DoVal(ctx, o.retryCfg("poll"), func(ctx context.Context) (*zhipu.Batch, error) {
		return o.client.GetBatch(ctx, job.JobID)
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("batch: poll job %s", job.JobID))
	}

	job.Status = mapStatus(remote.Status)
	job.OutputFileID = remote.OutputFileID
	return nil
}

// waitTerminal polls on a fixed interval until the job reaches a terminal
// status or the deadline elapses. The loop always sleeps between queries.
func (o *Orchestrator) waitTerminal(ctx context.Context, job *model.BatchJob) error {
	deadline := o.now().Add(o.cfg.Timeout)
	for {
		if err := o.Poll(ctx, job); err != nil {
			return err
		}
		zap.L().Debug("batch job status",
			zap.String("job_id", job.JobID),
			zap.String("status", string(job.Status)),
		)

		if job.Status.Terminal() {
			return nil
		}

		if !o.now().Add(o.cfg.PollInterval).Before(deadline) {
			return &JobTimeoutError{JobID: job.JobID, LastStatus: job.Status}
		}
		if err := o.sleep(ctx, o.cfg.PollInterval); err != nil {
			return eris.Wrap(err, fmt.Sprintf("batch: polling job %s cancelled", job.JobID))
		}
	}
}

// Fetch downloads the completed job's output and splits it into lines.
// Valid only when the job status is completed.
func (o *Orchestrator) Fetch(ctx context.Context, job *model.BatchJob) ([][]byte, error) {
	if job.Status != model.JobStatusCompleted {
		return nil, eris.Errorf("batch: fetch on job %s with status %s", job.JobID, job.Status)
	}
	if job.OutputFileID == "" {
		return nil, eris.Errorf("batch: job %s completed without an output file", job.JobID)
	}

	content, err := resilience.DoVal(ctx, o.retryCfg("fetch output"), func(ctx context.Context) ([]byte, error) {
		return o.client.FileContent(ctx, job.OutputFileID)
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("batch: fetch output of job %s", job.JobID))
	}

	var lines [][]byte
	for _, line := range bytes.Split(content, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
	}
	zap.L().Info("fetched batch output",
		zap.String("job_id", job.JobID),
		zap.Int("lines", len(lines)),
	)
	return lines, nil
}

// release deletes the job's remote file handles best-effort. It uses a
// fresh context so cleanup still runs when the run's context is cancelled.
func (o *Orchestrator) release(job *model.BatchJob) {
	o.deleteFile(job.InputFileID)
	o.deleteFile(job.OutputFileID)
}

func (o *Orchestrator) deleteFile(fileID string) {
	if fileID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := o.client.DeleteFile(ctx, fileID); err != nil {
		zap.L().Warn("failed to delete remote file", zap.String("file_id", fileID), zap.Error(err))
	}
}

func (o *Orchestrator) retryCfg(operation string) resilience.RetryConfig {
	cfg := o.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("zhipu", operation)
	}
	return cfg
}

// mapStatus normalizes provider status strings onto the job state machine.
func mapStatus(remote string) model.JobStatus {
	switch remote {
	case "validating", "queued", "in_queue", "created":
		return model.JobStatusQueued
	case "in_progress", "finalizing", "running":
		return model.JobStatusRunning
	case "completed":
		return model.JobStatusCompleted
	case "failed":
		return model.JobStatusFailed
	case "expired":
		return model.JobStatusExpired
	case "cancelling", "canceling", "cancelled", "canceled":
		return model.JobStatusCancelled
	default:
		// Unknown statuses are treated as still in flight; the deadline
		// bounds how long that can last.
		return model.JobStatusRunning
	}
}
