package batch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/pkg/zhipu"
)

// fakeBatchClient scripts the remote batch API for orchestrator tests.
type fakeBatchClient struct {
	mu sync.Mutex

	uploadErr error
	uploaded  []byte

	createErr error

	statuses     []string // consumed one per GetBatch; last repeats
	polls        int
	outputFileID string

	content    []byte
	contentErr error
	fetches    int

	deleted []string
}

func (f *fakeBatchClient) UploadFile(_ context.Context, _ string, r io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.uploaded = data
	return "file-in", nil
}

func (f *fakeBatchClient) CreateBatch(_ context.Context, inputFileID string) (*zhipu.Batch, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &zhipu.Batch{ID: "batch-1", Status: "validating", InputFileID: inputFileID}, nil
}

func (f *fakeBatchClient) GetBatch(_ context.Context, batchID string) (*zhipu.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.statuses[min(f.polls, len(f.statuses)-1)]
	f.polls++
	b := &zhipu.Batch{ID: batchID, Status: status}
	if status == "completed" {
		b.OutputFileID = f.outputFileID
	}
	return b, nil
}

func (f *fakeBatchClient) FileContent(_ context.Context, _ string) ([]byte, error) {
	f.fetches++
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	return f.content, nil
}

func (f *fakeBatchClient) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileID)
	return nil
}

// fakeClock advances only when the recorded sleeper fires, so poll-loop
// tests run without wall-clock delay.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestOrchestrator(client zhipu.Client, cfg Config) (*Orchestrator, *[]time.Duration) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sleeps := &[]time.Duration{}
	orch := NewOrchestrator(client, cfg,
		WithClock(clock.Now),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			clock.advance(d)
			return nil
		}),
	)
	return orch, sleeps
}

func TestOrchestrator_RunCompletes(t *testing.T) {
	client := &fakeBatchClient{
		statuses:     []string{"validating", "in_progress", "completed"},
		outputFileID: "file-out",
		content:      []byte("{\"custom_id\":\"request-0\"}\n{\"custom_id\":\"request-2\"}\n\n"),
	}
	orch, sleeps := newTestOrchestrator(client, Config{PollInterval: 5 * time.Second, Timeout: time.Hour})

	payload := []byte(`{"custom_id":"request-0"}` + "\n")
	lines, err := orch.Run(context.Background(), payload)
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, payload, client.uploaded)
	assert.Equal(t, 3, client.polls)
	assert.Equal(t, 1, client.fetches)

	// Two sleeps between three polls, fixed interval.
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *sleeps)

	// Both remote handles released.
	assert.ElementsMatch(t, []string{"file-in", "file-out"}, client.deleted)
}

func TestOrchestrator_TerminalFailureNeverFetches(t *testing.T) {
	client := &fakeBatchClient{
		statuses: []string{"validating", "in_progress", "in_progress", "failed"},
	}
	orch, sleeps := newTestOrchestrator(client, Config{PollInterval: 5 * time.Second, Timeout: time.Hour})

	_, err := orch.Run(context.Background(), []byte("{}\n"))

	var failed *JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "batch-1", failed.JobID)
	assert.Equal(t, model.JobStatusFailed, failed.Status)

	assert.Equal(t, 4, client.polls)
	assert.Equal(t, 0, client.fetches)
	assert.Len(t, *sleeps, 3)
	// Input handle is still released on the failure path.
	assert.Contains(t, client.deleted, "file-in")
}

func TestOrchestrator_ExpiredAndCancelledAreTerminal(t *testing.T) {
	for remote, want := range map[string]model.JobStatus{
		"expired":   model.JobStatusExpired,
		"cancelled": model.JobStatusCancelled,
	} {
		client := &fakeBatchClient{statuses: []string{remote}}
		orch, _ := newTestOrchestrator(client, Config{})

		_, err := orch.Run(context.Background(), []byte("{}\n"))

		var failed *JobFailedError
		require.ErrorAs(t, err, &failed, "remote status %s", remote)
		assert.Equal(t, want, failed.Status)
		assert.Equal(t, 0, client.fetches)
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	client := &fakeBatchClient{statuses: []string{"in_progress"}}
	orch, sleeps := newTestOrchestrator(client, Config{PollInterval: 5 * time.Second, Timeout: 12 * time.Second})

	_, err := orch.Run(context.Background(), []byte("{}\n"))

	var timeout *JobTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "batch-1", timeout.JobID)
	assert.Equal(t, model.JobStatusRunning, timeout.LastStatus)

	// Polls at t=0s, 5s, 10s; a fourth poll would land past the deadline.
	assert.Equal(t, 3, client.polls)
	assert.Len(t, *sleeps, 2)
	assert.Contains(t, client.deleted, "file-in")
}

func TestOrchestrator_UploadError(t *testing.T) {
	client := &fakeBatchClient{uploadErr: errors.New("connection refused by proxy")}
	orch, _ := newTestOrchestrator(client, Config{})

	_, err := orch.Submit(context.Background(), []byte("{}\n"))

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Empty(t, client.deleted)
}

func TestOrchestrator_JobCreationError(t *testing.T) {
	client := &fakeBatchClient{createErr: errors.New("invalid jsonl payload")}
	orch, _ := newTestOrchestrator(client, Config{})

	_, err := orch.Submit(context.Background(), []byte("not jsonl"))

	var createErr *JobCreationError
	require.ErrorAs(t, err, &createErr)
	assert.Equal(t, "file-in", createErr.InputFileID)
	// The orphaned upload is released immediately.
	assert.Equal(t, []string{"file-in"}, client.deleted)
}

func TestOrchestrator_FetchRequiresCompleted(t *testing.T) {
	client := &fakeBatchClient{}
	orch, _ := newTestOrchestrator(client, Config{})

	job := &model.BatchJob{JobID: "batch-1", Status: model.JobStatusRunning}
	_, err := orch.Fetch(context.Background(), job)
	assert.Error(t, err)
	assert.Equal(t, 0, client.fetches)
}

func TestOrchestrator_CancelledContextStopsPolling(t *testing.T) {
	client := &fakeBatchClient{statuses: []string{"in_progress"}}
	ctx, cancel := context.WithCancel(context.Background())

	orch := NewOrchestrator(client, Config{PollInterval: time.Second, Timeout: time.Hour},
		WithSleeper(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	_, err := orch.Run(ctx, []byte("{}\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// Cleanup still ran despite cancellation.
	assert.Contains(t, client.deleted, "file-in")
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, model.JobStatusQueued, mapStatus("validating"))
	assert.Equal(t, model.JobStatusRunning, mapStatus("in_progress"))
	assert.Equal(t, model.JobStatusRunning, mapStatus("finalizing"))
	assert.Equal(t, model.JobStatusCompleted, mapStatus("completed"))
	assert.Equal(t, model.JobStatusFailed, mapStatus("failed"))
	assert.Equal(t, model.JobStatusExpired, mapStatus("expired"))
	assert.Equal(t, model.JobStatusCancelled, mapStatus("cancelled"))
	assert.Equal(t, model.JobStatusRunning, mapStatus("something-new"))
}
