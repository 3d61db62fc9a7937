// Package store persists a local history of classification runs. The run
// log is informational only: it records what happened for operator
// visibility and is never consulted to resume or retry a batch job.
package store

import (
	"context"

	"github.com/sells-group/classify-cli/internal/model"
)

// Store records run history.
type Store interface {
	CreateRun(ctx context.Context, inputFile, taxonomyFile string) (*model.RunRecord, error)
	FinishRun(ctx context.Context, run *model.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	Close() error
}
