package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/batch"
	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/store"
	"github.com/sells-group/classify-cli/internal/tabular"
	"github.com/sells-group/classify-cli/internal/taxonomy"
	"github.com/sells-group/classify-cli/pkg/zhipu"
)

var (
	classifyInput      string
	classifyTaxonomy   string
	classifyOutput     string
	classifyTextColumn string
	classifyTimeout    time.Duration
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a spreadsheet of records against a taxonomy",
	Long: `Reads free-text records from an XLSX or CSV file, submits one remote
batch job classifying every non-blank record against the taxonomy, and
writes a result table with one row per original input record.

Cancelling (Ctrl-C) stops local polling only; the remote batch job may
keep running and billing on the provider side.

Examples:
  classify-cli classify --input patents.xlsx --taxonomy tools.json --output results.xlsx
  classify-cli classify --input rows.csv --taxonomy tax.yaml --output out.csv --text-column summary`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Zhipu.Key == "" {
			return eris.New("classify: zhipu.key is not configured (set CLASSIFY_ZHIPU_KEY or config.yaml)")
		}

		tree, err := taxonomy.LoadFile(classifyTaxonomy, cfg.Taxonomy.MaxDepth)
		if err != nil {
			return eris.Wrap(err, "classify: load taxonomy")
		}

		textColumn := classifyTextColumn
		if textColumn == "" {
			textColumn = cfg.Input.TextColumn
		}
		records, err := tabular.ReadRecords(classifyInput, textColumn)
		if err != nil {
			return eris.Wrap(err, "classify: read input")
		}
		zap.L().Info("loaded input records", zap.Int("rows", len(records)))

		runLog, err := openRunLog(ctx)
		if err != nil {
			return err
		}
		defer runLog.Close()

		run, err := runLog.CreateRun(ctx, classifyInput, classifyTaxonomy)
		if err != nil {
			return eris.Wrap(err, "classify: create run record")
		}

		table, jobID, runErr := runClassification(ctx, records, tree)

		run.JobID = jobID
		run.TotalRows = len(records)
		if runErr != nil {
			run.Status = model.RunStatusFailed
			run.Error = runErr.Error()
			if err := runLog.FinishRun(ctx, run); err != nil {
				zap.L().Warn("failed to record run failure", zap.Error(err))
			}
			return runErr
		}

		if err := tabular.WriteResults(classifyOutput, table); err != nil {
			return eris.Wrap(err, "classify: write output")
		}

		counts := table.Counts()
		run.Status = model.RunStatusCompleted
		run.Sent = len(records) - counts[model.RowSkipped]
		run.Skipped = counts[model.RowSkipped]
		run.Missing = counts[model.RowMissing]
		run.ParseErrors = counts[model.RowParseError]
		if err := runLog.FinishRun(ctx, run); err != nil {
			zap.L().Warn("failed to record run completion", zap.Error(err))
		}

		zap.L().Info("classification complete",
			zap.String("output", classifyOutput),
			zap.Int("rows", len(table)),
			zap.Int("ok", counts[model.RowOK]),
			zap.Int("skipped", counts[model.RowSkipped]),
			zap.Int("missing", counts[model.RowMissing]),
			zap.Int("parse_errors", counts[model.RowParseError]),
		)
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyInput, "input", "", "input XLSX/CSV file (required)")
	classifyCmd.Flags().StringVar(&classifyTaxonomy, "taxonomy", "", "taxonomy JSON/YAML file (required)")
	classifyCmd.Flags().StringVar(&classifyOutput, "output", "", "output XLSX/CSV file (required)")
	classifyCmd.Flags().StringVar(&classifyTextColumn, "text-column", "", "header of the free-text column (default from config)")
	classifyCmd.Flags().DurationVar(&classifyTimeout, "timeout", 0, "overall batch job deadline (default from config)")
	_ = classifyCmd.MarkFlagRequired("input")
	_ = classifyCmd.MarkFlagRequired("taxonomy")
	_ = classifyCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(classifyCmd)
}

// runClassification builds the request batch, drives the remote job, and
// reconciles its output. Returns the result table and the remote job ID
// (empty when nothing was submitted).
func runClassification(ctx context.Context, records []model.InputRecord, tree *taxonomy.Tree) (model.ResultTable, string, error) {
	reqBatch, err := batch.BuildRequests(records, tree, batch.ModelConfig{
		Name:        cfg.Zhipu.Model,
		Temperature: cfg.Zhipu.Temperature,
	})
	if err != nil {
		return nil, "", eris.Wrap(err, "classify: build requests")
	}

	// Every record blank: nothing to submit, but the result table still
	// carries one skipped row per record.
	if reqBatch.Lines == 0 {
		zap.L().Warn("no non-blank records to classify")
		return batch.Reconcile(reqBatch.Index, nil, records), "", nil
	}

	client := zhipu.NewClient(cfg.Zhipu.Key,
		zhipu.WithBaseURL(cfg.Zhipu.BaseURL),
		zhipu.WithRateLimit(cfg.Zhipu.RateLimitRPS),
	)

	timeout := classifyTimeout
	if timeout <= 0 {
		timeout = time.Duration(cfg.Batch.TimeoutMins) * time.Minute
	}
	orch := batch.NewOrchestrator(client, batch.Config{
		PollInterval: time.Duration(cfg.Batch.PollIntervalSecs) * time.Second,
		Timeout:      timeout,
	})

	job, err := orch.Submit(ctx, reqBatch.Payload)
	if err != nil {
		return nil, "", err
	}

	rawLines, err := orch.Await(ctx, job)
	if err != nil {
		return nil, job.JobID, err
	}

	results := batch.ParseResultLines(ctx, rawLines)
	return batch.Reconcile(reqBatch.Index, results, records), job.JobID, nil
}

func openRunLog(ctx context.Context) (store.Store, error) {
	s, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "classify: open run log")
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, eris.Wrap(err, "classify: migrate run log")
	}
	return s, nil
}
