package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/classify-cli/internal/model"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past classification runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		runLog, err := openRunLog(ctx)
		if err != nil {
			return err
		}
		defer runLog.Close()

		runs, err := runLog.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tSTATUS\tINPUT\tJOB\tROWS\tSENT\tSKIPPED\tMISSING\tPARSE_ERRORS")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				run.CreatedAt.Local().Format(time.DateTime),
				formatRunStatus(run),
				run.InputFile,
				run.JobID,
				run.TotalRows, run.Sent, run.Skipped, run.Missing, run.ParseErrors,
			)
		}
		return w.Flush()
	},
}

func formatRunStatus(run model.RunRecord) string {
	if run.Status == model.RunStatusFailed && run.Error != "" {
		msg := run.Error
		if len(msg) > 40 {
			msg = msg[:40] + "..."
		}
		return string(run.Status) + ": " + msg
	}
	return string(run.Status)
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
