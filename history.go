package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdfetch/internal/ledger"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent transfer runs, or the files of one run",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "number of runs to show")

	return cmd
}

// historyRun is the JSON schema for `history --json`.
type historyRun struct {
	ID          string `json:"id"`
	Command     string `json:"command"`
	Scope       string `json:"scope"`
	Account     string `json:"account,omitempty"`
	Preset      string `json:"preset"`
	OutputDir   string `json:"output_dir"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	Succeeded   int    `json:"succeeded"`
	Total       int    `json:"total"`
	Interrupted bool   `json:"interrupted"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return &usageError{err: fmt.Errorf("--limit must be at least 1, got %d", limit)}
	}

	path := resolvedCfg.HistoryPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		statusf("No transfer history yet.\n")
		return nil
	}

	logger := buildLogger()
	ctx := context.Background()

	l, err := ledger.Open(ctx, path, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	if len(args) == 1 {
		return printRunResults(cmd, l, args[0])
	}

	runs, err := l.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if flagJSON {
		out := make([]historyRun, 0, len(runs))
		for _, r := range runs {
			hr := historyRun{
				ID: r.ID, Command: r.Command, Scope: r.Scope, Account: r.Account,
				Preset: r.Preset, OutputDir: r.OutputDir,
				StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
				Succeeded: r.Succeeded, Total: r.Total, Interrupted: r.Interrupted,
			}
			if !r.FinishedAt.IsZero() {
				hr.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
			}

			out = append(out, hr)
		}

		return printJSON(cmd.OutOrStdout(), out)
	}

	if len(runs) == 0 {
		statusf("No transfer history yet.\n")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		who := r.Scope
		if r.Account != "" {
			who += ":" + r.Account
		}

		rows = append(rows, []string{r.ID, formatTime(r.StartedAt), r.Command, who, r.Preset, runResult(r)})
	}

	return printTable(cmd.OutOrStdout(), []string{"Run", "Started", "Command", "Scope", "Format", "Result"}, rows)
}

// runResult labels a run's outcome. A run with no finish time was cut short
// without a chance to record it, e.g. by a second Ctrl-C or a crash.
func runResult(r ledger.Run) string {
	switch {
	case r.FinishedAt.IsZero():
		return "incomplete"
	case r.Interrupted:
		return fmt.Sprintf("interrupted (%d/%d)", r.Succeeded, r.Total)
	default:
		return fmt.Sprintf("%d/%d", r.Succeeded, r.Total)
	}
}

func printRunResults(cmd *cobra.Command, l *ledger.Ledger, runID string) error {
	entries, err := l.Results(context.Background(), runID)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return fmt.Errorf("no results recorded for run %q", runID)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), entries)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Path
		if e.Error != "" {
			detail = e.Error
		}

		rows = append(rows, []string{e.FileID, e.Name, string(e.Status), strconv.FormatInt(e.Bytes, 10), detail})
	}

	return printTable(cmd.OutOrStdout(), []string{"File ID", "Name", "Status", "Bytes", "Path / Error"}, rows)
}
