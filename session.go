package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/tonimelisma/gdfetch/internal/accounts"
	"github.com/tonimelisma/gdfetch/internal/auth"
	"github.com/tonimelisma/gdfetch/internal/exportfmt"
	"github.com/tonimelisma/gdfetch/internal/gdrive"
	"github.com/tonimelisma/gdfetch/internal/ledger"
	"github.com/tonimelisma/gdfetch/internal/transfer"
)

// driveClientOptions are appended to the Drive client options of every
// session. Tests use it to point the client at a local server.
var driveClientOptions []option.ClientOption

// driveSession bundles everything a transfer command needs: the credential
// scope it runs under, an authenticated Drive client and an orchestrator.
type driveSession struct {
	scope   accounts.Scope
	mapping exportfmt.Mapping
	client  *gdrive.Client
	orch    *transfer.Orchestrator
	logger  *slog.Logger

	// Open history run, if any. Results are recorded as files finish.
	ledger *ledger.Ledger
	runID  string
}

// newBrowserAuthorizer returns the interactive consent flow. Output of the
// launched browser goes to stderr so stdout stays machine-readable.
func newBrowserAuthorizer(logger *slog.Logger) *auth.BrowserAuthorizer {
	browser.Stdout = os.Stderr

	return &auth.BrowserAuthorizer{
		OpenURL: browser.OpenURL,
		Out:     os.Stderr,
		Logger:  logger,
	}
}

// newDriveSession resolves the credential scope, obtains a token (running the
// browser flow if needed) and builds the Drive client.
func newDriveSession(ctx context.Context, logger *slog.Logger) (*driveSession, error) {
	store := accounts.NewStore(resolvedCfg.AccountsDir, logger)

	scope, err := accounts.ResolveScope(store, flagProject, flagAccount)
	if err != nil {
		return nil, err
	}

	logger.Debug("resolved credential scope",
		slog.String("scope", string(scope.Kind)),
		slog.String("account", scope.Account),
		slog.String("credentials", scope.CredentialsPath),
	)

	mapping, err := exportfmt.Resolve(resolvedCfg.Format)
	if err != nil {
		return nil, err
	}

	authn := &auth.Authenticator{
		CredentialsPath: scope.CredentialsPath,
		TokenPath:       scope.TokenPath,
		Meta:            scope.Meta(),
		Authorizer:      newBrowserAuthorizer(logger),
		Logger:          logger,
	}

	ts, err := authn.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(ctx, ts)),
		option.WithUserAgent("gdfetch/" + version),
	}, driveClientOptions...)

	client, err := gdrive.NewClient(ctx, logger, opts...)
	if err != nil {
		return nil, err
	}

	s := &driveSession{
		scope:   scope,
		mapping: mapping,
		client:  client,
		logger:  logger,
	}

	s.orch = transfer.NewOrchestrator(client, transfer.Options{
		OutputDir:       resolvedCfg.OutputDir,
		Mapping:         mapping,
		VerifyChecksums: resolvedCfg.VerifyChecksums,
		Logger:          logger,
		Progress:        newProgressReporter().report,
		OnResult:        s.recordResult,
	})

	return s, nil
}

// beginHistory opens the history ledger and starts a run. History is an
// audit aid: any failure is logged and the command carries on without it.
func (s *driveSession) beginHistory(ctx context.Context, command string) {
	if !resolvedCfg.History || resolvedCfg.HistoryPath == "" {
		return
	}

	l, err := ledger.Open(ctx, resolvedCfg.HistoryPath, s.logger)
	if err != nil {
		s.logger.Warn("transfer history unavailable", slog.String("error", err.Error()))
		return
	}

	runID, err := l.BeginRun(ctx, ledger.RunInfo{
		Command:   command,
		Scope:     string(s.scope.Kind),
		Account:   s.scope.Account,
		Preset:    s.mapping.Name(),
		OutputDir: s.orch.OutputDir(),
	})
	if err != nil {
		s.logger.Warn("recording run failed", slog.String("error", err.Error()))
		l.Close()

		return
	}

	s.ledger, s.runID = l, runID
}

// recordResult stores one finished file in the open history run.
func (s *driveSession) recordResult(res transfer.Result) {
	if s.ledger == nil {
		return
	}

	if err := s.ledger.Record(context.Background(), s.runID, res); err != nil {
		s.logger.Warn("recording transfer result failed",
			slog.String("id", res.File.ID),
			slog.String("error", err.Error()),
		)
	}
}

// finishHistory closes the run with its outcome and closes the ledger. It
// runs even after cancellation so interrupted runs are marked as such.
func (s *driveSession) finishHistory(ctx context.Context, summary *transfer.Summary, batchErr error) {
	if s.ledger == nil {
		return
	}

	defer func() {
		s.ledger.Close()
		s.ledger = nil
	}()

	err := s.ledger.FinishRun(context.WithoutCancel(ctx), s.runID, ledger.Outcome{
		Succeeded:   summary.Succeeded,
		Total:       summary.Total,
		Interrupted: errors.Is(batchErr, context.Canceled),
	})
	if err != nil {
		s.logger.Warn("finishing history run failed", slog.String("error", err.Error()))
	}
}

// transferOutput is the JSON schema for fetch/download --json.
type transferOutput struct {
	RunID     string           `json:"run_id,omitempty"`
	Succeeded int              `json:"succeeded"`
	Total     int              `json:"total"`
	OutputDir string           `json:"output_dir"`
	Manifest  string           `json:"manifest,omitempty"`
	Results   []transferResult `json:"results"`
}

type transferResult struct {
	Input    string `json:"input,omitempty"`
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Status   string `json:"status"`
	Path     string `json:"path,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newTransferOutput(runID, outDir string, s *transfer.Summary) transferOutput {
	out := transferOutput{
		RunID:     runID,
		Succeeded: s.Succeeded,
		Total:     s.Total,
		OutputDir: outDir,
		Manifest:  s.ManifestPath,
		Results:   make([]transferResult, 0, len(s.Results)),
	}

	for _, r := range s.Results {
		tr := transferResult{
			Input:    r.Input,
			ID:       r.File.ID,
			Name:     r.File.Name,
			MimeType: r.File.MimeType,
			Status:   string(r.Status),
			Path:     r.Path,
			Bytes:    r.Bytes,
		}
		if r.Err != nil {
			tr.Error = r.Err.Error()
		}

		out.Results = append(out.Results, tr)
	}

	return out
}

// runBatch executes a transfer batch, records it, and reports the outcome
// (JSON on w with --json). It returns an error when any file failed; skipped
// folders do not count.
func (s *driveSession) runBatch(
	ctx context.Context,
	w io.Writer,
	command string,
	batch func(context.Context) (*transfer.Summary, error),
) error {
	s.beginHistory(ctx, command)

	statusf("Export format: %s\n", s.mapping.Name())

	runID := s.runID

	summary, batchErr := batch(ctx)
	if summary == nil {
		s.finishHistory(ctx, &transfer.Summary{}, batchErr)
		return batchErr
	}

	s.finishHistory(ctx, summary, batchErr)

	if flagJSON {
		if err := printJSON(w, newTransferOutput(runID, s.orch.OutputDir(), summary)); err != nil {
			return err
		}
	} else {
		reportSummary(summary, s.orch.OutputDir())
	}

	if batchErr != nil {
		return batchErr
	}

	if failed := countFailed(summary); failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, summary.Total)
	}

	return nil
}

func countFailed(s *transfer.Summary) int {
	n := 0

	for _, r := range s.Results {
		if r.Status == transfer.StatusFailed {
			n++
		}
	}

	return n
}

// reportSummary prints per-file outcomes and totals to stderr.
func reportSummary(s *transfer.Summary, outDir string) {
	for _, r := range s.Results {
		label := r.File.Name
		if label == "" {
			label = r.File.ID
		}

		switch r.Status {
		case transfer.StatusSucceeded:
			statusf("Downloaded %s -> %s (%s)\n", label, r.Path, formatSize(r.Bytes))
		case transfer.StatusSkipped:
			statusf("Skipped %s (folder)\n", label)
		case transfer.StatusFailed:
			statusf("Failed %s: %v\n", label, r.Err)
		}
	}

	statusf("Successfully downloaded %d/%d files\n", s.Succeeded, s.Total)

	if s.Succeeded > 0 {
		abs, err := filepath.Abs(outDir)
		if err != nil {
			abs = outDir
		}

		statusf("Files saved to: %s\n", abs)
	}

	if s.ManifestPath != "" {
		statusf("Metadata saved to: %s\n", s.ManifestPath)
	}
}

// progressReporter prints download progress in 25% steps per file.
type progressReporter struct {
	lastStep map[string]int64
}

const progressSteps = 4

func newProgressReporter() *progressReporter {
	return &progressReporter{lastStep: make(map[string]int64)}
}

func (p *progressReporter) report(f gdrive.File, done, total int64) {
	if total <= 0 {
		return
	}

	step := done * progressSteps / total
	if step == 0 {
		return
	}

	if last, ok := p.lastStep[f.ID]; ok && step <= last {
		return
	}

	p.lastStep[f.ID] = step
	statusf("  %s: %d%% (%s of %s)\n", f.Name, step*100/progressSteps, formatSize(done), formatSize(total))
}
