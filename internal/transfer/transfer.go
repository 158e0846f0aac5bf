// Package transfer downloads Drive files to a local directory. Workspace
// documents are exported through an export-format mapping, other files are
// downloaded raw, and folders are skipped. Every file yields a Result so
// callers can tell failures from skips.
package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/tonimelisma/gdfetch/internal/atomicfile"
	"github.com/tonimelisma/gdfetch/internal/exportfmt"
	"github.com/tonimelisma/gdfetch/internal/gdrive"
)

// Output file permissions.
const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// ErrChecksumMismatch is returned when a raw download does not match the
// MD5 checksum Drive reported for it.
var ErrChecksumMismatch = errors.New("transfer: checksum mismatch")

// Drive is the subset of the Drive client the orchestrator needs.
type Drive interface {
	Get(ctx context.Context, id string) (gdrive.File, error)
	Export(ctx context.Context, id, mime string) (io.ReadCloser, error)
	Download(ctx context.Context, id string) (io.ReadCloser, error)
}

// Status is the outcome of one transfer.
type Status string

// Transfer outcomes.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result describes what happened to one input.
type Result struct {
	Input  string // URL or ID as given; empty for listed files
	File   gdrive.File
	Status Status
	Path   string // local path written, set on success
	Bytes  int64
	Err    error // set on failure
}

// Summary aggregates a batch.
type Summary struct {
	Results      []Result
	Succeeded    int
	Total        int
	Files        []gdrive.File // succeeded files in transfer order
	ManifestPath string        // empty when nothing succeeded
}

// ProgressFunc reports download progress of one file.
type ProgressFunc func(f gdrive.File, done, total int64)

// ResultFunc observes each result as soon as its file is done.
type ResultFunc func(Result)

// Options configures an Orchestrator.
type Options struct {
	OutputDir       string
	Mapping         exportfmt.Mapping
	VerifyChecksums bool
	Logger          *slog.Logger
	Progress        ProgressFunc
	OnResult        ResultFunc
}

// Orchestrator runs transfers sequentially against a Drive.
type Orchestrator struct {
	drive    Drive
	outDir   string
	mapping  exportfmt.Mapping
	verify   bool
	logger   *slog.Logger
	progress ProgressFunc
	onResult ResultFunc
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(drive Drive, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		drive:    drive,
		outDir:   opts.OutputDir,
		mapping:  opts.Mapping,
		verify:   opts.VerifyChecksums,
		logger:   logger,
		progress: opts.Progress,
		onResult: opts.OnResult,
	}
}

// OutputDir returns the directory files are written to.
func (o *Orchestrator) OutputDir() string {
	return o.outDir
}

// FetchMetadata resolves a file ID to its metadata. Errors are logged with
// the ID and returned; callers record the entry as failed and move on.
func (o *Orchestrator) FetchMetadata(ctx context.Context, id string) (gdrive.File, error) {
	f, err := o.drive.Get(ctx, id)
	if err != nil {
		o.logger.Warn("fetching metadata failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)

		return gdrive.File{}, fmt.Errorf("transfer: metadata for %s: %w", id, err)
	}

	return f, nil
}

// Transfer exports or downloads one file into the output directory.
// Nothing is written unless the whole stream was read successfully.
func (o *Orchestrator) Transfer(ctx context.Context, f gdrive.File) Result {
	res := Result{File: f}

	if f.IsFolder() {
		o.logger.Debug("skipping folder", slog.String("id", f.ID), slog.String("name", f.Name))
		res.Status = StatusSkipped

		return res
	}

	name := localName(f.Name, f.ID)

	var (
		rc    io.ReadCloser
		total int64
		err   error
		raw   bool
	)

	if target, ok := o.mapping.Lookup(f.MimeType); ok {
		name = replaceExt(name, target.Extension)
		rc, err = o.drive.Export(ctx, f.ID, target.MIME)
	} else {
		raw = true
		total = f.Size
		rc, err = o.drive.Download(ctx, f.ID)
	}

	if err != nil {
		return o.fail(res, err)
	}

	data, err := gdrive.Drain(rc, total, func(done, total int64) {
		if o.progress != nil {
			o.progress(f, done, total)
		}
	})
	rc.Close()

	if err != nil {
		return o.fail(res, err)
	}

	if raw && o.verify && f.MD5Checksum != "" {
		sum := md5.Sum(data)
		if got := hex.EncodeToString(sum[:]); got != f.MD5Checksum {
			return o.fail(res, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, f.MD5Checksum))
		}
	}

	path := filepath.Join(o.outDir, name)
	if err := atomicfile.WriteFile(path, data, filePerms, dirPerms); err != nil {
		return o.fail(res, err)
	}

	o.logger.Info("transferred file",
		slog.String("id", f.ID),
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.Bool("exported", !raw),
	)

	res.Status = StatusSucceeded
	res.Path = path
	res.Bytes = int64(len(data))

	return res
}

func (o *Orchestrator) fail(res Result, err error) Result {
	o.logger.Warn("transfer failed",
		slog.String("id", res.File.ID),
		slog.String("name", res.File.Name),
		slog.String("error", err.Error()),
	)

	res.Status = StatusFailed
	res.Err = err

	return res
}

// TransferMany resolves each input (URL or ID), fetches its metadata and
// transfers it. Inputs whose metadata cannot be fetched count as failed.
//
// Canceling ctx stops the batch between files: the file in flight runs to
// completion and no further file is started.
func (o *Orchestrator) TransferMany(ctx context.Context, inputs []string) (*Summary, error) {
	results := make([]Result, 0, len(inputs))
	fileCtx := context.WithoutCancel(ctx)

	for _, input := range inputs {
		if ctx.Err() != nil {
			break
		}

		id := ResolveID(input)

		var res Result

		if f, err := o.FetchMetadata(fileCtx, id); err != nil {
			res = Result{File: gdrive.File{ID: id}, Status: StatusFailed, Err: err}
		} else {
			res = o.Transfer(fileCtx, f)
		}

		res.Input = input
		results = o.record(results, res)
	}

	return o.finish(ctx, results, len(inputs))
}

// TransferFiles transfers already-listed files. Cancellation behaves as in
// TransferMany.
func (o *Orchestrator) TransferFiles(ctx context.Context, files []gdrive.File) (*Summary, error) {
	results := make([]Result, 0, len(files))
	fileCtx := context.WithoutCancel(ctx)

	for _, f := range files {
		if ctx.Err() != nil {
			break
		}

		results = o.record(results, o.Transfer(fileCtx, f))
	}

	return o.finish(ctx, results, len(files))
}

func (o *Orchestrator) record(results []Result, res Result) []Result {
	if o.onResult != nil {
		o.onResult(res)
	}

	return append(results, res)
}

// finish aggregates results and writes the manifest when anything succeeded.
// A canceled context still gets a manifest for what completed.
func (o *Orchestrator) finish(ctx context.Context, results []Result, total int) (*Summary, error) {
	s := &Summary{Results: results, Total: total}

	for _, r := range results {
		if r.Status == StatusSucceeded {
			s.Succeeded++
			s.Files = append(s.Files, r.File)
		}
	}

	if len(s.Files) > 0 {
		path, err := WriteManifest(o.outDir, s.Files)
		if err != nil {
			return s, err
		}

		s.ManifestPath = path
	}

	if err := ctx.Err(); err != nil {
		return s, fmt.Errorf("transfer: interrupted after %d of %d: %w", len(results), total, err)
	}

	return s, nil
}
