package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/gdfetch/internal/exportfmt"
	"github.com/tonimelisma/gdfetch/internal/gdrive"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDrive serves metadata and content from maps.
type fakeDrive struct {
	files    map[string]gdrive.File
	content  map[string]string
	getErr   map[string]error
	fetchErr map[string]error

	exports []string // "id:mime" for every Export call
}

func newFakeDrive(files ...gdrive.File) *fakeDrive {
	d := &fakeDrive{
		files:    map[string]gdrive.File{},
		content:  map[string]string{},
		getErr:   map[string]error{},
		fetchErr: map[string]error{},
	}

	for _, f := range files {
		d.files[f.ID] = f
	}

	return d
}

func (d *fakeDrive) Get(_ context.Context, id string) (gdrive.File, error) {
	if err := d.getErr[id]; err != nil {
		return gdrive.File{}, err
	}

	f, ok := d.files[id]
	if !ok {
		return gdrive.File{}, &gdrive.APIError{Op: "get", StatusCode: 404, Message: "not found", Err: gdrive.ErrNotFound}
	}

	return f, nil
}

func (d *fakeDrive) Export(ctx context.Context, id, mime string) (io.ReadCloser, error) {
	d.exports = append(d.exports, id+":"+mime)
	return d.open(ctx, id)
}

func (d *fakeDrive) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return d.open(ctx, id)
}

func (d *fakeDrive) open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := d.fetchErr[id]; err != nil {
		return nil, err
	}

	return io.NopCloser(&ctxReader{ctx: ctx, r: strings.NewReader(d.content[id])}), nil
}

// ctxReader fails reads once ctx is done, like an HTTP response body.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}

func newTestOrchestrator(t *testing.T, d Drive, preset string) *Orchestrator {
	t.Helper()

	m, err := exportfmt.Resolve(preset)
	require.NoError(t, err)

	return NewOrchestrator(d, Options{
		OutputDir:       filepath.Join(t.TempDir(), "drive_files"),
		Mapping:         m,
		VerifyChecksums: true,
		Logger:          testLogger(t),
	})
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func TestTransfer_ExportReplacesExtension(t *testing.T) {
	doc := gdrive.File{ID: "d1", Name: "Notes.v2", MimeType: exportfmt.DocumentMIME}
	d := newFakeDrive(doc)
	d.content["d1"] = "# notes"

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)

	res := o.Transfer(context.Background(), doc)
	require.Equal(t, StatusSucceeded, res.Status, res.Err)
	assert.Equal(t, filepath.Join(o.OutputDir(), "Notes.md"), res.Path)
	assert.Equal(t, int64(7), res.Bytes)
	assert.Equal(t, "# notes", readFile(t, res.Path))
	assert.Equal(t, []string{"d1:text/markdown"}, d.exports)
}

func TestTransfer_ExportUsesPresetMIME(t *testing.T) {
	sheet := gdrive.File{ID: "s1", Name: "Budget", MimeType: exportfmt.SpreadsheetMIME}
	d := newFakeDrive(sheet)
	d.content["s1"] = "%PDF"

	o := newTestOrchestrator(t, d, exportfmt.PDF)

	res := o.Transfer(context.Background(), sheet)
	require.Equal(t, StatusSucceeded, res.Status, res.Err)
	assert.Equal(t, "Budget.pdf", filepath.Base(res.Path))
	assert.Equal(t, []string{"s1:application/pdf"}, d.exports)
}

func TestTransfer_RawDownloadKeepsName(t *testing.T) {
	bin := gdrive.File{ID: "b1", Name: "photo.jpg", MimeType: "image/jpeg", Size: 5, MD5Checksum: md5hex("jpeg!")}
	d := newFakeDrive(bin)
	d.content["b1"] = "jpeg!"

	var progress []int64

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)
	o.progress = func(f gdrive.File, done, total int64) {
		assert.Equal(t, "b1", f.ID)
		assert.Equal(t, int64(5), total)
		progress = append(progress, done)
	}

	res := o.Transfer(context.Background(), bin)
	require.Equal(t, StatusSucceeded, res.Status, res.Err)
	assert.Equal(t, "photo.jpg", filepath.Base(res.Path))
	assert.Equal(t, "jpeg!", readFile(t, res.Path))
	assert.Equal(t, []int64{5}, progress)
	assert.Empty(t, d.exports)
}

func TestTransfer_ChecksumMismatchWritesNothing(t *testing.T) {
	bin := gdrive.File{ID: "b1", Name: "data.bin", MimeType: "application/octet-stream", MD5Checksum: md5hex("expected")}
	d := newFakeDrive(bin)
	d.content["b1"] = "corrupted"

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)

	res := o.Transfer(context.Background(), bin)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrChecksumMismatch)
	assert.NoFileExists(t, filepath.Join(o.OutputDir(), "data.bin"))
}

func TestTransfer_ChecksumIgnoredWhenDisabled(t *testing.T) {
	bin := gdrive.File{ID: "b1", Name: "data.bin", MimeType: "application/octet-stream", MD5Checksum: md5hex("expected")}
	d := newFakeDrive(bin)
	d.content["b1"] = "different"

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)
	o.verify = false

	res := o.Transfer(context.Background(), bin)
	assert.Equal(t, StatusSucceeded, res.Status)
}

func TestTransfer_FolderSkippedWithoutIO(t *testing.T) {
	folder := gdrive.File{ID: "f1", Name: "Projects", MimeType: gdrive.FolderMIME}
	d := newFakeDrive(folder)
	d.fetchErr["f1"] = errors.New("must not be called")

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)

	res := o.Transfer(context.Background(), folder)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Path)
	assert.NoDirExists(t, o.OutputDir())
}

func TestTransfer_StreamErrorLeavesNoFile(t *testing.T) {
	bin := gdrive.File{ID: "b1", Name: "a.txt", MimeType: "text/plain"}
	d := newFakeDrive(bin)
	d.fetchErr["b1"] = &gdrive.APIError{Op: "download", StatusCode: 403, Message: "nope", Err: gdrive.ErrForbidden}

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)

	res := o.Transfer(context.Background(), bin)
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, gdrive.ErrForbidden)
	assert.NoFileExists(t, filepath.Join(o.OutputDir(), "a.txt"))
}

func TestTransfer_NameWithSeparatorStaysInside(t *testing.T) {
	bin := gdrive.File{ID: "b1", Name: "../../etc/passwd", MimeType: "text/plain"}
	d := newFakeDrive(bin)
	d.content["b1"] = "x"

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)

	res := o.Transfer(context.Background(), bin)
	require.Equal(t, StatusSucceeded, res.Status, res.Err)
	assert.Equal(t, o.OutputDir(), filepath.Dir(res.Path))
	assert.Equal(t, ".._.._etc_passwd", filepath.Base(res.Path))
}

func TestTransferMany_AggregatesAndWritesManifest(t *testing.T) {
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := gdrive.File{ID: "OLD1", Name: "old.txt", MimeType: "text/plain", ModifiedTime: t2}
	newer := gdrive.File{ID: "NEW1", Name: "New Doc", MimeType: exportfmt.DocumentMIME, ModifiedTime: t1}
	folder := gdrive.File{ID: "DIR1", Name: "dir", MimeType: gdrive.FolderMIME, ModifiedTime: t1}

	d := newFakeDrive(older, newer, folder)
	d.content["OLD1"] = "old"
	d.content["NEW1"] = "new"

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)

	inputs := []string{
		"https://drive.google.com/file/d/OLD1/view",
		"https://drive.google.com/open?id=NEW1",
		"DIR1",
		"MISSING",
	}

	s, err := o.TransferMany(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	require.Len(t, s.Results, 4)
	assert.Equal(t, StatusSucceeded, s.Results[0].Status)
	assert.Equal(t, inputs[0], s.Results[0].Input)
	assert.Equal(t, StatusSucceeded, s.Results[1].Status)
	assert.Equal(t, StatusSkipped, s.Results[2].Status)
	assert.Equal(t, StatusFailed, s.Results[3].Status)
	assert.ErrorIs(t, s.Results[3].Err, gdrive.ErrNotFound)
	assert.Equal(t, "MISSING", s.Results[3].File.ID)

	require.Equal(t, filepath.Join(o.OutputDir(), ManifestName), s.ManifestPath)
	manifest := readFile(t, s.ManifestPath)

	assert.True(t, strings.HasPrefix(manifest, "# Downloaded Files Metadata\n\n"))
	assert.Less(t, strings.Index(manifest, "## New Doc"), strings.Index(manifest, "## old.txt"))
	assert.NotContains(t, manifest, "## dir")
	assert.Contains(t, manifest, "- **Last Modified**: 2024-06-01T00:00:00.000Z\n")
	assert.Contains(t, manifest, "- **File ID**: OLD1\n")
	assert.Contains(t, manifest, "- **Type**: text/plain\n")
}

func TestTransferMany_NothingSucceededNoManifest(t *testing.T) {
	o := newTestOrchestrator(t, newFakeDrive(), exportfmt.TextOnly)

	s, err := o.TransferMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Succeeded)
	assert.Equal(t, 2, s.Total)
	assert.Empty(t, s.ManifestPath)
	assert.NoFileExists(t, filepath.Join(o.OutputDir(), ManifestName))
}

func TestTransferFiles_CanceledContext(t *testing.T) {
	f := gdrive.File{ID: "b1", Name: "a.txt", MimeType: "text/plain"}
	d := newFakeDrive(f)
	d.content["b1"] = "x"

	o := newTestOrchestrator(t, d, exportfmt.TextOnly)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := o.TransferFiles(ctx, []gdrive.File{f})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Results)
	assert.Equal(t, 1, s.Total)
}

func TestTransferFiles(t *testing.T) {
	a := gdrive.File{ID: "a", Name: "a.txt", MimeType: "text/plain"}
	b := gdrive.File{ID: "b", Name: "Slides", MimeType: exportfmt.PresentationMIME}

	d := newFakeDrive(a, b)
	d.content["a"] = "A"
	d.content["b"] = "B"

	o := newTestOrchestrator(t, d, exportfmt.FullFidelity)

	s, err := o.TransferFiles(context.Background(), []gdrive.File{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, []gdrive.File{a, b}, s.Files)
	assert.FileExists(t, filepath.Join(o.OutputDir(), "Slides.pptx"))
}

func TestTransferFiles_CancelFinishesFileInFlight(t *testing.T) {
	a := gdrive.File{ID: "a", Name: "a.bin", MimeType: "application/octet-stream", Size: 600 * 1024}
	b := gdrive.File{ID: "b", Name: "b.bin", MimeType: "application/octet-stream"}

	d := newFakeDrive(a, b)
	d.content["a"] = strings.Repeat("x", 600*1024)
	d.content["b"] = "B"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := exportfmt.Resolve(exportfmt.TextOnly)
	require.NoError(t, err)

	o := NewOrchestrator(d, Options{
		OutputDir: filepath.Join(t.TempDir(), "drive_files"),
		Mapping:   m,
		Logger:    testLogger(t),
		// The interrupt arrives while the first file is streaming.
		Progress: func(gdrive.File, int64, int64) { cancel() },
	})

	s, err := o.TransferFiles(ctx, []gdrive.File{a, b})
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, s.Results, 1)
	assert.Equal(t, StatusSucceeded, s.Results[0].Status)
	assert.Equal(t, int64(600*1024), s.Results[0].Bytes)
	assert.FileExists(t, filepath.Join(o.OutputDir(), "a.bin"))
	assert.NoFileExists(t, filepath.Join(o.OutputDir(), "b.bin"))
	assert.FileExists(t, s.ManifestPath)
}

func TestTransferMany_ReportsEachResult(t *testing.T) {
	a := gdrive.File{ID: "a", Name: "a.txt", MimeType: "text/plain"}
	d := newFakeDrive(a)
	d.content["a"] = "A"

	m, err := exportfmt.Resolve(exportfmt.TextOnly)
	require.NoError(t, err)

	var seen []Result

	o := NewOrchestrator(d, Options{
		OutputDir: filepath.Join(t.TempDir(), "drive_files"),
		Mapping:   m,
		Logger:    testLogger(t),
		OnResult:  func(r Result) { seen = append(seen, r) },
	})

	s, err := o.TransferMany(context.Background(), []string{"a", "missing"})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, s.Results, seen)
	assert.Equal(t, StatusSucceeded, seen[0].Status)
	assert.Equal(t, "missing", seen[1].Input)
	assert.Equal(t, StatusFailed, seen[1].Status)
}
