package gdrive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Listing defaults.
const (
	DefaultPageSize = 100
	maxPageSize     = 1000
)

// Client wraps a drive/v3 service. Shared drives are always included.
type Client struct {
	svc    *drive.Service
	logger *slog.Logger
}

// NewClient creates a Drive client. Callers pass option.WithHTTPClient with
// an OAuth2-authenticated client; tests add option.WithEndpoint.
func NewClient(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: creating service: %w", err)
	}

	return &Client{svc: svc, logger: logger}, nil
}

// ListOptions controls List.
type ListOptions struct {
	FolderID string // restrict to direct children of this folder
	Limit    int    // maximum number of files returned; 0 means no limit
	PageSize int    // files per request; 0 means DefaultPageSize
}

// listQuery builds the files.list query expression.
func listQuery(folderID string) string {
	q := "trashed = false"
	if folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(folderID))
	}

	return q
}

// escapeQuery escapes a string literal for the Drive query language.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// List returns non-trashed files, following nextPageToken until Limit files
// have been collected or the listing is exhausted.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]File, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pageSize = min(pageSize, maxPageSize)
	q := listQuery(opts.FolderID)

	c.logger.Debug("listing files",
		slog.String("query", q),
		slog.Int("limit", opts.Limit),
		slog.Int("page_size", pageSize),
	)

	var (
		files []File
		token string
		pages int
	)

	for {
		size := pageSize
		if opts.Limit > 0 {
			size = min(size, opts.Limit-len(files))
		}

		call := c.svc.Files.List().
			Q(q).
			PageSize(int64(size)).
			Fields("nextPageToken, files(" + fileFields + ")").
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, wrapErr("listing files", err)
		}

		pages++

		for _, f := range resp.Files {
			files = append(files, fromDrive(f))
		}

		if opts.Limit > 0 && len(files) >= opts.Limit {
			files = files[:opts.Limit]
			break
		}

		if resp.NextPageToken == "" {
			break
		}

		token = resp.NextPageToken
	}

	c.logger.Debug("listed files",
		slog.Int("count", len(files)),
		slog.Int("pages", pages),
	)

	return files, nil
}

// Get fetches the metadata of one file.
func (c *Client) Get(ctx context.Context, id string) (File, error) {
	f, err := c.svc.Files.Get(id).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, wrapErr("getting file "+id, err)
	}

	return fromDrive(f), nil
}

// Export opens a stream of a Workspace document converted to mime.
// The caller must close the returned reader.
func (c *Client) Export(ctx context.Context, id, mime string) (io.ReadCloser, error) {
	c.logger.Debug("exporting file", slog.String("id", id), slog.String("mime", mime))

	resp, err := c.svc.Files.Export(id, mime).Context(ctx).Download()
	if err != nil {
		return nil, wrapErr("exporting file "+id, err)
	}

	return resp.Body, nil
}

// Download opens the raw media stream of a binary file.
// The caller must close the returned reader.
func (c *Client) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	c.logger.Debug("downloading file", slog.String("id", id))

	resp, err := c.svc.Files.Get(id).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, wrapErr("downloading file "+id, err)
	}

	return resp.Body, nil
}
