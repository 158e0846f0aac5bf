package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdfetch/internal/exportfmt"
	"github.com/tonimelisma/gdfetch/internal/gdrive"
	"github.com/tonimelisma/gdfetch/internal/selector"
	"github.com/tonimelisma/gdfetch/internal/transfer"
)

// presetHelp lists the export presets for command help text.
func presetHelp() string {
	var b strings.Builder

	b.WriteString("Export format presets:\n")

	for _, p := range exportfmt.Presets() {
		fmt.Fprintf(&b, "  %-15s %s (%s)\n", p.Name, p.Description, strings.Join(presetExtensions(p.Name), " "))
	}

	return b.String()
}

// presetExtensions returns the distinct file extensions a preset produces,
// in the order of the Workspace types it covers.
func presetExtensions(name string) []string {
	m, err := exportfmt.Resolve(name)
	if err != nil {
		return nil
	}

	var exts []string

	for _, mime := range m.Types() {
		t, _ := m.Lookup(mime)
		if !slices.Contains(exts, t.Extension) {
			exts = append(exts, t.Extension)
		}
	}

	return exts
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "",
		fmt.Sprintf("export format preset: %s (default %q)", strings.Join(exportfmt.Names(), ", "), exportfmt.TextOnly))
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "List Drive files and download the ones you pick",
		Long: `List files in Google Drive, choose some from a numbered listing, and
download them. Google Docs, Sheets and Slides are exported using the
selected preset.

` + presetHelp() + `
Without --select, fetch prompts on the terminal. --select takes the same
input as the prompt: "all" or comma-separated numbers such as "1,3,5".`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runFetch,
	}

	addFormatFlag(cmd)
	cmd.Flags().String("folder", "", "only list files directly inside this folder ID")
	cmd.Flags().Int("limit", 0, "maximum number of files to list (default from config list_limit)")
	cmd.Flags().String("select", "", "selection to apply without prompting (\"all\" or \"1,3,5\")")

	return cmd
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <url-or-id>...",
		Short: "Download Drive files by URL or file ID",
		Long: `Download specific files by Drive URL or bare file ID. URLs containing
/d/<id> or id=<id> are recognized; anything else is used as an ID.

` + presetHelp(),
		Example: `  gdfetch download "https://docs.google.com/document/d/ABC123/edit"
  gdfetch download --format pdf FILE_ID1 FILE_ID2`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: runDownload,
	}

	addFormatFlag(cmd)

	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	folder, _ := cmd.Flags().GetString("folder")
	limit, _ := cmd.Flags().GetInt("limit")
	selectExpr, _ := cmd.Flags().GetString("select")
	interactive := !cmd.Flags().Changed("select")

	if limit < 0 {
		return &usageError{err: fmt.Errorf("--limit must not be negative, got %d", limit)}
	}

	if limit == 0 {
		limit = resolvedCfg.ListLimit
	}

	if interactive && !isTerminal(os.Stdin) {
		return errors.New("fetch needs an interactive terminal; pass --select to choose files non-interactively")
	}

	logger := buildLogger()
	ctx := shutdownContext(context.Background(), logger)

	sess, err := newDriveSession(ctx, logger)
	if err != nil {
		return err
	}

	statusf("Fetching file list from Google Drive...\n")

	files, err := sess.client.List(ctx, gdrive.ListOptions{
		FolderID: folder,
		Limit:    limit,
		PageSize: resolvedCfg.PageSize,
	})
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	if len(files) == 0 {
		statusf("No files found.\n")
		return nil
	}

	var picked []gdrive.File

	if interactive {
		statusf("Found %d files:\n\n", len(files))

		picked, err = selector.Prompt(os.Stdin, os.Stdout, files)
	} else {
		var idx []int

		idx, err = selector.Parse(selectExpr, len(files))
		picked = selector.Pick(files, idx)
	}

	switch {
	case errors.Is(err, selector.ErrQuit):
		statusf("Exiting...\n")
		return nil
	case errors.Is(err, selector.ErrInvalidSelection) && interactive:
		statusf("Invalid selection: %v\nNo files selected.\n", err)
		return nil
	case err != nil:
		return err
	}

	statusf("\nDownloading %d file(s) to %s/\n", len(picked), resolvedCfg.OutputDir)

	return sess.runBatch(ctx, cmd.OutOrStdout(), "fetch", func(ctx context.Context) (*transfer.Summary, error) {
		return sess.orch.TransferFiles(ctx, picked)
	})
}

func runDownload(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := shutdownContext(context.Background(), logger)

	sess, err := newDriveSession(ctx, logger)
	if err != nil {
		return err
	}

	statusf("Downloading %d file(s) to %s/\n", len(args), resolvedCfg.OutputDir)

	return sess.runBatch(ctx, cmd.OutOrStdout(), "download", func(ctx context.Context) (*transfer.Summary, error) {
		return sess.orch.TransferMany(ctx, args)
	})
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
