package transfer

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tonimelisma/gdfetch/internal/atomicfile"
	"github.com/tonimelisma/gdfetch/internal/gdrive"
)

// ManifestName is the aggregate metadata file written after a batch.
const ManifestName = "_file_metadata.md"

// driveTimeLayout matches how Drive itself reports modifiedTime, so the
// manifest shows the API's value unchanged.
const driveTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// renderManifest lists files newest first. The sort is stable so files
// with equal modification times keep their transfer order.
func renderManifest(files []gdrive.File) []byte {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b gdrive.File) int {
		return b.ModifiedTime.Compare(a.ModifiedTime)
	})

	var b strings.Builder

	b.WriteString("# Downloaded Files Metadata\n\n")
	b.WriteString("Files are sorted by modification date (most recent first).\n\n")

	for _, f := range sorted {
		modified := "Unknown"
		if !f.ModifiedTime.IsZero() {
			modified = f.ModifiedTime.UTC().Format(driveTimeLayout)
		}

		fmt.Fprintf(&b, "## %s\n", f.Name)
		fmt.Fprintf(&b, "- **Last Modified**: %s\n", modified)
		fmt.Fprintf(&b, "- **File ID**: %s\n", f.ID)
		fmt.Fprintf(&b, "- **Type**: %s\n\n", f.MimeType)
	}

	return []byte(b.String())
}

// WriteManifest writes the manifest for files into dir and returns its path.
func WriteManifest(dir string, files []gdrive.File) (string, error) {
	path := filepath.Join(dir, ManifestName)

	if err := atomicfile.WriteFile(path, renderManifest(files), filePerms, dirPerms); err != nil {
		return "", fmt.Errorf("transfer: writing manifest: %w", err)
	}

	return path, nil
}
