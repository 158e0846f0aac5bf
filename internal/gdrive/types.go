package gdrive

import (
	"time"

	"golang.org/x/text/unicode/norm"
	"google.golang.org/api/drive/v3"
)

// FolderMIME is the MIME type Drive reports for folders.
const FolderMIME = "application/vnd.google-apps.folder"

// File is the normalized metadata of a remote file.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Size         int64     `json:"size,omitempty"`
	Parents      []string  `json:"parents,omitempty"`
	MD5Checksum  string    `json:"md5Checksum,omitempty"`
}

// IsFolder reports whether the file is a Drive folder.
func (f File) IsFolder() bool {
	return f.MimeType == FolderMIME
}

// fileFields is the partial-response selector for a single file.
const fileFields = "id, name, mimeType, modifiedTime, size, parents, md5Checksum"

// fromDrive converts an API file resource. Names are NFC-normalized because
// Drive preserves whatever normalization the uploader's OS used.
func fromDrive(f *drive.File) File {
	out := File{
		ID:          f.Id,
		Name:        norm.NFC.String(f.Name),
		MimeType:    f.MimeType,
		Size:        f.Size,
		Parents:     f.Parents,
		MD5Checksum: f.Md5Checksum,
	}

	// An unparseable timestamp leaves the zero time; the manifest prints it
	// as unknown and sorts it last.
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		out.ModifiedTime = t.UTC()
	}

	return out
}
