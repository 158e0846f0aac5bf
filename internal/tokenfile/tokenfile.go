// Package tokenfile handles reading and writing cached OAuth token files.
// A token file stores an oauth2.Token, the OAuth client that issued it (so it
// can be refreshed without the credential bundle) and small metadata
// describing the credential scope (scope kind, account name). It is a leaf
// package imported by auth/ and the CLI.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/gdfetch/internal/atomicfile"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the directory holding a token file.
const DirPerms = 0o700

// Client identifies the OAuth client a token was issued to.
type Client struct {
	ID       string `json:"client_id"`
	Secret   string `json:"client_secret"`
	TokenURL string `json:"token_uri"`
}

// File is the on-disk format for token files.
type File struct {
	Token  *oauth2.Token     `json:"token"`
	Client *Client           `json:"client,omitempty"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// Load reads a saved token file from disk. Returns (nil, nil) if the file
// does not exist. A file that exists is not necessarily valid: the token may
// be expired or revoked, which only the authorization server can tell.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("tokenfile: %s missing token field (re-authorization required)", path)
	}

	if tf.Token.AccessToken == "" && tf.Token.RefreshToken == "" {
		return nil, fmt.Errorf("tokenfile: %s has empty credentials", path)
	}

	if tf.Client != nil && tf.Client.ID == "" {
		tf.Client = nil
	}

	return &tf, nil
}

// Save writes a token file atomically with 0600 permissions. Never logs token
// or client secret values.
func Save(path string, f File) error {
	if f.Token == nil {
		return errors.New("tokenfile: refusing to save nil token")
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	if err := atomicfile.WriteFile(path, data, FilePerms, DirPerms); err != nil {
		return fmt.Errorf("tokenfile: %w", err)
	}

	return nil
}

// Remove deletes the token file at path. A missing file is not an error.
// Returns true if a file was removed.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return true, nil
}
