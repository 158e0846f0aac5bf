// Package accounts manages named Google Drive accounts, each owning one OAuth
// client credential bundle, and the binding of project directories to those
// accounts. Credential bundles are treated as opaque capability secrets: this
// package only copies them and checks for their existence.
package accounts

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/gdfetch/internal/atomicfile"
)

// File and directory names shared by the account store and project bindings.
const (
	CredentialsFile = "credentials.json"
	TokenFile       = "token.json"
	DataDirName     = ".drive-data"
	BindingFile     = "config.json"
)

// Permission modes. Bundles and tokens are secrets; binding records are not.
const (
	secretFilePerms = 0o600
	secretDirPerms  = 0o700
	recordFilePerms = 0o644
)

var (
	// ErrUnknownAccount is returned when an operation names an account that
	// has no credential bundle in the store.
	ErrUnknownAccount = errors.New("accounts: unknown account")

	// ErrInvalidName is returned for names that cannot be used as a single
	// directory component.
	ErrInvalidName = errors.New("accounts: invalid account name")
)

// Store is a directory tree of named accounts:
//
//	<root>/<name>/credentials.json
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore returns a Store rooted at root. The directory is created lazily by
// Create, so listing a store that was never written to is not an error.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{root: root, logger: logger}
}

// Root returns the accounts root directory.
func (s *Store) Root() string {
	return s.root
}

// ValidateName reports whether name is usable as an account directory name.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}

	return nil
}

// List returns the names of all accounts holding a credential bundle, sorted.
// Directories without credentials.json are ignored.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("accounts: reading %s: %w", s.root, err)
	}

	// os.ReadDir returns entries sorted by filename.
	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		if s.Exists(e.Name()) {
			names = append(names, e.Name())
		}
	}

	return names, nil
}

// Path returns the directory for the named account. Pure lookup: the account
// need not exist.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether the named account has a credential bundle.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(s.Path(name), CredentialsFile))

	return err == nil && info.Mode().IsRegular()
}

// CredentialsPath returns the path of the account's credential bundle, or
// ("", false) when the account is unknown.
func (s *Store) CredentialsPath(name string) (string, bool) {
	if !s.Exists(name) {
		return "", false
	}

	return filepath.Join(s.Path(name), CredentialsFile), true
}

// TokenPath returns the path where the account-scoped token is cached.
func (s *Store) TokenPath(name string) string {
	return filepath.Join(s.Path(name), TokenFile)
}

// Create registers an account by copying the bundle at bundlePath into the
// store, creating directories as needed. Copy failures are logged with their
// cause and returned.
func (s *Store) Create(name, bundlePath string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	dest := filepath.Join(s.Path(name), CredentialsFile)

	if err := copySecret(bundlePath, dest); err != nil {
		s.logger.Error("creating account failed",
			slog.String("account", name),
			slog.String("source", bundlePath),
			slog.String("error", err.Error()),
		)

		return fmt.Errorf("accounts: creating %q: %w", name, err)
	}

	s.logger.Info("account created",
		slog.String("account", name),
		slog.String("path", dest),
	)

	return nil
}

// copySecret copies src to dst with owner-only permissions.
func copySecret(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading credential bundle: %w", err)
	}

	return atomicfile.WriteFile(dst, data, secretFilePerms, secretDirPerms)
}
