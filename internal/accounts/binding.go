package accounts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tonimelisma/gdfetch/internal/atomicfile"
	"github.com/tonimelisma/gdfetch/internal/tokenfile"
)

// Binding is the record persisted in <project>/.drive-data/config.json.
type Binding struct {
	AccountName string `json:"account_name"`
	AccountsDir string `json:"accounts_dir"`
}

// DataDir returns the project-local data directory.
func DataDir(projectDir string) string {
	return filepath.Join(projectDir, DataDirName)
}

// Bind associates projectDir with the named account: it copies the account's
// credential bundle into the project's data directory and writes the binding
// record. Re-binding overwrites the previous record. When the account changes,
// the cached project token is removed because it belongs to the old client.
func (s *Store) Bind(name, projectDir string) error {
	src, ok := s.CredentialsPath(name)
	if !ok {
		s.logger.Warn("cannot bind project to unknown account",
			slog.String("account", name),
			slog.String("project", projectDir),
		)

		return fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}

	dataDir := DataDir(projectDir)

	if err := copySecret(src, filepath.Join(dataDir, CredentialsFile)); err != nil {
		return fmt.Errorf("accounts: binding %s: %w", projectDir, err)
	}

	if prev, bound := ReadBinding(projectDir); !bound || prev.AccountName != name {
		removed, err := tokenfile.Remove(filepath.Join(dataDir, TokenFile))
		if err != nil {
			return fmt.Errorf("accounts: binding %s: %w", projectDir, err)
		}

		if removed {
			s.logger.Info("removed token of previous binding", slog.String("project", projectDir))
		}
	}

	data, err := json.MarshalIndent(Binding{AccountName: name, AccountsDir: s.root}, "", "  ")
	if err != nil {
		return fmt.Errorf("accounts: encoding binding: %w", err)
	}

	if err := atomicfile.WriteFile(filepath.Join(dataDir, BindingFile), data, recordFilePerms, secretDirPerms); err != nil {
		return fmt.Errorf("accounts: writing binding: %w", err)
	}

	s.logger.Info("project bound",
		slog.String("account", name),
		slog.String("project", projectDir),
	)

	return nil
}

// ReadBinding reads the project's binding record. Returns false when the
// record is missing, unreadable, malformed, or names no account.
func ReadBinding(projectDir string) (Binding, bool) {
	data, err := os.ReadFile(filepath.Join(DataDir(projectDir), BindingFile))
	if err != nil {
		return Binding{}, false
	}

	var b Binding
	if err := json.Unmarshal(data, &b); err != nil {
		return Binding{}, false
	}

	if b.AccountName == "" {
		return Binding{}, false
	}

	return b, true
}

// CurrentAccount returns the account bound to projectDir, or ("", false).
// Never returns an error: a broken record reads as "not bound".
func CurrentAccount(projectDir string) (string, bool) {
	b, ok := ReadBinding(projectDir)
	if !ok {
		return "", false
	}

	return b.AccountName, true
}
