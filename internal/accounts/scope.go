package accounts

import (
	"fmt"
	"os"
	"path/filepath"
)

// ScopeKind names where a run's credentials and token live.
type ScopeKind string

// Credential scopes, in resolution order.
const (
	ScopeAccount ScopeKind = "account" // --account NAME: straight from the store
	ScopeProject ScopeKind = "project" // <project>/.drive-data
	ScopeGlobal  ScopeKind = "global"  // ./credentials.json, ./token.json
)

// Scope identifies the credential bundle and token file used by one run.
type Scope struct {
	Kind            ScopeKind
	Account         string // empty for global scope and unbound projects
	CredentialsPath string
	TokenPath       string
}

// Meta returns the token-file metadata recorded for this scope.
func (sc Scope) Meta() map[string]string {
	meta := map[string]string{"scope": string(sc.Kind)}
	if sc.Account != "" {
		meta["account"] = sc.Account
	}

	return meta
}

// ResolveScope picks the credential scope for a run. An explicit account
// wins; otherwise a project with a bound data directory; otherwise the
// current working directory.
func ResolveScope(store *Store, projectDir, account string) (Scope, error) {
	if account != "" {
		creds, ok := store.CredentialsPath(account)
		if !ok {
			return Scope{}, fmt.Errorf("%w: %q", ErrUnknownAccount, account)
		}

		return Scope{
			Kind:            ScopeAccount,
			Account:         account,
			CredentialsPath: creds,
			TokenPath:       store.TokenPath(account),
		}, nil
	}

	dataDir := DataDir(projectDir)
	if _, err := os.Stat(filepath.Join(dataDir, CredentialsFile)); err == nil {
		name, _ := CurrentAccount(projectDir)

		return Scope{
			Kind:            ScopeProject,
			Account:         name,
			CredentialsPath: filepath.Join(dataDir, CredentialsFile),
			TokenPath:       filepath.Join(dataDir, TokenFile),
		}, nil
	}

	return Scope{
		Kind:            ScopeGlobal,
		CredentialsPath: CredentialsFile,
		TokenPath:       TokenFile,
	}, nil
}
