package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/gdfetch/internal/accounts"
	"github.com/tonimelisma/gdfetch/internal/auth"
)

const testBundle = `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://example.com/auth","token_uri":"https://example.com/token"}}`

func writeBundleFile(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(path, []byte(testBundle), 0o600))

	return path
}

func TestListCmd_Empty(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	out, err = runCLI(t, "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCreateSetupListCurrent(t *testing.T) {
	home := testEnv(t)
	bundle := writeBundleFile(t, home)
	project := filepath.Join(home, "project")

	_, err := runCLI(t, "create", "work", bundle)
	require.NoError(t, err)
	_, err = runCLI(t, "create", "personal", bundle)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, "accounts", "work", accounts.CredentialsFile))
	require.NoError(t, err)
	assert.JSONEq(t, testBundle, string(data))

	_, err = runCLI(t, "setup", "work", project)
	require.NoError(t, err)

	out, err := runCLI(t, "--project", project, "list", "--json")
	require.NoError(t, err)

	var listed []accountListing
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Equal(t, []accountListing{
		{Name: "personal", Current: false},
		{Name: "work", Current: true},
	}, listed)

	out, err = runCLI(t, "--project", project, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "personal")
	assert.Contains(t, out, "work")
	assert.Contains(t, out, "*")

	out, err = runCLI(t, "current", project)
	require.NoError(t, err)
	assert.Equal(t, "work\n", out)

	out, err = runCLI(t, "current", project, "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"project":"`+project+`","account":"work","bound":true}`, out)
}

func TestCreateCmd_MissingBundle(t *testing.T) {
	home := testEnv(t)

	_, err := runCLI(t, "create", "work", filepath.Join(home, "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to create account "work"`)

	out, err := runCLI(t, "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestSetupCmd_UnknownAccount(t *testing.T) {
	home := testEnv(t)

	_, err := runCLI(t, "setup", "ghost", filepath.Join(home, "p"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create it first")

	_, err = runCLI(t, "create", "work", writeBundleFile(t, home))
	require.NoError(t, err)

	_, err = runCLI(t, "setup", "ghost", filepath.Join(home, "p"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: work")

	_, statErr := os.Stat(filepath.Join(home, "p", accounts.DataDirName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCurrentCmd_Unbound(t *testing.T) {
	home := testEnv(t)

	out, err := runCLI(t, "current", home, "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"project":"`+home+`","bound":false}`, out)
}

func TestLogoutCmd(t *testing.T) {
	home := testEnv(t)
	project := filepath.Join(home, "project")

	_, err := runCLI(t, "create", "work", writeBundleFile(t, home))
	require.NoError(t, err)
	_, err = runCLI(t, "setup", "work", project)
	require.NoError(t, err)

	tokenPath := filepath.Join(project, accounts.DataDirName, accounts.TokenFile)
	require.NoError(t, os.WriteFile(tokenPath, []byte(`{"token":{"access_token":"a"}}`), 0o600))

	_, err = runCLI(t, "--project", project, "logout")
	require.NoError(t, err)
	assert.NoFileExists(t, tokenPath)

	// Second logout is a no-op.
	_, err = runCLI(t, "--project", project, "logout")
	require.NoError(t, err)
}

func TestLogoutCmd_UnknownAccount(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "--account", "ghost", "logout")
	require.ErrorIs(t, err, accounts.ErrUnknownAccount)
}

func TestDownloadCmd_MissingCredentials(t *testing.T) {
	home := testEnv(t)
	t.Chdir(home)

	_, err := runCLI(t, "download", "abc123")
	require.ErrorIs(t, err, auth.ErrMissingCredentials)
}

func TestFetchCmd_RequiresTerminal(t *testing.T) {
	testEnv(t)

	stdin, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { stdin.Close() })

	orig := os.Stdin
	os.Stdin = stdin
	t.Cleanup(func() { os.Stdin = orig })

	_, err = runCLI(t, "fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--select")
}
