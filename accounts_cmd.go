package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdfetch/internal/accounts"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runList,
	}
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <credentials-path>",
		Short: "Register an account from an OAuth client credential bundle",
		Long: `Register a named account by copying an OAuth client credential bundle
(the credentials.json downloaded from the Google Cloud Console) into the
accounts directory.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: runCreate,
	}
}

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup <name> <project-dir>",
		Short: "Bind a project directory to an account",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE:  runSetup,
	}
}

func newCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current [project-dir]",
		Short: "Show the account a project directory is bound to",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE:  runCurrent,
	}
}

func newAccountStore() *accounts.Store {
	return accounts.NewStore(resolvedCfg.AccountsDir, buildLogger())
}

// accountListing is the JSON schema for `list --json`.
type accountListing struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
}

func runList(cmd *cobra.Command, _ []string) error {
	store := newAccountStore()

	names, err := store.List()
	if err != nil {
		return err
	}

	current, _ := accounts.CurrentAccount(flagProject)

	if flagJSON {
		out := make([]accountListing, 0, len(names))
		for _, n := range names {
			out = append(out, accountListing{Name: n, Current: n == current})
		}

		return printJSON(cmd.OutOrStdout(), out)
	}

	if len(names) == 0 {
		statusf("No accounts found in %s\n", store.Root())
		statusf("Create one with: gdfetch create <name> <credentials-path>\n")

		return nil
	}

	rows := make([][]string, 0, len(names))
	for _, n := range names {
		mark := ""
		if n == current {
			mark = "*"
		}

		rows = append(rows, []string{n, mark})
	}

	return printTable(cmd.OutOrStdout(), []string{"Account", "Current"}, rows)
}

func runCreate(_ *cobra.Command, args []string) error {
	name, bundle := args[0], args[1]
	store := newAccountStore()

	if store.Exists(name) {
		statusf("Account %q already exists; replacing its credentials.\n", name)
	}

	if err := store.Create(name, bundle); err != nil {
		return fmt.Errorf("failed to create account %q: %w", name, err)
	}

	statusf("Account %q created in %s\n", name, store.Path(name))

	return nil
}

func runSetup(_ *cobra.Command, args []string) error {
	name, projectDir := args[0], args[1]
	store := newAccountStore()

	if err := store.Bind(name, projectDir); err != nil {
		if errors.Is(err, accounts.ErrUnknownAccount) {
			names, _ := store.List()
			if len(names) > 0 {
				return fmt.Errorf("account %q not found (available: %s)", name, strings.Join(names, ", "))
			}

			return fmt.Errorf("account %q not found; create it first with 'gdfetch create'", name)
		}

		return fmt.Errorf("failed to set up project: %w", err)
	}

	abs, err := filepath.Abs(projectDir)
	if err != nil {
		abs = projectDir
	}

	statusf("Project %s is now bound to account %q\n", abs, name)

	return nil
}

// currentOutput is the JSON schema for `current --json`.
type currentOutput struct {
	Project string `json:"project"`
	Account string `json:"account,omitempty"`
	Bound   bool   `json:"bound"`
}

func runCurrent(cmd *cobra.Command, args []string) error {
	projectDir := flagProject
	if len(args) == 1 {
		projectDir = args[0]
	}

	name, ok := accounts.CurrentAccount(projectDir)

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), currentOutput{Project: projectDir, Account: name, Bound: ok})
	}

	if !ok {
		statusf("No account bound to %s\n", projectDir)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), name)

	return nil
}
