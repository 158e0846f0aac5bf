package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdfetch/internal/accounts"
	"github.com/tonimelisma/gdfetch/internal/auth"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached token for the active credential scope",
		Long: `Remove the cached OAuth token used by the active credential scope
(--account, the project binding, or the current directory). The next
transfer re-runs the browser authorization.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runLogout,
	}
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	store := accounts.NewStore(resolvedCfg.AccountsDir, logger)

	scope, err := accounts.ResolveScope(store, flagProject, flagAccount)
	if err != nil {
		return err
	}

	removed, err := auth.Logout(scope.TokenPath, logger)
	if err != nil {
		return err
	}

	if removed {
		statusf("Logged out (%s scope): removed %s\n", scope.Kind, scope.TokenPath)
	} else {
		statusf("No cached token for %s scope; already logged out.\n", scope.Kind)
	}

	return nil
}
