package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tonimelisma/gdfetch/internal/auth"
)

func main() {
	cmd, err := newRootCmd().ExecuteC()
	if err == nil {
		return
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		cmd.SetOut(os.Stderr)
		_ = cmd.Usage()
		os.Exit(1)
	}

	if errors.Is(err, auth.ErrMissingCredentials) {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		fmt.Fprintln(os.Stderr, "Register the Google OAuth client bundle you downloaded from the Cloud Console:")
		fmt.Fprintln(os.Stderr, "  gdfetch create <name> <path/to/credentials.json>")
		fmt.Fprintln(os.Stderr, "  gdfetch setup <name> <project-dir>")
		os.Exit(1)
	}

	exitOnError(err)
}
