package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// exitInterrupted is the conventional exit status after SIGINT.
const exitInterrupted = 130

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second. After the first signal the batch stops once
// the current file is done; the manifest and history still cover the files
// that finished.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupt received, stopping after current file",
				slog.String("signal", sig.String()),
			)
			statusf("\nInterrupted: finishing the current file (press Ctrl-C again to abort)\n")
			cancel()
		case <-ctx.Done():
			return
		}

		// A second signal aborts mid-file.
		select {
		case sig := <-sigCh:
			logger.Warn("second interrupt, aborting transfer",
				slog.String("signal", sig.String()),
			)
			os.Exit(exitInterrupted)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
