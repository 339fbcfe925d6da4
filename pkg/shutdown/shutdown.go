// Package shutdown wires OS signal delivery to context cancellation, so
// every worker's cooperative shutdown (an atomic running flag plus
// upstream queue/sender teardown) can key off one context.
//
// Trimmed of
// its crash-dump/abort-file diagnostics (DB-specific, not applicable
// here).
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rtsim/pkg/logger"
)

// SetupSignalHandler returns a context that is canceled on SIGINT or
// SIGTERM, and a cancel func the caller can also invoke directly (e.g.
// after the configured simulation duration elapses).
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
