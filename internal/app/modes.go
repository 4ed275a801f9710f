package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"switchboard/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

// runServer starts the MCP server and blocks until ctx is done or SIGINT or
// SIGTERM arrives. Shutdown ends every live session, which wipes its
// decrypted credentials, before the binding store is closed.
func runServer(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.Server.Start(ctx, services.Bridge); err != nil {
		logging.Error("Serve", err, "Failed to start MCP server")
		_ = services.Close(context.Background())
		return err
	}

	logging.Info("Serve", "Serving. Press Ctrl+C to stop.")
	<-ctx.Done()

	logging.Info("Serve", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := services.Server.Stop(shutdownCtx); err != nil {
		logging.Error("Serve", err, "Error stopping MCP server")
	}
	if err := services.Close(shutdownCtx); err != nil {
		logging.Error("Serve", err, "Error closing binding store")
		return err
	}
	return nil
}
