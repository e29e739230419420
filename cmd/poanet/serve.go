package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/poanet/pkg/api"
	"github.com/cuemby/poanet/pkg/events"
	"github.com/cuemby/poanet/pkg/log"
	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/reconciler"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with drift checks and metrics",
	Long: `Run the poanet HTTP API.

Besides the REST routes under /api, the server exposes /health, /ready and
/metrics, checks every network for roster drift on an interval, and logs every
lifecycle event.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":3000", "HTTP API listen address")
	serveCmd.Flags().Duration("reconcile-interval", 0, "Interval between roster drift checks")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	fmt.Println("Starting poanet...")
	fmt.Printf("  Data Directory: %s\n", cfg.DataDir)
	fmt.Printf("  Roster Backend: %s\n", cfg.Roster.Backend)
	fmt.Printf("  API Address: %s\n", cfg.API.Addr)
	fmt.Println()

	if _, err := a.docker.Ping(ctx); err != nil {
		metrics.UpdateComponent(metrics.ComponentRuntime, false, err.Error())
		log.Logger.Warn().Err(err).Msg("Docker engine is not reachable")
	} else {
		metrics.UpdateComponent(metrics.ComponentRuntime, true, "")
	}

	// Event logger
	sub := a.events.Subscribe()
	go logEvents(sub)
	fmt.Println("✓ Event logger started")

	collector := metrics.NewCollector(a.store, 0)
	collector.Start()
	fmt.Println("✓ Metrics collector started")

	recon := reconciler.NewReconciler(&reconciler.Config{
		Store:    a.store,
		Driver:   a.driver,
		Runtime:  a.runtime,
		Events:   a.events,
		Interval: cfg.Reconcile.Interval,
	})
	recon.Start(ctx)
	fmt.Println("✓ Reconciler started")

	server := api.NewServer(a.manager, recon)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			errCh <- err
		}
	}()
	fmt.Println("✓ API server started")

	fmt.Println()
	fmt.Println("poanet is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case serveErr = <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Logger.Warn().Err(err).Msg("API shutdown did not complete")
	}
	recon.Stop()
	collector.Stop()
	a.events.Unsubscribe(sub)

	fmt.Println("✓ Shutdown complete")
	return serveErr
}

func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for e := range sub {
		entry := logger.Info()
		if e.Type == events.EventOperationFailed || e.Type == events.EventRosterDrift {
			entry = logger.Warn()
		}
		entry = entry.Str("event", string(e.Type)).Str("event_id", e.ID)
		for k, v := range e.Metadata {
			entry = entry.Str(k, v)
		}
		entry.Msg(e.Message)
	}
}
