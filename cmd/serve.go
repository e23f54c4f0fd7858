package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"assay/internal/browser"
	"assay/internal/executor"
	"assay/internal/server"
	"assay/internal/storage"
	"assay/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	serveHost  string
	servePort  int
	serveDebug bool
)

// serveCmd defines the serve command structure.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assay HTTP and WebSocket server",
	Long: `Starts a long running server that executes suites on request.

Endpoints:
  POST   /api/v1/runs              run a suite (synchronously, or with "async": true)
  GET    /api/v1/runs              list stored runs (?suite=&status=&limit=&offset=)
  GET    /api/v1/runs/{id}         get a run result
  DELETE /api/v1/runs/{id}         delete a stored run
  POST   /api/v1/runs/{id}/stop    stop an async run between steps
  GET    /api/v1/runs/{id}/events  events of an active or recent run
  POST   /api/v1/suites/validate   validate a suite without running it
  GET    /ws                       execute suites and stream events over a WebSocket
  GET    /metrics                  Prometheus metrics
  GET    /healthz                  liveness probe

Host, port and limits come from the server section of config.yaml; the flags
below override them.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	if err := initLogging(cfg.Logging, serveDebug, true, os.Stderr); err != nil {
		return err
	}

	store, err := storage.NewFileStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	srv, err := server.New(server.Options{
		Config:               cfg.Server,
		Store:                store,
		Registry:             executor.NewDefaultRegistry(executor.Options{Settings: cfg.Settings()}),
		BrowserProvider:      browser.NewChromeProvider(cfg.ChromeOptions()),
		DefaultStopOnFailure: cfg.Execution.DefaultStopOnFailure,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Info("Serve", "Storing runs in %s", cfg.Storage.Path)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logging.Info("Serve", "Server stopped")
	return nil
}
