package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"assay/internal/browser"
	"assay/internal/executor"
	"assay/internal/mcptools"
	"assay/internal/storage"
	"assay/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	mcpDebug  bool
	mcpNoSave bool
)

// mcpCmd runs assay as an MCP server on stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve assay as MCP tools over stdio",
	Long: `Runs an MCP server on stdin/stdout so AI assistants can run and inspect
test suites. Logs go to stderr.

Tools:
  assay_run_suite       run a suite file or inline suite and return the result
  assay_validate_suite  validate suite files or an inline suite
  assay_list_runs       list stored runs
  assay_get_run         get a stored run by ID

Example MCP client configuration:
  {
    "mcpServers": {
      "assay": {"command": "assay", "args": ["mcp"]}
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().BoolVar(&mcpDebug, "debug", false, "Enable debug logging")
	mcpCmd.Flags().BoolVar(&mcpNoSave, "no-save", false, "Do not store run results")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the protocol
	if err := initLogging(cfg.Logging, mcpDebug, true, os.Stderr); err != nil {
		return err
	}

	opts := mcptools.Options{
		Version:              GetVersion(),
		Registry:             executor.NewDefaultRegistry(executor.Options{Settings: cfg.Settings()}),
		BrowserProvider:      browser.NewChromeProvider(cfg.ChromeOptions()),
		DefaultStopOnFailure: cfg.Execution.DefaultStopOnFailure,
	}
	if !mcpNoSave {
		store, err := storage.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		opts.Store = store
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := mcptools.New(opts).Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logging.Error("MCP", err, "MCP server stopped")
		return err
	}
	return nil
}
