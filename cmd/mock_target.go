package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"assay/internal/mocktarget"
	"assay/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	mockTargetConfig string
	mockTargetPort   int
	mockTargetDebug  bool
)

// mockTargetCmd serves a configurable fake HTTP API to run suites against.
var mockTargetCmd = &cobra.Command{
	Use:   "mock-target",
	Short: "Serve a mock HTTP API described by a YAML file",
	Long: `Starts a mock HTTP API for developing and demonstrating suites.

The configuration lists routes with their responses. Path parameters and
request fields can be echoed into bodies with {{name}} placeholders:

  name: users
  routes:
    - method: GET
      path: /users/{id}
      body:
        id: "{{id}}"
        name: Jane
    - method: POST
      path: /login
      responses:
        - when: {password: secret}
          status: 200
          body: {token: abc}
        - status: 401
          body: {error: invalid credentials}

With --port 0 (the default) a free port is chosen and printed.`,
	Args: cobra.NoArgs,
	RunE: runMockTarget,
}

func init() {
	rootCmd.AddCommand(mockTargetCmd)

	mockTargetCmd.Flags().StringVar(&mockTargetConfig, "config", "", "Path to the mock target configuration file")
	mockTargetCmd.Flags().IntVar(&mockTargetPort, "port", 0, "Port to listen on (0 picks a free port)")
	mockTargetCmd.Flags().BoolVar(&mockTargetDebug, "debug", false, "Enable debug logging")
	_ = mockTargetCmd.MarkFlagRequired("config")
}

func runMockTarget(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if mockTargetDebug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

	cfg, err := mocktarget.LoadConfig(mockTargetConfig)
	if err != nil {
		return err
	}
	srv, err := mocktarget.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx, mockTargetPort); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mock target %q listening on %s (%d routes)\n", cfg.Name, srv.URL(), len(cfg.Routes))

	<-ctx.Done()

	return srv.Stop(context.Background())
}
