package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"assay/internal/cli"
	"assay/internal/config"
	"assay/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeRunFailed indicates a suite ran but did not pass.
	ExitCodeRunFailed = 2
	// ExitCodeInvalidSuite indicates a suite could not be loaded or validated.
	ExitCodeInvalidSuite = 3
)

// configPath is the configuration directory shared by all commands.
var configPath string

// rootCmd represents the base command for the assay application.
var rootCmd = &cobra.Command{
	Use:   "assay",
	Short: "Run API, functional and performance test suites",
	Long: `assay executes declarative test suites against a target system.

A suite is a YAML or JSON document with an ordered list of steps. API suites
send HTTP requests and check the responses, Functional suites drive a Chrome
browser, and Performance suites generate load with virtual users. Values
extracted by one step are available to later steps as {{variables}}.

Suites can be run from the command line, through an HTTP/WebSocket server
(assay serve), or by an AI assistant over MCP (assay mcp).`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "assay version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and CI pipelines.
func getExitCode(err error) int {
	var runFailed *cli.RunFailedError
	if errors.As(err, &runFailed) {
		return ExitCodeRunFailed
	}

	var invalid *cli.InvalidSuiteError
	if errors.As(err, &invalid) {
		return ExitCodeInvalidSuite
	}

	return ExitCodeError
}

// loadConfig reads the application configuration from --config-path.
func loadConfig() (config.AppConfig, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return config.AppConfig{}, errors.New(cfgErr.DetailedError())
		}
		return config.AppConfig{}, err
	}
	return cfg, nil
}

// initLogging installs the logger selected by the configuration. debug
// forces debug level. Without an explicit format, server modes log JSON.
func initLogging(cfg config.LoggingConfig, debug, server bool, w io.Writer) error {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}
	if debug {
		level = logging.LevelDebug
	}

	switch format := logging.Format(strings.ToLower(cfg.Format)); format {
	case logging.FormatJSON, logging.FormatText:
		logging.Init(format, level, w)
	default:
		if server {
			logging.InitForServer(level, w)
		} else {
			logging.InitForCLI(level, w)
		}
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")

	rootCmd.AddCommand(newVersionCmd())
}
