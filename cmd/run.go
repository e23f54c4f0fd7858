package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assay/internal/browser"
	"assay/internal/cli"
	"assay/internal/config"
	"assay/internal/events"
	"assay/internal/executor"
	"assay/internal/formatting"
	"assay/internal/runner"
	"assay/internal/storage"
	"assay/internal/suite"
	"assay/internal/watch"
	"assay/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	runBaseURL       string
	runStopOnFailure bool
	runSave          bool
	runWatch         bool
	runVerbose       bool
	runDebug         bool
	runTimeout       time.Duration
	runChromePath    string
	runChromeRemote  string
	runHeadful       bool
	runOutput        cli.OutputFlags
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <suite-file>",
	Short: "Run a test suite",
	Long: `Runs a single test suite file (YAML or JSON) and prints the result.

Steps run strictly in order. With stopOnFailure (the default) the run ends at
the first failed step. Press Ctrl+C once to stop after the current step, twice
to abort immediately.

Exit codes:
  0  the suite passed
  1  the command failed (bad flags, unreadable config, ...)
  2  the suite ran but failed or was stopped
  3  the suite could not be loaded or is invalid

Examples:
  assay run smoke.yaml
  assay run smoke.yaml --base-url http://localhost:8080 --output json
  assay run checkout.yaml --headful --chrome-path /usr/bin/chromium
  assay run smoke.yaml --watch --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "Override the suite's baseUrl")
	runCmd.Flags().BoolVar(&runStopOnFailure, "stop-on-failure", true, "Stop after the first failed step (overrides the suite)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Save the result to the run store")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Re-run the suite whenever the file changes")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Print every step as it finishes instead of a spinner")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Enable debug logging")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Abort the run after this long (0 means no limit)")
	runCmd.Flags().StringVar(&runChromePath, "chrome-path", "", "Chrome binary for Functional suites")
	runCmd.Flags().StringVar(&runChromeRemote, "chrome-remote", "", "DevTools URL of an already running Chrome")
	runCmd.Flags().BoolVar(&runHeadful, "headful", false, "Show the browser window")
	cli.RegisterOutputFlags(runCmd, &runOutput)

	runCmd.MarkFlagsMutuallyExclusive("chrome-path", "chrome-remote")
}

// suiteRunner runs suite files with one orchestrator so that a stop request
// always reaches the run in progress.
type suiteRunner struct {
	cfg       config.AppConfig
	registry  *executor.Registry
	orch      *runner.Orchestrator
	formatter formatting.Formatter
	store     storage.RunStore

	baseURL       string
	stopOnFailure *bool
	verbose       bool
	timeout       time.Duration

	stdout io.Writer
	stderr io.Writer
}

func newSuiteRunner(cfg config.AppConfig, formatter formatting.Formatter, stdout, stderr io.Writer) *suiteRunner {
	registry := executor.NewDefaultRegistry(executor.Options{Settings: cfg.Settings()})
	return &suiteRunner{
		cfg:      cfg,
		registry: registry,
		orch: runner.New(runner.Options{
			Registry:        registry,
			BrowserProvider: browser.NewChromeProvider(cfg.ChromeOptions()),
		}),
		formatter: formatter,
		stdout:    stdout,
		stderr:    stderr,
	}
}

// load reads and validates the suite at path and applies the overrides.
func (r *suiteRunner) load(path string) (*suite.TestSuite, error) {
	ts, err := suite.LoadFile(path)
	if err != nil {
		return nil, &cli.InvalidSuiteError{Paths: []string{path}, Reason: err}
	}
	if err := r.registry.Validate(ts); err != nil {
		return nil, &cli.InvalidSuiteError{Paths: []string{path}, Reason: err}
	}

	if r.baseURL != "" {
		ts.BaseURL = r.baseURL
	}
	if r.stopOnFailure != nil {
		v := *r.stopOnFailure
		ts.StopOnFailure = &v
	}
	ts.SetDefaultStopOnFailure(r.cfg.Execution.DefaultStopOnFailure)
	return ts, nil
}

// runOnce executes the suite at path, prints and optionally saves the
// result. The returned error is a *cli.RunFailedError when the suite did not
// pass.
func (r *suiteRunner) runOnce(ctx context.Context, path string) (*runner.RunResult, error) {
	ts, err := r.load(path)
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var progress *cli.Progress
	var reporter events.Reporter = events.LogReporter{Subsystem: "Run"}
	if r.verbose {
		reporter = events.Multi(reporter, cli.NewEventPrinter(r.stderr))
	} else {
		progress = cli.NewProgress(r.stderr)
		reporter = events.Multi(reporter, progress)
	}

	result, err := r.orch.Run(ctx, ts, reporter)
	if progress != nil {
		progress.Finish(result)
	}
	if err != nil {
		return nil, err
	}

	if err := r.formatter.FormatRunResult(r.stdout, result); err != nil {
		return result, fmt.Errorf("failed to format result: %w", err)
	}

	if r.store != nil {
		if err := r.store.Save(ctx, result); err != nil {
			logging.Error("Run", err, "Failed to save run %s", result.RunID)
		} else {
			logging.Info("Run", "Saved run %s", result.RunID)
		}
	}

	return result, cli.NewRunFailedError(result)
}

// watchLoop re-runs the suite after every change until ctx is done.
func (r *suiteRunner) watchLoop(ctx context.Context, path string) error {
	changes := make(chan struct{}, 1)
	w, err := watch.New(watch.Config{
		Paths: []string{path},
		OnChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(r.stderr, "Watching %s for changes (Ctrl+C to exit)\n", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			fmt.Fprintf(r.stderr, "\n%s changed, re-running\n", path)
			if _, err := r.runOnce(ctx, path); err != nil {
				var runFailed *cli.RunFailedError
				if !errors.As(err, &runFailed) {
					fmt.Fprintln(r.stderr, err)
				}
			}
		}
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runChromePath != "" {
		cfg.Browser.ExecPath = runChromePath
	}
	if runChromeRemote != "" {
		cfg.Browser.RemoteURL = runChromeRemote
	}
	if runHeadful {
		cfg.Browser.Headless = false
	}

	if err := initLogging(cfg.Logging, runDebug, false, os.Stderr); err != nil {
		return err
	}

	formatter, err := runOutput.Formatter()
	if err != nil {
		return err
	}

	r := newSuiteRunner(cfg, formatter, cmd.OutOrStdout(), cmd.ErrOrStderr())
	r.baseURL = runBaseURL
	r.verbose = runVerbose
	r.timeout = runTimeout
	if cmd.Flags().Changed("stop-on-failure") {
		r.stopOnFailure = &runStopOnFailure
	}
	if runSave {
		store, err := storage.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		r.store = store
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// First interrupt stops between steps (and ends --watch); a second one
	// cancels the run outright.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()

	go func() {
		interrupts := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				interrupts++
				if interrupts == 1 {
					fmt.Fprintln(cmd.ErrOrStderr(), "\nStopping after the current step (Ctrl+C again to abort)...")
					r.orch.Stop()
					stopWatching()
					continue
				}
				cancel()
				return
			}
		}
	}()

	_, err = r.runOnce(ctx, path)
	if !runWatch {
		return err
	}
	var runFailed *cli.RunFailedError
	var invalid *cli.InvalidSuiteError
	switch {
	case err == nil, errors.As(err, &runFailed):
	case errors.As(err, &invalid):
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	default:
		return err
	}
	return r.watchLoop(watchCtx, path)
}
