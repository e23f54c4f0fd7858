package cmd

import (
	"errors"
	"fmt"

	"assay/internal/cli"
	"assay/internal/runner"
	"assay/internal/storage"

	"github.com/spf13/cobra"
)

var (
	resultsSuite  string
	resultsStatus string
	resultsLimit  int
	resultsOffset int

	resultsListOutput cli.OutputFlags
	resultsGetOutput  cli.OutputFlags
)

// resultsCmd groups the commands that inspect stored runs.
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored run results",
	Long: `Lists, shows and deletes run results saved by 'assay run --save',
'assay serve' and 'assay mcp'. Results live under the storage path from
config.yaml (default: <config-path>/data).`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runResultsList,
}

var resultsGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsGet,
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>...",
	Short: "Delete stored runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResultsDelete,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd, resultsGetCmd, resultsDeleteCmd)

	resultsListCmd.Flags().StringVar(&resultsSuite, "suite", "", "Only runs of this suite")
	resultsListCmd.Flags().StringVar(&resultsStatus, "status", "", "Only runs with this status (passed, failed, stopped, error)")
	resultsListCmd.Flags().IntVar(&resultsLimit, "limit", 0, "Maximum number of runs to show (default 50)")
	resultsListCmd.Flags().IntVar(&resultsOffset, "offset", 0, "Number of runs to skip")
	cli.RegisterOutputFlags(resultsListCmd, &resultsListOutput)

	cli.RegisterOutputFlags(resultsGetCmd, &resultsGetOutput)
}

func openStore() (*storage.FileStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewFileStore(cfg.Storage.Path)
}

func parseStatus(s string) (runner.Status, error) {
	switch st := runner.Status(s); st {
	case "", runner.StatusPassed, runner.StatusFailed, runner.StatusStopped, runner.StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q (want passed, failed, stopped or error)", s)
	}
}

func runResultsList(cmd *cobra.Command, args []string) error {
	status, err := parseStatus(resultsStatus)
	if err != nil {
		return err
	}
	if resultsLimit < 0 || resultsOffset < 0 {
		return errors.New("--limit and --offset must not be negative")
	}
	formatter, err := resultsListOutput.Formatter()
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	list, err := store.List(cmd.Context(), storage.ListOptions{
		SuiteName: resultsSuite,
		Status:    status,
		Limit:     resultsLimit,
		Offset:    resultsOffset,
	})
	if err != nil {
		return err
	}
	return formatter.FormatRunList(cmd.OutOrStdout(), list)
}

func runResultsGet(cmd *cobra.Command, args []string) error {
	formatter, err := resultsGetOutput.Formatter()
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	result, err := store.Get(cmd.Context(), args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("run %s not found", args[0])
	}
	if err != nil {
		return err
	}
	return formatter.FormatRunResult(cmd.OutOrStdout(), result)
}

func runResultsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	var failed int
	for _, id := range args {
		if err := store.Delete(cmd.Context(), id); err != nil {
			failed++
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Run %s not found\n", id)
				continue
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed to delete run %s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs could not be deleted", failed, len(args))
	}
	return nil
}
