package cmd

import (
	"fmt"
	"io"

	"assay/internal/cli"
	"assay/internal/executor"
	"assay/internal/formatting"
	"assay/internal/suite"

	"github.com/spf13/cobra"
)

var validateOutput cli.OutputFlags

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Check suite files without running them",
	Long: `Loads every suite file named on the command line, or found in the named
directories, and reports structural problems: missing names, unknown test
types, steps without a type, duplicate step ids and step types that the
suite's test type cannot run.

Exits with code 3 when at least one suite is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	cli.RegisterOutputFlags(validateCmd, &validateOutput)
}

// validatePaths builds a report for every suite file under paths.
func validatePaths(registry *executor.Registry, paths []string) ([]formatting.SuiteReport, error) {
	var reports []formatting.SuiteReport
	for _, p := range paths {
		files, err := suite.CollectFiles(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			ts, err := suite.LoadFile(f)
			if err != nil {
				reports = append(reports, formatting.NewSuiteReport(f, nil, err))
				continue
			}
			reports = append(reports, formatting.NewSuiteReport(f, ts, registry.Validate(ts)))
		}
	}
	return reports, nil
}

func writeValidation(w io.Writer, formatter formatting.Formatter, reports []formatting.SuiteReport) error {
	if err := formatter.FormatSuiteReports(w, reports); err != nil {
		return fmt.Errorf("failed to format reports: %w", err)
	}

	var invalid []string
	for _, r := range reports {
		if !r.Valid {
			invalid = append(invalid, r.Path)
		}
	}
	if len(invalid) > 0 {
		return &cli.InvalidSuiteError{Paths: invalid}
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	formatter, err := validateOutput.Formatter()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry := executor.NewDefaultRegistry(executor.Options{Settings: cfg.Settings()})

	reports, err := validatePaths(registry, args)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("no suite files found in %v", args)
	}
	return writeValidation(cmd.OutOrStdout(), formatter, reports)
}
