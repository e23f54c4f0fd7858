package cli

import (
	"assay/internal/formatting"

	"github.com/spf13/cobra"
)

// OutputFlags holds the flag values shared by commands that print
// formatted documents.
type OutputFlags struct {
	// OutputFormat specifies the desired output format (table, json, yaml)
	OutputFormat string
	// Quiet drops per-step detail from tables and compacts JSON
	Quiet bool
	// NoColor disables colored table output
	NoColor bool
}

// RegisterOutputFlags registers --output/-o, --quiet/-q and --no-color on cmd.
func RegisterOutputFlags(cmd *cobra.Command, flags *OutputFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", string(formatting.FormatTable), "Output format (table, json, yaml)")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress per-step detail")
	cmd.Flags().BoolVar(&flags.NoColor, "no-color", false, "Disable colored output")
}

// Formatter validates the output format and builds the formatter.
func (f *OutputFlags) Formatter() (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(f.OutputFormat)
	if err != nil {
		return nil, err
	}
	return formatting.New(formatting.Options{
		Format: format,
		Quiet:  f.Quiet,
		Color:  !f.NoColor,
	}), nil
}

// IsStructured reports whether the output is machine readable, in which case
// progress output must stay off stdout.
func (f *OutputFlags) IsStructured() bool {
	return f.OutputFormat == string(formatting.FormatJSON) || f.OutputFormat == string(formatting.FormatYAML)
}
