// Package formatting renders run results, run listings and suite
// validation reports for the command line.
package formatting

import (
	"errors"
	"fmt"
	"io"

	"assay/internal/runner"
	"assay/internal/storage"
	"assay/internal/suite"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
	FormatTable OutputFormat = "table" // Rich table output
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatJSON, FormatYAML, FormatTable:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Compact JSON, no per-step detail in tables
	Color  bool // Enable colored output
}

// SuiteReport is the outcome of validating one suite file.
type SuiteReport struct {
	Path      string   `json:"path" yaml:"path"`
	SuiteName string   `json:"suiteName,omitempty" yaml:"suiteName,omitempty"`
	TestType  string   `json:"testType,omitempty" yaml:"testType,omitempty"`
	Steps     int      `json:"steps" yaml:"steps"`
	Valid     bool     `json:"valid" yaml:"valid"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewSuiteReport summarises the outcome of loading and validating a suite.
// err may be a load error or the result of validation.
func NewSuiteReport(path string, s *suite.TestSuite, err error) SuiteReport {
	report := SuiteReport{Path: path, Valid: err == nil}
	if s != nil {
		report.SuiteName = s.Name
		report.TestType = string(s.TestType)
		report.Steps = len(s.Steps)
	}
	if err == nil {
		return report
	}
	var verrs suite.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			report.Errors = append(report.Errors, e.Error())
		}
	} else {
		report.Errors = []string{err.Error()}
	}
	return report
}

// Formatter writes assay documents to w.
type Formatter interface {
	FormatRunResult(w io.Writer, result *runner.RunResult) error
	FormatRunList(w io.Writer, list *storage.ListResponse) error
	FormatSuiteReports(w io.Writer, reports []SuiteReport) error
}

// New returns the formatter for options.Format; unknown formats get the
// table formatter.
func New(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{options: options}
	case FormatYAML:
		return &YAMLFormatter{options: options}
	default:
		return &TableFormatter{options: options}
	}
}
