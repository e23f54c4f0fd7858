package formatting

import (
	"encoding/json"
	"fmt"
	"io"

	"assay/internal/runner"
	"assay/internal/storage"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

func (f *JSONFormatter) FormatRunResult(w io.Writer, result *runner.RunResult) error {
	return f.write(w, result)
}

func (f *JSONFormatter) FormatRunList(w io.Writer, list *storage.ListResponse) error {
	return f.write(w, list)
}

func (f *JSONFormatter) FormatSuiteReports(w io.Writer, reports []SuiteReport) error {
	if reports == nil {
		reports = []SuiteReport{}
	}
	return f.write(w, reports)
}

// write encodes data, compact in quiet mode
func (f *JSONFormatter) write(w io.Writer, data interface{}) error {
	var out []byte
	var err error
	if f.options.Quiet {
		out, err = json.Marshal(data)
	} else {
		out, err = json.MarshalIndent(data, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
