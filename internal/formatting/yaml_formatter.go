package formatting

import (
	"encoding/json"
	"fmt"
	"io"

	"assay/internal/runner"
	"assay/internal/storage"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

func (f *YAMLFormatter) FormatRunResult(w io.Writer, result *runner.RunResult) error {
	return f.write(w, result)
}

func (f *YAMLFormatter) FormatRunList(w io.Writer, list *storage.ListResponse) error {
	return f.write(w, list)
}

func (f *YAMLFormatter) FormatSuiteReports(w io.Writer, reports []SuiteReport) error {
	return f.write(w, reports)
}

// write converts data through JSON first so step data produced by
// executors is rendered with its JSON field names.
func (f *YAMLFormatter) write(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	return enc.Close()
}
