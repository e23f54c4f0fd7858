package suite

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"assay/pkg/logging"

	sigsyaml "sigs.k8s.io/yaml"
)

// Loaded pairs a parsed suite with the file it came from.
type Loaded struct {
	Path  string
	Suite *TestSuite
}

// Parse decodes a suite document. YAML is converted to JSON first so the
// same decoder handles suites posted over the API and suites read from disk.
func Parse(data []byte) (*TestSuite, error) {
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse suite document: %w", err)
	}

	var s TestSuite
	if err := json.Unmarshal(jsonData, &s); err != nil {
		return nil, fmt.Errorf("failed to decode suite: %w", err)
	}
	return &s, nil
}

// LoadFile reads and parses a single suite file.
func LoadFile(path string) (*TestSuite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	s, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logging.Debug("SuiteLoader", "Loaded suite %q (%s, %d steps) from %s", s.Name, s.TestType, len(s.Steps), path)
	return s, nil
}

// LoadPath loads a suite file, or every suite file below a directory.
// The first file that fails to load aborts the whole call.
func LoadPath(path string) ([]Loaded, error) {
	files, err := CollectFiles(path)
	if err != nil {
		return nil, err
	}

	loaded := make([]Loaded, 0, len(files))
	for _, f := range files {
		s, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, Loaded{Path: f, Suite: s})
	}

	logging.Debug("SuiteLoader", "Loaded %d suites from %s", len(loaded), path)
	return loaded, nil
}

// CollectFiles returns path itself when it is a file, or every suite file
// below it in lexical order when it is a directory.
func CollectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("suite path does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to stat suite path: %w", err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSuiteFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", path, err)
	}
	return files, nil
}

// IsSuiteFile reports whether path has a suite document extension.
func IsSuiteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
