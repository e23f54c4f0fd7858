package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"assay/internal/cli"
	"assay/internal/executor"
	"assay/internal/formatting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePaths(t *testing.T) {
	dir := t.TempDir()
	good := writeSuite(t, dir, "good", "/ok")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\ntestType: Smoke\nsteps: []\n"), 0o644))
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# suites"), 0o644))

	registry := executor.NewDefaultRegistry(executor.Options{})
	reports, err := validatePaths(registry, []string{dir})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	byPath := map[string]formatting.SuiteReport{}
	for _, r := range reports {
		byPath[r.Path] = r
	}
	assert.True(t, byPath[good].Valid)
	assert.False(t, byPath[bad].Valid)
	assert.NotEmpty(t, byPath[bad].Errors)
	assert.False(t, byPath[broken].Valid)

	var buf bytes.Buffer
	err = writeValidation(&buf, formatting.New(formatting.Options{Format: formatting.FormatJSON}), reports)
	var invalid *cli.InvalidSuiteError
	require.True(t, errors.As(err, &invalid))
	assert.ElementsMatch(t, []string{bad, broken}, invalid.Paths)

	var printed []formatting.SuiteReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &printed))
	assert.Len(t, printed, 3)

	_, err = validatePaths(registry, []string{filepath.Join(dir, "nope")})
	assert.Error(t, err)
}

func TestValidatePaths_AllValid(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "only", "/ok")

	reports, err := validatePaths(executor.NewDefaultRegistry(executor.Options{}), []string{path})
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, writeValidation(&buf, formatting.New(formatting.Options{Format: formatting.FormatTable}), reports))
	assert.Contains(t, buf.String(), "only")
}
