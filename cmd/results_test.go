package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"assay/internal/runner"
	"assay/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeRoot runs the root command with args and returns stdout.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func seedStore(t *testing.T, cfgDir string) {
	t.Helper()
	store, err := storage.NewFileStore(filepath.Join(cfgDir, "data"))
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, r := range []struct {
		id, suite string
		status    runner.Status
	}{
		{"run-a", "smoke", runner.StatusPassed},
		{"run-b", "smoke", runner.StatusFailed},
		{"run-c", "checkout", runner.StatusPassed},
	} {
		require.NoError(t, store.Save(context.Background(), &runner.RunResult{
			RunID:     r.id,
			SuiteName: r.suite,
			TestType:  "API",
			Status:    r.status,
			Success:   r.status == runner.StatusPassed,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Steps:     []runner.StepResult{},
		}))
	}
}

func TestResultsCommands(t *testing.T) {
	cfgDir := t.TempDir()
	seedStore(t, cfgDir)

	out, err := executeRoot(t, "results", "list", "--config-path", cfgDir, "--suite", "smoke", "-o", "json")
	require.NoError(t, err)
	var list storage.ListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Runs, 2)
	assert.Equal(t, "run-b", list.Runs[0].RunID, "newest first")

	out, err = executeRoot(t, "results", "get", "run-c", "--config-path", cfgDir, "-o", "json")
	require.NoError(t, err)
	var result runner.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "checkout", result.SuiteName)

	_, err = executeRoot(t, "results", "get", "nope", "--config-path", cfgDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	out, err = executeRoot(t, "results", "delete", "run-a", "--config-path", cfgDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run run-a")

	_, err = executeRoot(t, "results", "delete", "run-a", "--config-path", cfgDir)
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"", "passed", "failed", "stopped", "error"} {
		_, err := parseStatus(s)
		assert.NoError(t, err, s)
	}
	_, err := parseStatus("green")
	assert.Error(t, err)
}
