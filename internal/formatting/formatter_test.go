package formatting

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"assay/internal/loadgen"
	"assay/internal/runner"
	"assay/internal/storage"
	"assay/internal/suite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *runner.RunResult {
	return &runner.RunResult{
		RunID:       "run-1",
		SuiteName:   "users api",
		TestType:    "API",
		BaseURL:     "http://localhost:8080",
		Status:      runner.StatusFailed,
		TotalSteps:  3,
		PassedSteps: 1,
		FailedSteps: 1,
		Duration:    1250,
		Steps: []runner.StepResult{
			{StepNumber: 1, StepName: "create", StepType: "request", Success: true, Message: "POST /users -> 201", Duration: 250},
			{StepNumber: 2, StepName: "check", StepType: "validation", Message: "Validation failed", Error: "expected status 200, got 404", Duration: 1000},
		},
		Variables:     map[string]any{"id": float64(42)},
		StoppedAtStep: 2,
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat("yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestTableFormatter_RunResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatTable}).FormatRunResult(&buf, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "users api")
	assert.Contains(t, out, "create")
	assert.Contains(t, out, "✅ PASS")
	assert.Contains(t, out, "❌ FAIL")
	assert.Contains(t, out, "expected status 200, got 404")
	assert.Contains(t, out, "1 passed, 1 failed, 1 not run")
	assert.Contains(t, out, "1.25s")
	assert.NotContains(t, out, "\x1b[")
}

func TestTableFormatter_QuietRunResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatTable, Quiet: true}).FormatRunResult(&buf, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "FAILED 1 passed, 1 failed")
	assert.NotContains(t, out, "create")
}

func TestTableFormatter_LoadDetail(t *testing.T) {
	result := &runner.RunResult{
		SuiteName: "perf",
		TestType:  "Performance",
		Status:    runner.StatusPassed,
		Steps: []runner.StepResult{
			{StepNumber: 1, StepName: "load", StepType: "loadTest", Success: true, Data: loadgen.Metrics{
				VirtualUsers: 5, TotalRequests: 120, TotalErrors: 3, ErrorRate: 0.025, AvgResponseTime: 12.5,
			}},
			{StepNumber: 2, StepName: "ramp", StepType: "stressTest", Success: true, Data: map[string]any{
				"phases": []any{
					map[string]any{"users": float64(5), "metrics": map[string]any{"totalRequests": float64(50)}},
					map[string]any{"users": float64(10), "metrics": map[string]any{"totalRequests": float64(80), "errorRate": 0.2}},
				},
				"maxStableUsers": float64(5),
				"breakingPoint":  float64(10),
				"halted":         true,
			}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, New(Options{}).FormatRunResult(&buf, result))

	out := buf.String()
	assert.Contains(t, out, "Step 1 load:")
	assert.Contains(t, out, "2.5%")
	assert.Contains(t, out, "12.5ms")
	assert.Contains(t, out, "Step 2 ramp:")
	assert.Contains(t, out, "breaking point 10 users")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON}).FormatRunResult(&buf, sampleResult()))

	var decoded runner.RunResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Len(t, decoded.Steps, 2)

	buf.Reset()
	require.NoError(t, New(Options{Format: FormatJSON, Quiet: true}).FormatSuiteReports(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatYAML}).FormatRunResult(&buf, sampleResult()))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "users api", decoded["suiteName"])
	assert.Equal(t, "failed", decoded["status"])
	assert.Equal(t, 42, decoded["variables"].(map[string]any)["id"])
}

func TestTableFormatter_RunList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{}).FormatRunList(&buf, &storage.ListResponse{}))
	assert.Contains(t, buf.String(), "No runs found")

	buf.Reset()
	list := &storage.ListResponse{
		Runs: []storage.RunSummary{
			{RunID: "run-2", SuiteName: "users", TestType: "API", Status: runner.StatusPassed, TotalSteps: 3, PassedSteps: 3, StartedAt: time.Now()},
		},
		Total:   4,
		Limit:   1,
		HasMore: true,
	}
	require.NoError(t, New(Options{}).FormatRunList(&buf, list))
	out := buf.String()
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "3/3")
	assert.Contains(t, out, "Showing 1 of 4 runs (use --offset 1 for more)")
}

func TestTableFormatter_SuiteReports(t *testing.T) {
	reports := []SuiteReport{
		{Path: "a.yaml", SuiteName: "a", TestType: "API", Steps: 2, Valid: true},
		{Path: "b.yaml", Valid: false, Errors: []string{"steps: at least one step is required"}},
	}

	var buf bytes.Buffer
	require.NoError(t, New(Options{}).FormatSuiteReports(&buf, reports))
	out := buf.String()
	assert.Contains(t, out, "1 valid, 1 invalid")
	assert.Contains(t, out, "  - steps: at least one step is required")
}

func TestNewSuiteReport(t *testing.T) {
	s := &suite.TestSuite{Name: "users", TestType: suite.TestTypeAPI, Steps: make([]suite.Step, 2)}

	ok := NewSuiteReport("users.yaml", s, nil)
	assert.True(t, ok.Valid)
	assert.Equal(t, "users", ok.SuiteName)
	assert.Equal(t, "API", ok.TestType)
	assert.Equal(t, 2, ok.Steps)
	assert.Empty(t, ok.Errors)

	verrs := suite.ValidationErrors{
		{Field: "name", Message: "is required"},
		{Step: 2, StepName: "login", Field: "config.url", Message: "is required"},
	}
	bad := NewSuiteReport("users.yaml", s, verrs)
	assert.False(t, bad.Valid)
	assert.Equal(t, []string{"name: is required", "step 2 (login): config.url: is required"}, bad.Errors)

	broken := NewSuiteReport("broken.yaml", nil, errors.New("failed to parse suite document"))
	assert.False(t, broken.Valid)
	assert.Empty(t, broken.SuiteName)
	assert.Equal(t, []string{"failed to parse suite document"}, broken.Errors)
}
