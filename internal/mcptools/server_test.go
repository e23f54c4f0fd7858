package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"assay/internal/formatting"
	"assay/internal/runner"
	"assay/internal/storage"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func newTarget(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func suiteDoc(path string) string {
	return fmt.Sprintf(`
name: mcp suite
testType: API
steps:
  - name: call
    type: request
    config:
      method: GET
      url: %s
      validation:
        statusCode: 200
`, path)
}

func newTestServer(t *testing.T) (*Server, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return New(Options{Store: store, DefaultStopOnFailure: true}), store
}

func TestNew_RegistersTools(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, []string{ToolRunSuite, ToolValidateSuite, ToolListRuns, ToolGetRun}, s.Tools())
	assert.NotNil(t, s.MCPServer())
}

func TestRunSuite_InlineAndStored(t *testing.T) {
	s, store := newTestServer(t)
	target := newTarget(t)
	ctx := context.Background()

	res, err := s.handleRunSuite(ctx, callRequest(ToolRunSuite, map[string]interface{}{
		"suite_json": suiteDoc("/ok"),
		"base_url":   target.URL,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var result runner.RunResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &result))
	assert.Equal(t, runner.StatusPassed, result.Status)
	assert.Equal(t, target.URL, result.BaseURL)

	stored, err := store.Get(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, stored.RunID)

	res, err = s.handleGetRun(ctx, callRequest(ToolGetRun, map[string]interface{}{"run_id": result.RunID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), result.RunID)

	res, err = s.handleListRuns(ctx, callRequest(ToolListRuns, map[string]interface{}{"suite": "mcp suite", "limit": float64(5)}))
	require.NoError(t, err)
	var list storage.ListResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, 5, list.Limit)
}

func TestRunSuite_FailedRunIsNotAToolError(t *testing.T) {
	s, _ := newTestServer(t)
	target := newTarget(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suiteDoc("/missing")), 0o644))

	res, err := s.handleRunSuite(context.Background(), callRequest(ToolRunSuite, map[string]interface{}{
		"suite_path": path,
		"base_url":   target.URL,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var result runner.RunResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &result))
	assert.Equal(t, runner.StatusFailed, result.Status)
}

func TestRunSuite_ArgumentErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"no suite", map[string]interface{}{}},
		{"missing file", map[string]interface{}{"suite_path": "/does/not/exist.yaml"}},
		{"bad document", map[string]interface{}{"suite_json": "steps: ["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleRunSuite(context.Background(), callRequest(ToolRunSuite, tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestValidateSuite(t *testing.T) {
	s, _ := newTestServer(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(suiteDoc("/ok")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\ntestType: API\nsteps: []\n"), 0o644))

	res, err := s.handleValidateSuite(context.Background(), callRequest(ToolValidateSuite, map[string]interface{}{"suite_path": dir}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var reports []formatting.SuiteReport
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "bad", reports[0].SuiteName)
	assert.False(t, reports[0].Valid)
	assert.NotEmpty(t, reports[0].Errors)
	assert.Equal(t, "mcp suite", reports[1].SuiteName)
	assert.True(t, reports[1].Valid)

	res, err = s.handleValidateSuite(context.Background(), callRequest(ToolValidateSuite, map[string]interface{}{"suite_json": "name: ["}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &reports))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Valid)

	res, err = s.handleValidateSuite(context.Background(), callRequest(ToolValidateSuite, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestGetRun_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleGetRun(context.Background(), callRequest(ToolGetRun, map[string]interface{}{"run_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")

	res, err = s.handleGetRun(context.Background(), callRequest(ToolGetRun, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListRuns_WithoutStore(t *testing.T) {
	s := New(Options{})

	res, err := s.handleListRuns(context.Background(), callRequest(ToolListRuns, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetRun(context.Background(), callRequest(ToolGetRun, map[string]interface{}{"run_id": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
