// Package mcptools exposes suite execution as MCP tools over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"assay/internal/browser"
	"assay/internal/executor"
	"assay/internal/formatting"
	"assay/internal/runner"
	"assay/internal/storage"
	"assay/internal/suite"
	"assay/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const subsystem = "MCP"

// Tool names.
const (
	ToolRunSuite      = "assay_run_suite"
	ToolValidateSuite = "assay_validate_suite"
	ToolListRuns      = "assay_list_runs"
	ToolGetRun        = "assay_get_run"
)

// DefaultRunTimeout bounds a single assay_run_suite call.
const DefaultRunTimeout = 10 * time.Minute

// Options configures the tool server.
type Options struct {
	Version         string
	Registry        *executor.Registry
	BrowserProvider browser.Provider
	// Store is optional; without it runs are not saved and the listing
	// tools report an error
	Store                storage.RunStore
	DefaultStopOnFailure bool
	RunTimeout           time.Duration
}

// Server wraps an MCP server with the assay tools registered.
type Server struct {
	mcpServer *server.MCPServer
	opts      Options
	tools     []string
}

// New creates the server and registers all tools.
func New(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = executor.NewDefaultRegistry(executor.Options{})
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		"assay",
		opts.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{mcpServer: mcpServer, opts: opts}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Serve speaks MCP over in and out until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info(subsystem, "Serving %d tools over stdio", len(s.tools))
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

func (s *Server) registerTools() {
	s.addTool(mcp.NewTool(ToolRunSuite,
		mcp.WithDescription("Run a test suite and return the run result"),
		mcp.WithString("suite_path",
			mcp.Description("Path to a suite file (YAML or JSON)"),
		),
		mcp.WithString("suite_json",
			mcp.Description("Inline suite document (YAML or JSON); used when suite_path is empty"),
		),
		mcp.WithString("base_url",
			mcp.Description("Override the suite's baseUrl"),
		),
		mcp.WithBoolean("stop_on_failure",
			mcp.Description("Stop after the first failed step (default true)"),
		),
	), s.handleRunSuite)

	s.addTool(mcp.NewTool(ToolValidateSuite,
		mcp.WithDescription("Validate suite files or an inline suite without running them"),
		mcp.WithString("suite_path",
			mcp.Description("Path to a suite file or a directory of suites"),
		),
		mcp.WithString("suite_json",
			mcp.Description("Inline suite document (YAML or JSON); used when suite_path is empty"),
		),
	), s.handleValidateSuite)

	s.addTool(mcp.NewTool(ToolListRuns,
		mcp.WithDescription("List stored run results, newest first"),
		mcp.WithString("suite",
			mcp.Description("Only runs of this suite"),
		),
		mcp.WithString("status",
			mcp.Description("Only runs with this status (passed, failed, stopped, error)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default 50)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of runs to skip"),
		),
	), s.handleListRuns)

	s.addTool(mcp.NewTool(ToolGetRun,
		mcp.WithDescription("Get a stored run result by ID"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID as returned by assay_run_suite or assay_list_runs"),
		),
	), s.handleGetRun)
}

func stringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// loadSuite reads the suite named by suite_path or given inline as suite_json.
func loadSuite(args map[string]interface{}) (*suite.TestSuite, string, error) {
	if path := stringArg(args, "suite_path"); path != "" {
		s, err := suite.LoadFile(path)
		return s, path, err
	}
	if doc := stringArg(args, "suite_json"); doc != "" {
		s, err := suite.Parse([]byte(doc))
		return s, "", err
	}
	return nil, "", errors.New("either suite_path or suite_json is required")
}

func (s *Server) handleRunSuite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	ts, _, err := loadSuite(args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load suite: %v", err)), nil
	}
	if baseURL := stringArg(args, "base_url"); baseURL != "" {
		ts.BaseURL = baseURL
	}
	if stop, ok := args["stop_on_failure"].(bool); ok {
		ts.StopOnFailure = &stop
	}
	ts.SetDefaultStopOnFailure(s.opts.DefaultStopOnFailure)

	timeoutCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	orch := runner.New(runner.Options{
		Registry:        s.opts.Registry,
		BrowserProvider: s.opts.BrowserProvider,
	})
	result, err := orch.Run(timeoutCtx, ts, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Run failed to start: %v", err)), nil
	}

	if s.opts.Store != nil {
		if err := s.opts.Store.Save(ctx, result); err != nil {
			logging.Error(subsystem, err, "Failed to save run %s", result.RunID)
		}
	}
	return jsonResult(result)
}

func (s *Server) handleValidateSuite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	if path := stringArg(args, "suite_path"); path != "" {
		files, err := suite.CollectFiles(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		reports := make([]formatting.SuiteReport, 0, len(files))
		for _, f := range files {
			reports = append(reports, s.validateFile(f))
		}
		return jsonResult(reports)
	}

	doc := stringArg(args, "suite_json")
	if doc == "" {
		return mcp.NewToolResultError("either suite_path or suite_json is required"), nil
	}
	ts, err := suite.Parse([]byte(doc))
	if err != nil {
		return jsonResult([]formatting.SuiteReport{formatting.NewSuiteReport("", nil, err)})
	}
	return jsonResult([]formatting.SuiteReport{formatting.NewSuiteReport("", ts, s.opts.Registry.Validate(ts))})
}

func (s *Server) validateFile(path string) formatting.SuiteReport {
	ts, err := suite.LoadFile(path)
	if err != nil {
		return formatting.NewSuiteReport(path, nil, err)
	}
	return formatting.NewSuiteReport(path, ts, s.opts.Registry.Validate(ts))
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.opts.Store == nil {
		return mcp.NewToolResultError("run storage is not configured"), nil
	}
	args := request.GetArguments()

	opts := storage.ListOptions{
		SuiteName: stringArg(args, "suite"),
		Status:    runner.Status(stringArg(args, "status")),
	}
	if limit, ok := args["limit"].(float64); ok {
		if limit < 0 {
			return mcp.NewToolResultError("limit must not be negative"), nil
		}
		opts.Limit = int(limit)
	}
	if offset, ok := args["offset"].(float64); ok {
		if offset < 0 {
			return mcp.NewToolResultError("offset must not be negative"), nil
		}
		opts.Offset = int(offset)
	}

	list, err := s.opts.Store.List(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list runs: %v", err)), nil
	}
	return jsonResult(list)
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.opts.Store == nil {
		return mcp.NewToolResultError("run storage is not configured"), nil
	}
	id := stringArg(request.GetArguments(), "run_id")
	if id == "" {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	result, err := s.opts.Store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Run %s not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load run %s: %v", id, err)), nil
	}
	return jsonResult(result)
}
