// Package logging provides the structured logging used across assay.
//
// It is a thin layer over log/slog that tags every record with a subsystem
// and offers printf-style helpers so call sites stay short:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Runner", "Starting suite %s", name)
//	logging.Debug("Executor", "GET %s -> %d", url, status)
//	logging.Warn("Server", "Dropping event for slow client %s", connID)
//	logging.Error("Storage", err, "Failed to persist run %s", runID)
//
// # Output
//
// InitForCLI writes human readable text records. InitForServer writes JSON
// records, which is what `assay serve` and `assay mcp` use so logs can be
// shipped to an aggregator. Level filtering happens in the slog handler.
//
// # Subsystems
//
//   - Runner: suite orchestration
//   - Executor: step execution
//   - LoadGen: load and stress generation
//   - Browser: browser automation
//   - Server: HTTP and websocket hosting
//   - Storage: run persistence
//   - Config: configuration loading
//   - MCP: MCP tool server
//
// Before initialization every helper except Error is a no-op; Error falls back
// to stderr so failures during startup are never silently lost.
package logging
