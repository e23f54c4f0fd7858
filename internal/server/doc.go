// Package server hosts suite execution over HTTP.
//
// The REST API under /api/v1 starts runs synchronously or in the background,
// lists and deletes stored results and validates suite documents. The /ws
// endpoint gives each websocket connection its own orchestrator and streams
// progress events to the client as they happen.
//
// # Websocket protocol
//
// Client messages:
//
//	{"type":"execute","suite":{...},"baseUrl":"http://..."}
//	{"type":"stop"}
//	{"type":"ping"}
//
// The server pushes every progress event verbatim, followed by a
// {"type":"run_result","payload":{...}} message once the run has finished.
// Protocol problems are answered with {"type":"error","error":"..."} and pings
// with {"type":"pong"}. A second execute while a run is active on the same
// connection is rejected with an error message.
//
// Finished runs from both surfaces are saved to the configured RunStore.
package server
