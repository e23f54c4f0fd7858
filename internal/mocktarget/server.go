package mocktarget

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"sync"
	"time"

	"assay/internal/template"
	"assay/pkg/logging"

	"github.com/go-chi/chi/v5"
)

const subsystem = "MockTarget"

// Server serves a Config over HTTP.
type Server struct {
	config *Config
	engine *template.Engine
	router chi.Router

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	port       int
	running    bool
	serveErr   error
	hits       map[string]int
}

// New builds the router for cfg. cfg is validated first.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mock target config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		engine: template.New(),
		hits:   make(map[string]int),
	}

	router := chi.NewRouter()
	for i := range cfg.Routes {
		route := cfg.Routes[i]
		router.Method(route.Method, route.Path, s.routeHandler(route))
	}
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no mock route for %s %s", r.Method, r.URL.Path),
		})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error": fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
		})
	})
	s.router = router

	return s, nil
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on port and serves in the background. Port 0 picks a free
// port; Port reports the one chosen.
func (s *Server) Start(ctx context.Context, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("mock target already running on port %d", s.port)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serveErr = nil

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
			logging.Error(subsystem, err, "Mock target stopped serving")
		}
	}()

	s.running = true
	logging.Info(subsystem, "Mock target %q listening on port %d with %d routes", s.config.Name, s.port, len(s.config.Routes))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	shutdownCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.httpServer.Close()
		logging.Warn(subsystem, "Force closed mock target: %v", err)
	}

	s.running = false
	s.httpServer = nil
	s.listener = nil
	logging.Info(subsystem, "Mock target on port %d stopped", s.port)
	return nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// URL returns the base URL while running, or "".
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Err returns the error that ended serving, if any.
func (s *Server) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serveErr
}

// Hits returns how often the route "METHOD /pattern" was served.
func (s *Server) Hits(method, pattern string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[method+" "+pattern]
}

func (s *Server) routeHandler(route Route) http.HandlerFunc {
	key := route.Method + " " + route.Path
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[key]++
		s.mu.Unlock()

		args := requestArgs(r)
		resp := selectResponse(route.Responses, args)

		if resp.Delay != "" {
			delay, _ := time.ParseDuration(resp.Delay)
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		lookup := template.MapLookup(args)
		for name, value := range resp.Headers {
			w.Header().Set(name, s.engine.Substitute(value, lookup))
		}

		logging.Debug(subsystem, "%s %s -> %d", r.Method, r.URL.Path, resp.Status)

		switch body := resp.Body.(type) {
		case nil:
			w.WriteHeader(resp.Status)
		case string:
			if w.Header().Get("Content-Type") == "" {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			}
			w.WriteHeader(resp.Status)
			_, _ = io.WriteString(w, s.engine.Substitute(body, lookup))
		default:
			writeJSON(w, resp.Status, s.engine.Replace(normalizeYAML(body), lookup))
		}
	}
}

// requestArgs collects template values for a request: top-level JSON body
// fields, overridden by query values, overridden by path parameters.
func requestArgs(r *http.Request) map[string]interface{} {
	args := make(map[string]interface{})

	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err == nil && len(data) > 0 {
			var fields map[string]interface{}
			if json.Unmarshal(data, &fields) == nil {
				for k, v := range fields {
					args[k] = v
				}
			}
		}
	}

	for k, values := range r.URL.Query() {
		if len(values) > 0 {
			args[k] = values[0]
		}
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, k := range rctx.URLParams.Keys {
			if k == "*" || i >= len(rctx.URLParams.Values) {
				continue
			}
			args[k] = rctx.URLParams.Values[i]
		}
	}

	return args
}

func selectResponse(responses []Response, args map[string]interface{}) Response {
	for _, resp := range responses {
		if matches(resp.When, args) {
			return resp
		}
	}
	return responses[len(responses)-1]
}

func matches(when, args map[string]interface{}) bool {
	for key, expected := range when {
		actual, ok := args[key]
		if !ok || !valuesEqual(expected, actual) {
			return false
		}
	}
	return true
}

func valuesEqual(expected, actual interface{}) bool {
	if reflect.DeepEqual(expected, actual) {
		return true
	}
	return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
}

// normalizeYAML converts map[interface{}]interface{} values, which older
// YAML decoders produce, so the body can be encoded as JSON.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return value
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error(subsystem, err, "Failed to encode response body")
	}
}
