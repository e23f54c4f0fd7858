package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"assay/internal/browser"
	"assay/internal/config"
	"assay/internal/executor"
	"assay/internal/runner"
	"assay/internal/storage"
	"assay/internal/suite"
	"assay/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const subsystem = "Server"

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Config config.ServerConfig
	// Store receives every finished run
	Store storage.RunStore
	// Registry resolves step executors for all runs
	Registry *executor.Registry
	// BrowserProvider supplies sessions for Functional suites
	BrowserProvider browser.Provider
	// DefaultStopOnFailure applies to suites that leave stopOnFailure unset
	DefaultStopOnFailure bool
}

// Server is the HTTP and websocket host for suite runs.
type Server struct {
	cfg      config.ServerConfig
	store    storage.RunStore
	registry *executor.Registry
	browsers browser.Provider

	defaultStopOnFailure bool

	router   chi.Router
	upgrader websocket.Upgrader
	runs     *runTracker
	conns    *connLimiter

	// runCtx is cancelled on shutdown so background runs stop between steps
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a server. Store is required.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server requires a run store")
	}
	registry := opts.Registry
	if registry == nil {
		registry = executor.NewDefaultRegistry(executor.Options{})
	}
	cfg := opts.Config
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:                  cfg,
		store:                opts.Store,
		registry:             registry,
		browsers:             opts.BrowserProvider,
		defaultStopOnFailure: opts.DefaultStopOnFailure,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		runs:      newRunTracker(),
		conns:     newConnLimiter(cfg.MaxConnections),
		runCtx:    runCtx,
		cancelRun: cancel,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWebsocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.handleCreateRun)
			r.Get("/", s.handleListRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Post("/stop", s.handleStopRun)
				r.Get("/events", s.handleRunEvents)
			})
		})
		r.Post("/suites/validate", s.handleValidateSuite)
	})
	return r
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// newOrchestrator builds a single-use orchestrator whose run will carry runID.
func (s *Server) newOrchestrator(runID string) *runner.Orchestrator {
	opts := runner.Options{
		Registry:        s.registry,
		BrowserProvider: s.browsers,
	}
	if runID != "" {
		opts.NewRunID = func() string { return runID }
	}
	return runner.New(opts)
}

func (s *Server) prepareSuite(ts *suite.TestSuite, baseURL string) {
	if baseURL != "" {
		ts.BaseURL = baseURL
	}
	ts.SetDefaultStopOnFailure(s.defaultStopOnFailure)
}

// saveResult persists a finished run. Failures are logged; the result is
// still returned to the caller.
func (s *Server) saveResult(result *runner.RunResult) {
	if result == nil || result.RunID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, result); err != nil {
		logging.Error(subsystem, err, "Failed to save run %s", result.RunID)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully:
// background runs are asked to stop, in-flight requests drain, and
// websocket connections are closed.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info(subsystem, "Listening on http://%s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info(subsystem, "Shutting down")

		s.cancelRun()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.conns.closeAll()
		s.waitForRuns(shutdownCtx)
		return err
	})

	return g.Wait()
}

// Close stops background runs and waits for them to be saved.
func (s *Server) Close() {
	s.cancelRun()
	s.conns.closeAll()
	s.wg.Wait()
}

func (s *Server) waitForRuns(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn(subsystem, "Timed out waiting for %d background runs", s.runs.activeCount())
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug(subsystem, "%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
