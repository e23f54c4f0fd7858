package executor

import (
	"context"
	"time"

	"assay/internal/browser"
	"assay/internal/loadgen"
	"assay/internal/suite"
	"assay/internal/variables"
)

// Result is what an executor reports for a step. The runner adds the step
// number, name and duration.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Progress is an intermediate update from a long running step.
type Progress struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Env is the run state an executor may read and modify.
type Env struct {
	// BaseURL is prefixed to relative URLs
	BaseURL string
	// Vars is the run's variable store
	Vars *variables.Store
	// Browser is set for Functional runs only
	Browser browser.Session
	// Progress emits step_progress events; never nil inside the runner
	Progress func(Progress)
}

func (e *Env) progress(p Progress) {
	if e != nil && e.Progress != nil {
		e.Progress(p)
	}
}

// Executor runs one kind of step.
type Executor interface {
	Execute(ctx context.Context, step suite.Step, env *Env) Result
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, step suite.Step, env *Env) Result

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	return f(ctx, step, env)
}

// Settings are the defaults executors fall back to when a step leaves a
// value unset.
type Settings struct {
	RequestTimeout    time.Duration
	BrowserTimeout    time.Duration
	NavigationTimeout time.Duration
	LoadThinkTime     time.Duration
	LoadErrorPenalty  time.Duration
	LoadTimeout       time.Duration
	// MaxVirtualUsers caps loadTest and stressTest concurrency when positive
	MaxVirtualUsers int
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		RequestTimeout:    30 * time.Second,
		BrowserTimeout:    5 * time.Second,
		NavigationTimeout: 30 * time.Second,
		LoadThinkTime:     loadgen.DefaultThinkTime,
		LoadErrorPenalty:  loadgen.DefaultErrorPenalty,
		LoadTimeout:       loadgen.DefaultRequestTimeout,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = d.RequestTimeout
	}
	if s.BrowserTimeout <= 0 {
		s.BrowserTimeout = d.BrowserTimeout
	}
	if s.NavigationTimeout <= 0 {
		s.NavigationTimeout = d.NavigationTimeout
	}
	if s.LoadThinkTime <= 0 {
		s.LoadThinkTime = d.LoadThinkTime
	}
	if s.LoadErrorPenalty <= 0 {
		s.LoadErrorPenalty = d.LoadErrorPenalty
	}
	if s.LoadTimeout <= 0 {
		s.LoadTimeout = d.LoadTimeout
	}
	return s
}
