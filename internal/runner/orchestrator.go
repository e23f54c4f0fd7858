package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"assay/internal/browser"
	"assay/internal/events"
	"assay/internal/executor"
	"assay/internal/loadgen"
	"assay/internal/metrics"
	"assay/internal/suite"
	"assay/internal/variables"
	"assay/pkg/logging"

	"github.com/google/uuid"
)

// Options configures an Orchestrator.
type Options struct {
	// Registry resolves step executors; nil uses the default registry
	Registry *executor.Registry
	// BrowserProvider supplies sessions for Functional suites
	BrowserProvider browser.Provider
	// NewRunID generates run identifiers; nil uses random UUIDs
	NewRunID func() string
}

// Orchestrator executes one suite at a time. Each run owns its variable
// store and result list; nothing is shared between runs.
type Orchestrator struct {
	registry *executor.Registry
	browsers browser.Provider
	newRunID func() string

	mu            sync.Mutex
	running       bool
	stopRequested bool
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	registry := opts.Registry
	if registry == nil {
		registry = executor.NewDefaultRegistry(executor.Options{})
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	return &Orchestrator{
		registry: registry,
		browsers: opts.BrowserProvider,
		newRunID: newRunID,
	}
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Stop asks the current run to end after the step in progress.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		o.stopRequested = true
	}
}

// begin claims the orchestrator for a run. A Stop arriving at any point
// after begin returns is observed by that run.
func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	o.stopRequested = false
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	o.stopRequested = false
}

func (o *Orchestrator) stopping() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopRequested
}

// Run executes s step by step and reports progress to reporter. Execution
// failures are carried in the result; the only error is ErrAlreadyRunning.
// Cancelling ctx behaves like Stop and additionally aborts the step in
// progress where its executor honours ctx.
func (o *Orchestrator) Run(ctx context.Context, s *suite.TestSuite, reporter events.Reporter) (*RunResult, error) {
	if !o.begin() {
		return nil, ErrAlreadyRunning
	}
	defer o.end()

	if reporter == nil {
		reporter = events.Nop()
	}
	done := metrics.RunStarted()
	defer done()

	r := &run{
		orch:     o,
		id:       o.newRunID(),
		suite:    s,
		reporter: reporter,
		vars:     variables.NewStore(),
		started:  time.Now(),
	}
	r.log = logging.With("Runner", "run_id", r.id)

	result := r.execute(ctx)
	metrics.RecordRun(result.TestType, string(result.Status))
	return result, nil
}

type run struct {
	orch     *Orchestrator
	id       string
	suite    *suite.TestSuite
	reporter events.Reporter
	vars     *variables.Store
	log      *slog.Logger
	started  time.Time

	steps []StepResult
}

func (r *run) report(t events.EventType, stepNumber int, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Reporter panicked", "event", string(t), "panic", fmt.Sprint(rec))
		}
	}()
	r.reporter.Report(events.New(t, r.id, stepNumber, payload))
}

// preconditions returns a reason the suite cannot run at all. On success
// the run holds its own copy of the suite, so later edits by the caller do
// not reach executing steps.
func (r *run) preconditions() error {
	switch {
	case r.suite == nil:
		return errors.New("no test suite provided")
	case r.suite.Name == "":
		return errors.New("test suite name is required")
	case len(r.suite.Steps) == 0:
		return suite.ErrNoSteps
	}
	copied, err := r.suite.Clone()
	if err != nil {
		return err
	}
	r.suite = copied
	return nil
}

func (r *run) execute(ctx context.Context) *RunResult {
	if err := r.preconditions(); err != nil {
		r.log.Warn("Suite rejected", "error", err)
		result := r.finish(StatusError, 0, err.Error())
		r.report(events.EventSuiteError, 0, events.ErrorPayload{Error: err.Error()})
		return result
	}

	s := r.suite
	total := len(s.Steps)
	r.log.Info("Starting suite", "suite", s.Name, "test_type", string(s.TestType), "steps", total)
	r.report(events.EventSuiteStart, 0, events.SuiteStartPayload{
		SuiteName:  s.Name,
		TestType:   string(s.TestType),
		TotalSteps: total,
		BaseURL:    s.BaseURL,
	})

	env := &executor.Env{BaseURL: s.BaseURL, Vars: r.vars}

	if s.TestType == suite.TestTypeFunctional {
		session, err := r.acquireBrowser(ctx)
		if err != nil {
			msg := fmt.Sprintf("suite setup failed: %v", err)
			r.log.Error("Browser acquisition failed", "error", err)
			result := r.finish(StatusError, 0, msg)
			r.report(events.EventSuiteError, 0, events.ErrorPayload{Error: msg})
			return result
		}
		defer func() {
			if err := session.Close(); err != nil {
				r.log.Warn("Failed to release browser session", "error", err)
			}
		}()
		env.Browser = session
	}

	stopOnFailure := s.ShouldStopOnFailure()
	stopped := false
	haltedAt := 0

	for i, step := range s.Steps {
		if r.orch.stopping() || ctx.Err() != nil {
			stopped = true
			break
		}

		res := r.runStep(ctx, i+1, total, step, env)
		r.steps = append(r.steps, res)

		if !res.Success && stopOnFailure {
			r.log.Info("Stopping after failed step", "step", res.StepNumber, "step_name", res.StepName)
			haltedAt = res.StepNumber
			break
		}
	}

	status := StatusPassed
	for _, sr := range r.steps {
		if !sr.Success {
			status = StatusFailed
			break
		}
	}
	if stopped {
		status = StatusStopped
		haltedAt = len(r.steps)
	}

	result := r.finish(status, haltedAt, "")
	r.log.Info("Suite finished", "status", string(result.Status),
		"passed", result.PassedSteps, "failed", result.FailedSteps, "duration_ms", result.Duration)

	if stopped {
		r.report(events.EventSuiteStopped, 0, result)
	} else {
		r.report(events.EventSuiteComplete, 0, result)
	}
	return result
}

func (r *run) acquireBrowser(ctx context.Context) (browser.Session, error) {
	if r.orch.browsers == nil {
		return nil, errors.New("no browser provider configured")
	}
	session, err := r.orch.browsers.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("browser provider returned no session")
	}
	return session, nil
}

func (r *run) runStep(ctx context.Context, number, total int, step suite.Step, env *executor.Env) StepResult {
	name := step.DisplayName()
	stepPayload := events.StepPayload{
		StepNumber: number,
		StepName:   name,
		StepType:   string(step.Type),
		TotalSteps: total,
	}
	r.report(events.EventStepPrepare, number, stepPayload)

	result := StepResult{
		StepNumber: number,
		StepID:     step.ID,
		StepName:   name,
		StepType:   string(step.Type),
	}

	exec, ok := r.orch.registry.Lookup(r.suite.TestType, step.Type)
	if !ok {
		result.Message = "Unknown step type"
		result.Error = fmt.Sprintf("no executor for step type %q in %s suites", step.Type, r.suite.TestType)
		r.complete(result)
		return result
	}

	r.report(events.EventStepStart, number, stepPayload)

	stepEnv := *env
	stepEnv.Progress = func(p executor.Progress) {
		r.report(events.EventStepProgress, number, events.ProgressPayload{
			StepNumber: number,
			Message:    p.Message,
			Data:       p.Data,
		})
	}

	start := time.Now()
	res := r.safeExecute(ctx, exec, step, &stepEnv)
	elapsed := time.Since(start)

	result.Success = res.Success
	result.Message = res.Message
	result.Data = res.Data
	result.Error = res.Error
	result.Duration = elapsed.Milliseconds()

	metrics.RecordStep(string(step.Type), res.Success, elapsed)
	recordLoad(res.Data)

	r.complete(result)
	return result
}

// safeExecute converts an executor panic into a failed result.
func (r *run) safeExecute(ctx context.Context, exec executor.Executor, step suite.Step, env *executor.Env) (res executor.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Step executor panicked", "step", step.DisplayName(), "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			res = executor.Result{
				Message: fmt.Sprintf("Step crashed: %v", rec),
				Error:   fmt.Sprint(rec),
			}
		}
	}()
	return exec.Execute(ctx, step, env)
}

func (r *run) complete(result StepResult) {
	if !result.Success {
		r.log.Debug("Step failed", "step", result.StepNumber, "message", result.Message)
		r.report(events.EventStepError, result.StepNumber, events.ErrorPayload{
			StepNumber: result.StepNumber,
			StepName:   result.StepName,
			Error:      firstNonEmpty(result.Error, result.Message),
		})
	}
	r.report(events.EventStepComplete, result.StepNumber, result)
}

func (r *run) finish(status Status, haltedAt int, errMsg string) *RunResult {
	result := &RunResult{
		RunID:         r.id,
		Status:        status,
		Steps:         r.steps,
		Variables:     r.vars.Snapshot(),
		StartedAt:     r.started,
		CompletedAt:   time.Now(),
		StoppedAtStep: haltedAt,
		Error:         errMsg,
	}
	if result.Steps == nil {
		result.Steps = []StepResult{}
	}
	if r.suite != nil {
		result.SuiteName = r.suite.Name
		result.TestType = string(r.suite.TestType)
		result.BaseURL = r.suite.BaseURL
		result.TotalSteps = len(r.suite.Steps)
	}
	for _, sr := range r.steps {
		if sr.Success {
			result.PassedSteps++
		} else {
			result.FailedSteps++
		}
		result.Duration += sr.Duration
	}
	result.Success = status == StatusPassed
	return result
}

func recordLoad(data any) {
	switch d := data.(type) {
	case loadgen.Metrics:
		metrics.RecordLoadRequests(d.TotalRequests, d.TotalErrors)
	case loadgen.StressResult:
		for _, p := range d.Phases {
			metrics.RecordLoadRequests(p.Metrics.TotalRequests, p.Metrics.TotalErrors)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
