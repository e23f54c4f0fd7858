package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"assay/internal/loadgen"
	"assay/internal/suite"
	"assay/pkg/logging"
)

// LoadTestExecutor runs a constant-concurrency load phase.
type LoadTestExecutor struct {
	Generator *loadgen.Generator
	Settings  Settings
}

func buildLoadOptions(cfg *suite.LoadTestConfig, env *Env, settings Settings) loadgen.Options {
	target := cfg.TargetURL
	if target == "" {
		target = env.BaseURL
	} else {
		target = ResolveURL(env.BaseURL, target, env.Vars)
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(cfg.Headers)+1)
	headers["Content-Type"] = "application/json"
	for k, v := range cfg.Headers {
		headers[k] = env.Vars.Substitute(v)
	}

	var body []byte
	if methodHasBody(method) {
		body = renderBody(cfg.Body, env.Vars)
	}

	think := settings.LoadThinkTime
	if cfg.ThinkTime != nil {
		think = time.Duration(*cfg.ThinkTime) * time.Millisecond
	}
	timeout := settings.LoadTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Millisecond
	}

	return loadgen.Options{
		TargetURL:      target,
		Method:         method,
		Headers:        headers,
		Body:           body,
		VirtualUsers:   cfg.VirtualUsers,
		Duration:       cfg.DurationValue(),
		ThinkTime:      think,
		RequestTimeout: timeout,
		ErrorPenalty:   settings.LoadErrorPenalty,
		RPS:            cfg.RPS,
	}
}

func capUsers(requested, max int) (int, bool) {
	if max > 0 && requested > max {
		return max, true
	}
	return requested, false
}

func (e *LoadTestExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.LoadTestConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid load test configuration", Error: "loadTest step requires a load config"}
	}

	opts := buildLoadOptions(cfg, env, e.Settings)
	if users, capped := capUsers(opts.VirtualUsers, e.Settings.MaxVirtualUsers); capped {
		logging.Warn("Executor", "Step %q: virtual users capped from %d to %d", step.DisplayName(), opts.VirtualUsers, users)
		opts.VirtualUsers = users
	}
	opts.OnTick = func(m loadgen.Metrics) {
		env.progress(Progress{
			Message: fmt.Sprintf("%d requests, %d errors, %.1f req/s", m.TotalRequests, m.TotalErrors, m.RequestsPerSecond),
			Data:    m,
		})
	}

	m, err := e.Generator.Run(ctx, opts)
	if err != nil {
		return Result{Message: "Load test could not start", Error: err.Error()}
	}

	summary := fmt.Sprintf("%d users for %gs: %d requests, %d errors, avg %.1fms, %.1f req/s",
		m.VirtualUsers, m.Duration, m.TotalRequests, m.TotalErrors, m.AvgResponseTime, m.RequestsPerSecond)

	var reasons []string
	if m.TotalRequests == 0 {
		reasons = append(reasons, "no requests completed")
	}
	if cfg.MaxErrorRate != nil && m.ErrorRate > *cfg.MaxErrorRate {
		reasons = append(reasons, fmt.Sprintf("error rate %.1f%% exceeds %.1f%%", m.ErrorRate*100, *cfg.MaxErrorRate*100))
	}
	if cfg.MaxAvgResponseTime != nil && m.AvgResponseTime > *cfg.MaxAvgResponseTime {
		reasons = append(reasons, fmt.Sprintf("average response time %.1fms exceeds %.1fms", m.AvgResponseTime, *cfg.MaxAvgResponseTime))
	}

	if len(reasons) > 0 {
		joined := strings.Join(reasons, "; ")
		return Result{Message: "Load test failed: " + joined, Data: m, Error: joined}
	}
	return Result{Success: true, Message: "Load test completed: " + summary, Data: m}
}

// StressTestExecutor ramps concurrency until the target degrades.
type StressTestExecutor struct {
	Generator *loadgen.Generator
	Settings  Settings
}

func (e *StressTestExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.StressTestConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid stress test configuration", Error: "stressTest step requires a stress config"}
	}

	opts := loadgen.StressOptions{
		Options:    buildLoadOptions(&cfg.LoadTestConfig, env, e.Settings),
		StartUsers: cfg.StartUsers,
		StepSize:   cfg.StepSize,
		MaxUsers:   cfg.MaxUsers,
	}
	if cfg.ErrorThreshold != nil {
		opts.ErrorThreshold = *cfg.ErrorThreshold
	}
	if users, capped := capUsers(opts.MaxUsers, e.Settings.MaxVirtualUsers); capped {
		logging.Warn("Executor", "Step %q: max users capped from %d to %d", step.DisplayName(), opts.MaxUsers, users)
		opts.MaxUsers = users
	}
	opts.OnPhase = func(p loadgen.Phase) {
		env.progress(Progress{
			Message: fmt.Sprintf("%d users: %d requests, %.1f%% errors", p.Users, p.Metrics.TotalRequests, p.Metrics.ErrorRate*100),
			Data:    p,
		})
	}

	res, err := e.Generator.Stress(ctx, opts)
	if err != nil {
		return Result{Message: "Stress test could not start", Data: res, Error: err.Error()}
	}

	if res.Halted {
		return Result{
			Success: true,
			Message: fmt.Sprintf("Stress test halted at %d users (stable up to %d users)", res.BreakingPoint, res.MaxStableUsers),
			Data:    res,
		}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Stress test completed %d phases, stable up to %d users", len(res.Phases), res.MaxStableUsers),
		Data:    res,
	}
}
