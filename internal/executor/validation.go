package executor

import (
	"context"
	"fmt"
	"strings"

	"assay/internal/suite"
	"assay/internal/variables"
)

// ValidationExecutor checks the last response against every configured
// criterion and reports all failures together.
type ValidationExecutor struct{}

func (e *ValidationExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.ValidationConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid validation configuration", Error: "validation step requires a validation config"}
	}

	resp := env.Vars.LastResponse()
	if resp == nil {
		return Result{Message: "No response to validate", Error: "no previous request step produced a response"}
	}

	var passed, failed []string

	if cfg.StatusCode != nil {
		if resp.Status == *cfg.StatusCode {
			passed = append(passed, fmt.Sprintf("status %d", resp.Status))
		} else {
			failed = append(failed, fmt.Sprintf("expected status %d, got %d", *cfg.StatusCode, resp.Status))
		}
	}

	if cfg.JSONPath != "" {
		actual, found := variables.LookupResponse(resp, cfg.JSONPath)
		switch {
		case !found:
			failed = append(failed, fmt.Sprintf("path %s not found in response", cfg.JSONPath))
		case cfg.ExpectedValue != nil && !looseEqual(actual, cfg.ExpectedValue):
			failed = append(failed, fmt.Sprintf("expected %s at %s, got %s", describe(cfg.ExpectedValue), cfg.JSONPath, describe(actual)))
		default:
			passed = append(passed, fmt.Sprintf("%s = %s", cfg.JSONPath, describe(actual)))
		}
	}

	if cfg.ResponseTime != nil {
		if resp.ResponseTime <= *cfg.ResponseTime {
			passed = append(passed, fmt.Sprintf("response time %dms", resp.ResponseTime))
		} else {
			failed = append(failed, fmt.Sprintf("response time %dms exceeds %dms", resp.ResponseTime, *cfg.ResponseTime))
		}
	}

	if cfg.BodyContains != "" {
		needle := env.Vars.Substitute(cfg.BodyContains)
		if strings.Contains(resp.RawBody, needle) {
			passed = append(passed, fmt.Sprintf("body contains %q", needle))
		} else {
			failed = append(failed, fmt.Sprintf("body does not contain %q", needle))
		}
	}

	data := map[string]any{
		"passed": passed,
		"failed": failed,
		"status": resp.Status,
	}

	if len(failed) > 0 {
		joined := strings.Join(failed, "; ")
		return Result{Message: "Validation failed: " + joined, Data: data, Error: joined}
	}
	if len(passed) == 0 {
		return Result{Success: true, Message: "No validation criteria configured", Data: data}
	}
	return Result{Success: true, Message: "Validation passed: " + strings.Join(passed, ", "), Data: data}
}
