package executor

import (
	"context"
	"fmt"
	"net/http"

	"assay/internal/suite"
	"assay/internal/variables"
)

// ExtractionExecutor copies a value from the last response into a variable.
type ExtractionExecutor struct{}

func (e *ExtractionExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.ExtractionConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid extraction configuration", Error: "extraction step requires an extraction config"}
	}
	if cfg.VariableName == "" {
		return Result{Message: "Invalid extraction configuration", Error: "variableName is required"}
	}

	resp := env.Vars.LastResponse()
	if resp == nil {
		return Result{Message: "No response to extract from", Error: "no previous request step produced a response"}
	}

	value, found := extract(resp, cfg)
	if !found {
		value = cfg.DefaultValue
	}
	env.Vars.Set(cfg.VariableName, value)
	stored, _ := env.Vars.Get(cfg.VariableName)

	if !found {
		return Result{
			Success: true,
			Message: fmt.Sprintf("%s not found, %s set to default %s", describePath(cfg), cfg.VariableName, describe(stored)),
			Data:    extractionData(cfg.VariableName, stored, true),
		}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Extracted %s = %s", cfg.VariableName, describe(stored)),
		Data:    extractionData(cfg.VariableName, stored, false),
	}
}

func extract(resp *variables.HTTPResponse, cfg *suite.ExtractionConfig) (any, bool) {
	switch cfg.Source {
	case suite.SourceStatus:
		return float64(resp.Status), true
	case suite.SourceHeader:
		if v, ok := resp.Headers[http.CanonicalHeaderKey(cfg.JSONPath)]; ok {
			return v, true
		}
		for k, v := range resp.Headers {
			if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(cfg.JSONPath) {
				return v, true
			}
		}
		return nil, false
	default:
		return variables.LookupResponse(resp, cfg.JSONPath)
	}
}

func describePath(cfg *suite.ExtractionConfig) string {
	if cfg.Source == suite.SourceHeader {
		return "header " + cfg.JSONPath
	}
	if cfg.JSONPath == "" {
		return "body"
	}
	return "path " + cfg.JSONPath
}

func extractionData(name string, value any, usedDefault bool) map[string]any {
	return map[string]any{
		"variable":    name,
		"value":       value,
		"usedDefault": usedDefault,
	}
}
