package executor

import (
	"context"
	"fmt"

	"assay/internal/suite"
)

// ConditionalExecutor evaluates a predicate over a run variable. It reports
// the outcome and the suggested next step but never alters the step order.
type ConditionalExecutor struct{}

func (e *ConditionalExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.ConditionalConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid conditional configuration", Error: "conditional step requires a conditional config"}
	}
	if cfg.Variable == "" {
		return Result{Message: "Invalid conditional configuration", Error: "variable is required"}
	}

	actual, exists := env.Vars.Get(cfg.Variable)
	met, err := evaluateCondition(cfg.Operator, actual, exists, cfg.Value)
	if err != nil {
		return Result{Message: "Invalid conditional configuration", Error: err.Error()}
	}

	next := cfg.FalseStep
	if met {
		next = cfg.TrueStep
	}

	msg := fmt.Sprintf("Condition %s %s", cfg.Variable, cfg.Operator)
	if cfg.Operator != suite.OpExists && cfg.Operator != suite.OpNotExists {
		msg += " " + describe(cfg.Value)
	}
	if met {
		msg += " is true"
	} else {
		msg += " is false"
	}
	if next != "" {
		msg += fmt.Sprintf(" (next: %s)", next)
	}

	return Result{
		Success: true,
		Message: msg,
		Data: map[string]any{
			"conditionMet": met,
			"nextStep":     next,
			"variable":     cfg.Variable,
			"actual":       actual,
		},
	}
}

func evaluateCondition(op string, actual any, exists bool, expected any) (bool, error) {
	switch op {
	case suite.OpExists:
		return exists && actual != nil, nil
	case suite.OpNotExists:
		return !exists || actual == nil, nil
	case suite.OpEquals:
		return exists && looseEqual(actual, expected), nil
	case suite.OpContains:
		return exists && containsValue(actual, expected), nil
	case suite.OpGreaterThan:
		return exists && actual != nil && compareOrdered(actual, expected) > 0, nil
	case suite.OpLessThan:
		return exists && actual != nil && compareOrdered(actual, expected) < 0, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}
