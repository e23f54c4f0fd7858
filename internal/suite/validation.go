package suite

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSteps is returned for a suite without steps.
var ErrNoSteps = errors.New("test suite has no steps")

// ValidationError describes a single problem in a suite definition
type ValidationError struct {
	// Step is the 1-based step number, 0 for suite-level problems
	Step int `json:"step,omitempty"`
	// StepName is the display name of the offending step
	StepName string `json:"stepName,omitempty"`
	// Field is the offending field
	Field string `json:"field"`
	// Message describes the problem
	Message string `json:"message"`
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("step %d (%s): %s: %s", e.Step, e.StepName, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds every problem found in a suite
type ValidationErrors []ValidationError

// Error implements the error interface for the collection
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(ve), strings.Join(parts, "; "))
}

// Validate checks a suite for structural problems that would make a run
// meaningless. It does not check whether a step kind is supported by the
// suite's test type; that is decided by the executor registry.
func Validate(s *TestSuite) error {
	if s == nil {
		return ValidationErrors{{Field: "suite", Message: "is required"}}
	}

	var errs ValidationErrors
	add := func(step int, name, field, format string, args ...any) {
		errs = append(errs, ValidationError{Step: step, StepName: name, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.Name) == "" {
		add(0, "", "name", "is required")
	}
	if !s.TestType.Valid() {
		add(0, "", "testType", "must be one of API, Functional, Performance (got %q)", s.TestType)
	}
	if len(s.Steps) == 0 {
		add(0, "", "steps", ErrNoSteps.Error())
	}

	ids := make(map[string]int)
	for i, step := range s.Steps {
		n := i + 1
		name := step.DisplayName()

		if step.ID != "" {
			if prev, ok := ids[step.ID]; ok {
				add(n, name, "id", "duplicates step %d", prev)
			}
			ids[step.ID] = n
		}

		switch cfg := step.Config.(type) {
		case *RequestConfig:
			if cfg.URL == "" {
				add(n, name, "config.url", "is required")
			}
		case *ExtractionConfig:
			if cfg.VariableName == "" {
				add(n, name, "config.variableName", "is required")
			}
			switch cfg.Source {
			case "", SourceBody, SourceHeader, SourceStatus:
			default:
				add(n, name, "config.source", "must be body, header or status")
			}
		case *ConditionalConfig:
			if cfg.Variable == "" {
				add(n, name, "config.variable", "is required")
			}
			if !validOperator(cfg.Operator) {
				add(n, name, "config.operator", "unknown operator %q", cfg.Operator)
			}
		case *NavigationConfig:
			if cfg.URL == "" {
				add(n, name, "config.url", "is required")
			}
			if cfg.WaitUntil == WaitSelector && cfg.WaitSelector == "" {
				add(n, name, "config.waitSelector", "is required when waitUntil is selector")
			}
		case *InteractionConfig:
			if cfg.Selector == "" && cfg.Action != ActionScroll {
				add(n, name, "config.selector", "is required")
			}
			if !validAction(cfg.Action) {
				add(n, name, "config.action", "unknown action %q", cfg.Action)
			}
		case *AssertionConfig:
			if cfg.Selector == "" {
				add(n, name, "config.selector", "is required")
			}
			if !validAssertion(cfg.Assertion) {
				add(n, name, "config.assertion", "unknown assertion %q", cfg.Assertion)
			}
		case *LoadTestConfig:
			validateLoad(cfg, n, name, add)
		case *StressTestConfig:
			if cfg.StepSize <= 0 {
				add(n, name, "config.stepSize", "must be greater than 0")
			}
			if cfg.MaxUsers <= 0 {
				add(n, name, "config.maxUsers", "must be greater than 0")
			}
			if cfg.Duration <= 0 {
				add(n, name, "config.duration", "must be greater than 0")
			}
		case *UnknownConfig:
			add(n, name, "type", "unknown step type %q", step.Type)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateLoad(cfg *LoadTestConfig, n int, name string, add func(int, string, string, string, ...any)) {
	if cfg.VirtualUsers <= 0 {
		add(n, name, "config.virtualUsers", "must be greater than 0")
	}
	if cfg.Duration <= 0 {
		add(n, name, "config.duration", "must be greater than 0")
	}
	if cfg.MaxErrorRate != nil && (*cfg.MaxErrorRate < 0 || *cfg.MaxErrorRate > 1) {
		add(n, name, "config.maxErrorRate", "must be between 0 and 1")
	}
}

func validOperator(op string) bool {
	switch op {
	case OpEquals, OpContains, OpGreaterThan, OpLessThan, OpExists, OpNotExists:
		return true
	}
	return false
}

func validAction(action string) bool {
	switch action {
	case ActionClick, ActionType, ActionSelect, ActionCheck, ActionUncheck, ActionHover, ActionScroll:
		return true
	}
	return false
}

func validAssertion(a string) bool {
	switch a {
	case AssertVisible, AssertExists, AssertContainsText, AssertHasClass, AssertHasValue:
		return true
	}
	return false
}
