package cli

import (
	"fmt"
	"strings"

	"assay/internal/runner"
)

// RunFailedError indicates a suite ran to a verdict other than passed.
type RunFailedError struct {
	// Suite is the name of the suite that failed.
	Suite string
	// Status is the run's overall status.
	Status runner.Status
	// Message is the run error, if any.
	Message string
}

// Error returns a one-line summary of the failed run.
func (e *RunFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("suite %q %s", e.Suite, e.Status)
	}
	return fmt.Sprintf("suite %q %s: %s", e.Suite, e.Status, e.Message)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *RunFailedError) Is(target error) bool {
	_, ok := target.(*RunFailedError)
	return ok
}

// NewRunFailedError returns a RunFailedError for result, or nil when the
// run passed.
func NewRunFailedError(result *runner.RunResult) error {
	if result == nil || result.Status == runner.StatusPassed {
		return nil
	}
	return &RunFailedError{Suite: result.SuiteName, Status: result.Status, Message: result.Error}
}

// InvalidSuiteError indicates one or more suites could not be loaded or
// failed validation.
type InvalidSuiteError struct {
	// Paths are the offending suite files; empty for inline suites.
	Paths []string
	// Reason is the underlying error, if there is a single one.
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *InvalidSuiteError) Error() string {
	var b strings.Builder
	switch len(e.Paths) {
	case 0:
		b.WriteString("invalid suite")
	case 1:
		fmt.Fprintf(&b, "invalid suite %s", e.Paths[0])
	default:
		fmt.Fprintf(&b, "%d invalid suites: %s", len(e.Paths), strings.Join(e.Paths, ", "))
	}
	if e.Reason != nil {
		fmt.Fprintf(&b, ": %v", e.Reason)
	}
	b.WriteString("\n\nTo see every problem, run:\n  assay validate <path>")
	return b.String()
}

// Unwrap returns the underlying error.
func (e *InvalidSuiteError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *InvalidSuiteError) Is(target error) bool {
	_, ok := target.(*InvalidSuiteError)
	return ok
}
