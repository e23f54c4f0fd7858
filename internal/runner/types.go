package runner

import (
	"errors"
	"time"
)

// ErrAlreadyRunning is returned when Run is called on an orchestrator that
// is still executing a suite.
var ErrAlreadyRunning = errors.New("a suite is already running on this orchestrator")

// Status is the overall outcome of a run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// StepResult is the outcome of one attempted step.
type StepResult struct {
	StepNumber int    `json:"stepNumber" yaml:"stepNumber"`
	StepID     string `json:"stepId,omitempty" yaml:"stepId,omitempty"`
	StepName   string `json:"stepName" yaml:"stepName"`
	StepType   string `json:"stepType" yaml:"stepType"`
	Success    bool   `json:"success" yaml:"success"`
	Message    string `json:"message" yaml:"message"`
	// Duration is the wall-clock time of the executor call in milliseconds
	Duration int64  `json:"duration" yaml:"duration"`
	Data     any    `json:"data,omitempty" yaml:"data,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunResult summarises a finished run. It is built once at the end of the
// run and not modified afterwards.
type RunResult struct {
	RunID     string `json:"runId" yaml:"runId"`
	SuiteName string `json:"suiteName" yaml:"suiteName"`
	TestType  string `json:"testType" yaml:"testType"`
	BaseURL   string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Success   bool   `json:"success" yaml:"success"`
	Status    Status `json:"status" yaml:"status"`

	// TotalSteps is the suite length, including steps that never ran
	TotalSteps  int `json:"totalSteps" yaml:"totalSteps"`
	PassedSteps int `json:"passedSteps" yaml:"passedSteps"`
	FailedSteps int `json:"failedSteps" yaml:"failedSteps"`
	// Duration is the sum of step durations in milliseconds
	Duration int64 `json:"duration" yaml:"duration"`

	Steps     []StepResult   `json:"steps" yaml:"steps"`
	Variables map[string]any `json:"variables" yaml:"variables"`

	StartedAt   time.Time `json:"startedAt" yaml:"startedAt"`
	CompletedAt time.Time `json:"completedAt" yaml:"completedAt"`

	// StoppedAtStep is the last attempted step when the run ended early
	StoppedAtStep int    `json:"stoppedAtStep,omitempty" yaml:"stoppedAtStep,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Attempted returns the number of steps that produced a result.
func (r *RunResult) Attempted() int {
	return r.PassedSteps + r.FailedSteps
}
