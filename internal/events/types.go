package events

import (
	"time"
)

// EventType names a progress notification emitted during a run.
type EventType string

const (
	// EventSuiteStart is emitted once before the first step.
	EventSuiteStart EventType = "suite_start"

	// EventStepPrepare is emitted before a step's executor is resolved.
	EventStepPrepare EventType = "step_prepare"

	// EventStepStart is emitted right before a step executes.
	EventStepStart EventType = "step_start"

	// EventStepProgress carries intermediate progress of a long running step.
	EventStepProgress EventType = "step_progress"

	// EventStepComplete carries the StepResult of every attempted step.
	EventStepComplete EventType = "step_complete"

	// EventStepError precedes step_complete when a step failed.
	EventStepError EventType = "step_error"

	// EventSuiteComplete carries the final RunResult of a run that ran to its end
	// or stopped on a failure.
	EventSuiteComplete EventType = "suite_complete"

	// EventSuiteStopped carries the RunResult of a run halted by a stop request.
	EventSuiteStopped EventType = "suite_stopped"

	// EventSuiteError reports a run that could not start or crashed.
	EventSuiteError EventType = "suite_error"
)

// Terminal reports whether no further events follow t for the same run.
func (t EventType) Terminal() bool {
	switch t {
	case EventSuiteComplete, EventSuiteStopped, EventSuiteError:
		return true
	}
	return false
}

// Event is a single progress notification.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"runId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// StepNumber is the 1-based step the event refers to, 0 for suite events
	StepNumber int `json:"stepNumber,omitempty"`
	Payload    any `json:"payload,omitempty"`
}

// New builds an event stamped with the current time.
func New(t EventType, runID string, stepNumber int, payload any) Event {
	return Event{
		Type:       t,
		RunID:      runID,
		Timestamp:  time.Now(),
		StepNumber: stepNumber,
		Payload:    payload,
	}
}

// SuiteStartPayload describes a run that is about to begin.
type SuiteStartPayload struct {
	SuiteName  string `json:"suiteName"`
	TestType   string `json:"testType"`
	TotalSteps int    `json:"totalSteps"`
	BaseURL    string `json:"baseUrl,omitempty"`
}

// StepPayload identifies a step in prepare/start events.
type StepPayload struct {
	StepNumber int    `json:"stepNumber"`
	StepName   string `json:"stepName"`
	StepType   string `json:"stepType"`
	TotalSteps int    `json:"totalSteps"`
}

// ProgressPayload carries intermediate step progress.
type ProgressPayload struct {
	StepNumber int    `json:"stepNumber"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

// ErrorPayload describes a step or suite failure.
type ErrorPayload struct {
	StepNumber int    `json:"stepNumber,omitempty"`
	StepName   string `json:"stepName,omitempty"`
	Error      string `json:"error"`
}
