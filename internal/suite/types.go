package suite

import (
	"encoding/json"
	"fmt"
)

// TestType selects the family of step executors used for a suite
type TestType string

const (
	// TestTypeAPI runs HTTP request, validation, extraction and conditional steps
	TestTypeAPI TestType = "API"
	// TestTypeFunctional drives a browser session
	TestTypeFunctional TestType = "Functional"
	// TestTypePerformance generates concurrent load
	TestTypePerformance TestType = "Performance"
)

// Valid reports whether t is one of the known test types
func (t TestType) Valid() bool {
	switch t {
	case TestTypeAPI, TestTypeFunctional, TestTypePerformance:
		return true
	}
	return false
}

// StepType identifies the kind of a step
type StepType string

const (
	StepRequest     StepType = "request"
	StepValidation  StepType = "validation"
	StepExtraction  StepType = "extraction"
	StepConditional StepType = "conditional"
	StepNavigation  StepType = "navigation"
	StepInteraction StepType = "interaction"
	StepAssertion   StepType = "assertion"
	StepLoadTest    StepType = "loadTest"
	StepStressTest  StepType = "stressTest"
)

// KnownStepTypes lists every step kind with a dedicated config type
var KnownStepTypes = []StepType{
	StepRequest,
	StepValidation,
	StepExtraction,
	StepConditional,
	StepNavigation,
	StepInteraction,
	StepAssertion,
	StepLoadTest,
	StepStressTest,
}

// TestSuite is an ordered list of steps executed against a target base URL
type TestSuite struct {
	// Name identifies the suite in results and logs
	Name string `json:"name"`
	// Description is free text shown by the CLI
	Description string `json:"description,omitempty"`
	// TestType selects the executor family
	TestType TestType `json:"testType"`
	// ToolID is an opaque reference to the tool under test
	ToolID string `json:"toolId,omitempty"`
	// BaseURL is prefixed to relative step URLs
	BaseURL string `json:"baseUrl,omitempty"`
	// StopOnFailure halts the run after the first failed step; nil means true
	StopOnFailure *bool `json:"stopOnFailure,omitempty"`
	// Steps are executed strictly in order
	Steps []Step `json:"steps"`
}

// ShouldStopOnFailure returns the effective stop-on-failure setting.
func (s *TestSuite) ShouldStopOnFailure() bool {
	if s.StopOnFailure == nil {
		return true
	}
	return *s.StopOnFailure
}

// SetDefaultStopOnFailure applies v when the suite leaves stopOnFailure unset.
func (s *TestSuite) SetDefaultStopOnFailure(v bool) {
	if s.StopOnFailure == nil {
		s.StopOnFailure = &v
	}
}

// Clone returns a deep copy of the suite. Runs operate on a clone so the
// caller's definition cannot change underneath an executing run.
func (s *TestSuite) Clone() (*TestSuite, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to copy suite %q: %w", s.Name, err)
	}
	var out TestSuite
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy suite %q: %w", s.Name, err)
	}
	return &out, nil
}

// Step is a single unit of work. Config holds the kind-specific settings
// and its concrete type always matches Type.
type Step struct {
	// ID is an optional stable identifier, used by conditional steps to name a next step
	ID string `json:"id,omitempty"`
	// Name is the human readable label
	Name string `json:"name"`
	// Type selects the executor within the suite's test type
	Type StepType `json:"type"`
	// Description is free text
	Description string `json:"description,omitempty"`
	// Config is the typed configuration for Type
	Config StepConfig `json:"-"`
}

// DisplayName returns Name, falling back to ID and then the step type.
func (s Step) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.ID != "":
		return s.ID
	default:
		return string(s.Type)
	}
}

type stepWire struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Type        StepType        `json:"type"`
	Description string          `json:"description,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON decodes the step header and then the config into the
// concrete type selected by the step's type.
func (s *Step) UnmarshalJSON(data []byte) error {
	var wire stepWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	cfg, err := DecodeConfig(wire.Type, wire.Config)
	if err != nil {
		name := wire.Name
		if name == "" {
			name = wire.ID
		}
		return fmt.Errorf("step %q: %w", name, err)
	}

	*s = Step{
		ID:          wire.ID,
		Name:        wire.Name,
		Type:        wire.Type,
		Description: wire.Description,
		Config:      cfg,
	}
	return nil
}

// MarshalJSON encodes the step with its config under the "config" key.
func (s Step) MarshalJSON() ([]byte, error) {
	wire := stepWire{
		ID:          s.ID,
		Name:        s.Name,
		Type:        s.Type,
		Description: s.Description,
	}
	if s.Config != nil {
		if unknown, ok := s.Config.(*UnknownConfig); ok {
			wire.Config = unknown.Raw
		} else {
			data, err := json.Marshal(s.Config)
			if err != nil {
				return nil, err
			}
			wire.Config = data
		}
	}
	return json.Marshal(wire)
}
