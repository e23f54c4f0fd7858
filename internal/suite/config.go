package suite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StepConfig is implemented by every kind-specific step configuration.
type StepConfig interface {
	stepType() StepType
}

// DecodeConfig decodes raw config JSON into the concrete config for stepType.
// Unknown step types keep their raw config so the failure can be reported
// when the step is executed rather than when the suite is loaded.
func DecodeConfig(stepType StepType, raw json.RawMessage) (StepConfig, error) {
	var cfg StepConfig
	switch stepType {
	case StepRequest:
		cfg = &RequestConfig{}
	case StepValidation:
		cfg = &ValidationConfig{}
	case StepExtraction:
		cfg = &ExtractionConfig{}
	case StepConditional:
		cfg = &ConditionalConfig{}
	case StepNavigation:
		cfg = &NavigationConfig{}
	case StepInteraction:
		cfg = &InteractionConfig{}
	case StepAssertion:
		cfg = &AssertionConfig{}
	case StepLoadTest:
		cfg = &LoadTestConfig{}
	case StepStressTest:
		cfg = &StressTestConfig{}
	default:
		return &UnknownConfig{Type: stepType, Raw: raw}, nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cfg, nil
	}
	if err := json.Unmarshal(trimmed, cfg); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", stepType, err)
	}
	if a, ok := cfg.(*AssertionConfig); ok {
		a.Assertion = NormalizeAssertion(a.Assertion)
	}
	return cfg, nil
}

func msDuration(ms int64, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// RequestValidation holds inline success criteria for a request step
type RequestValidation struct {
	// StatusCode is the expected HTTP status
	StatusCode *int `json:"statusCode,omitempty"`
	// ResponseTime is the maximum allowed latency in milliseconds
	ResponseTime *int64 `json:"responseTime,omitempty"`
}

// RequestConfig configures a single HTTP request
type RequestConfig struct {
	Method     string             `json:"method,omitempty"`
	URL        string             `json:"url"`
	Headers    map[string]string  `json:"headers,omitempty"`
	Body       json.RawMessage    `json:"body,omitempty"`
	Timeout    int64              `json:"timeout,omitempty"`
	Validation *RequestValidation `json:"validation,omitempty"`
}

func (*RequestConfig) stepType() StepType { return StepRequest }

// TimeoutOr returns the configured timeout or def.
func (c *RequestConfig) TimeoutOr(def time.Duration) time.Duration {
	return msDuration(c.Timeout, def)
}

// ValidationConfig checks the last HTTP response
type ValidationConfig struct {
	StatusCode    *int   `json:"statusCode,omitempty"`
	JSONPath      string `json:"jsonPath,omitempty"`
	ExpectedValue any    `json:"expectedValue,omitempty"`
	ResponseTime  *int64 `json:"responseTime,omitempty"`
	BodyContains  string `json:"bodyContains,omitempty"`
}

func (*ValidationConfig) stepType() StepType { return StepValidation }

// Extraction sources
const (
	SourceBody   = "body"
	SourceHeader = "header"
	SourceStatus = "status"
)

// ExtractionConfig copies a value from the last response into a variable
type ExtractionConfig struct {
	VariableName string `json:"variableName"`
	JSONPath     string `json:"jsonPath,omitempty"`
	// Source is body (default), header or status
	Source       string `json:"source,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
}

func (*ExtractionConfig) stepType() StepType { return StepExtraction }

// Conditional operators
const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpExists      = "exists"
	OpNotExists   = "not_exists"
)

// ConditionalConfig evaluates a predicate over a variable
type ConditionalConfig struct {
	Variable  string `json:"variable"`
	Operator  string `json:"operator"`
	Value     any    `json:"value,omitempty"`
	TrueStep  string `json:"trueStep,omitempty"`
	FalseStep string `json:"falseStep,omitempty"`
}

func (*ConditionalConfig) stepType() StepType { return StepConditional }

// Navigation wait conditions
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
	WaitSelector         = "selector"
)

// NavigationConfig opens a page in the browser session
type NavigationConfig struct {
	URL          string `json:"url"`
	WaitUntil    string `json:"waitUntil,omitempty"`
	WaitSelector string `json:"waitSelector,omitempty"`
	Timeout      int64  `json:"timeout,omitempty"`
}

func (*NavigationConfig) stepType() StepType { return StepNavigation }

// TimeoutOr returns the configured timeout or def.
func (c *NavigationConfig) TimeoutOr(def time.Duration) time.Duration {
	return msDuration(c.Timeout, def)
}

// Interaction actions
const (
	ActionClick   = "click"
	ActionType    = "type"
	ActionSelect  = "select"
	ActionCheck   = "check"
	ActionUncheck = "uncheck"
	ActionHover   = "hover"
	ActionScroll  = "scroll"
)

// InteractionConfig performs a user action on an element
type InteractionConfig struct {
	Action   string `json:"action"`
	Selector string `json:"selector"`
	Value    string `json:"value,omitempty"`
	Timeout  int64  `json:"timeout,omitempty"`
}

func (*InteractionConfig) stepType() StepType { return StepInteraction }

// TimeoutOr returns the configured timeout or def.
func (c *InteractionConfig) TimeoutOr(def time.Duration) time.Duration {
	return msDuration(c.Timeout, def)
}

// Assertion kinds
const (
	AssertVisible      = "visible"
	AssertExists       = "exists"
	AssertContainsText = "containsText"
	AssertHasClass     = "hasClass"
	AssertHasValue     = "hasValue"
)

// NormalizeAssertion maps spelled-out assertion names ("contains text")
// to their canonical form ("containsText").
func NormalizeAssertion(s string) string {
	switch strings.ToLower(strings.Join(strings.Fields(s), "")) {
	case "visible":
		return AssertVisible
	case "exists":
		return AssertExists
	case "containstext", "contains_text", "text":
		return AssertContainsText
	case "hasclass", "has_class":
		return AssertHasClass
	case "hasvalue", "has_value", "value":
		return AssertHasValue
	default:
		return s
	}
}

// AssertionConfig checks the state of an element
type AssertionConfig struct {
	Selector      string `json:"selector"`
	Assertion     string `json:"assertion"`
	ExpectedValue string `json:"expectedValue,omitempty"`
	Timeout       int64  `json:"timeout,omitempty"`
}

func (*AssertionConfig) stepType() StepType { return StepAssertion }

// TimeoutOr returns the configured timeout or def.
func (c *AssertionConfig) TimeoutOr(def time.Duration) time.Duration {
	return msDuration(c.Timeout, def)
}

// LoadTestConfig drives a fixed number of concurrent virtual users
type LoadTestConfig struct {
	// TargetURL defaults to the suite base URL
	TargetURL string            `json:"targetUrl,omitempty"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	// VirtualUsers is the number of concurrent callers
	VirtualUsers int `json:"virtualUsers"`
	// Duration is the run length in seconds
	Duration float64 `json:"duration"`
	// ThinkTime is the pause between calls of one caller in milliseconds
	ThinkTime *int64 `json:"thinkTime,omitempty"`
	// Timeout is the per-call timeout in milliseconds
	Timeout int64 `json:"timeout,omitempty"`
	// RPS caps the combined request rate when positive
	RPS float64 `json:"rps,omitempty"`
	// MaxErrorRate fails the step when the error ratio (0..1) exceeds it
	MaxErrorRate *float64 `json:"maxErrorRate,omitempty"`
	// MaxAvgResponseTime fails the step when the mean latency in ms exceeds it
	MaxAvgResponseTime *float64 `json:"maxAvgResponseTime,omitempty"`
}

func (*LoadTestConfig) stepType() StepType { return StepLoadTest }

// DurationValue returns Duration as a time.Duration.
func (c *LoadTestConfig) DurationValue() time.Duration {
	return time.Duration(c.Duration * float64(time.Second))
}

// StressTestConfig ramps virtual users up in steps until MaxUsers or until
// the error ratio crosses ErrorThreshold.
type StressTestConfig struct {
	LoadTestConfig
	StartUsers int `json:"startUsers,omitempty"`
	StepSize   int `json:"stepSize"`
	MaxUsers   int `json:"maxUsers"`
	// ErrorThreshold defaults to 0.10
	ErrorThreshold *float64 `json:"errorThreshold,omitempty"`
}

func (*StressTestConfig) stepType() StepType { return StepStressTest }

// UnknownConfig carries the raw config of an unrecognised step type
type UnknownConfig struct {
	Type StepType
	Raw  json.RawMessage
}

func (c *UnknownConfig) stepType() StepType { return c.Type }
