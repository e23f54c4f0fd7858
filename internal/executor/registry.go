package executor

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"assay/internal/loadgen"
	"assay/internal/suite"
)

type key struct {
	testType suite.TestType
	stepType suite.StepType
}

// Registry maps (test type, step type) pairs to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[key]Executor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{executors: make(map[key]Executor)}
}

// Register binds an executor to a step type within a test type.
func (r *Registry) Register(testType suite.TestType, stepType suite.StepType, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[key{testType, stepType}] = exec
}

// Lookup returns the executor for the pair.
func (r *Registry) Lookup(testType suite.TestType, stepType suite.StepType) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[key{testType, stepType}]
	return exec, ok
}

// StepTypes lists the step types registered for testType, sorted.
func (r *Registry) StepTypes(testType suite.TestType) []suite.StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []suite.StepType
	for k := range r.executors {
		if k.testType == testType {
			out = append(out, k.stepType)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate runs suite.Validate and additionally rejects steps that no
// registered executor handles for the suite's test type.
func (r *Registry) Validate(s *suite.TestSuite) error {
	var errs suite.ValidationErrors
	if err := suite.Validate(s); err != nil {
		if !errors.As(err, &errs) {
			return err
		}
	}
	if s != nil && s.TestType.Valid() {
		for i, step := range s.Steps {
			if _, unknown := step.Config.(*suite.UnknownConfig); unknown {
				continue
			}
			if _, ok := r.Lookup(s.TestType, step.Type); !ok {
				errs = append(errs, suite.ValidationError{
					Step:     i + 1,
					StepName: step.DisplayName(),
					Field:    "type",
					Message:  fmt.Sprintf("%q steps are not supported in %s suites", step.Type, s.TestType),
				})
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Options configures the default executors.
type Options struct {
	// HTTPClient is used by request steps; nil uses a dedicated client
	HTTPClient *http.Client
	// LoadGenerator is used by loadTest and stressTest steps; nil creates one
	LoadGenerator *loadgen.Generator
	Settings      Settings
}

// NewDefaultRegistry wires the built-in executor families:
//
//	API:         request, validation, extraction, conditional
//	Functional:  navigation, interaction, assertion, conditional
//	Performance: loadTest, stressTest, request, validation
func NewDefaultRegistry(opts Options) *Registry {
	settings := opts.Settings.withDefaults()

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	gen := opts.LoadGenerator
	if gen == nil {
		gen = loadgen.New(nil)
	}

	request := &RequestExecutor{Client: client, Timeout: settings.RequestTimeout}
	validation := &ValidationExecutor{}
	extraction := &ExtractionExecutor{}
	conditional := &ConditionalExecutor{}
	navigation := &NavigationExecutor{Timeout: settings.NavigationTimeout}
	interaction := &InteractionExecutor{Timeout: settings.BrowserTimeout}
	assertion := &AssertionExecutor{Timeout: settings.BrowserTimeout}
	load := &LoadTestExecutor{Generator: gen, Settings: settings}
	stress := &StressTestExecutor{Generator: gen, Settings: settings}

	r := NewRegistry()

	r.Register(suite.TestTypeAPI, suite.StepRequest, request)
	r.Register(suite.TestTypeAPI, suite.StepValidation, validation)
	r.Register(suite.TestTypeAPI, suite.StepExtraction, extraction)
	r.Register(suite.TestTypeAPI, suite.StepConditional, conditional)

	r.Register(suite.TestTypeFunctional, suite.StepNavigation, navigation)
	r.Register(suite.TestTypeFunctional, suite.StepInteraction, interaction)
	r.Register(suite.TestTypeFunctional, suite.StepAssertion, assertion)
	r.Register(suite.TestTypeFunctional, suite.StepConditional, conditional)

	r.Register(suite.TestTypePerformance, suite.StepLoadTest, load)
	r.Register(suite.TestTypePerformance, suite.StepStressTest, stress)
	r.Register(suite.TestTypePerformance, suite.StepRequest, request)
	r.Register(suite.TestTypePerformance, suite.StepValidation, validation)

	return r
}
