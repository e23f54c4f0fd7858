// Package runner executes test suites.
//
// An Orchestrator runs the steps of one suite strictly in order, resolving
// each step's executor from an executor.Registry by (test type, step type).
// Every run owns a fresh variables.Store, so values extracted by one step
// are visible to the steps after it and never leak into other runs.
//
// Failures never escape Run: an unknown step type, a failing executor or a
// panicking executor each become a failed StepResult. Unless the suite sets
// stopOnFailure to false the run ends at the first failed step.
//
// Stop and context cancellation are observed between steps. The step in
// progress always finishes and is recorded before the run ends with status
// "stopped".
//
// Functional suites acquire a browser session before the first step and
// release it on every exit path.
package runner
