package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"assay/internal/events"
	"assay/internal/runner"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Progress shows a spinner while a suite runs. It implements
// events.Reporter and updates its suffix from step events.
type Progress struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	total   int
	suite   string
	started bool
}

// NewProgress creates a spinner writing to w. Nothing is drawn until the
// first suite_start event.
func NewProgress(w io.Writer) *Progress {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " Starting suite..."
	return &Progress{spinner: s}
}

// Report updates the spinner for e.
func (p *Progress) Report(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case events.EventSuiteStart:
		if payload, ok := e.Payload.(events.SuiteStartPayload); ok {
			p.total = payload.TotalSteps
			p.suite = payload.SuiteName
		}
		p.spinner.Suffix = fmt.Sprintf(" Running %s...", p.suite)
		if !p.started {
			p.spinner.Start()
			p.started = true
		}
	case events.EventStepStart:
		name := ""
		if payload, ok := e.Payload.(events.StepPayload); ok {
			name = payload.StepName
		}
		p.spinner.Suffix = fmt.Sprintf(" [%d/%d] %s", e.StepNumber, p.total, name)
	case events.EventStepProgress:
		if payload, ok := e.Payload.(events.ProgressPayload); ok && payload.Message != "" {
			p.spinner.Suffix = fmt.Sprintf(" [%d/%d] %s", e.StepNumber, p.total, payload.Message)
		}
	}
}

// Suffix returns the text currently shown next to the spinner.
func (p *Progress) Suffix() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spinner.Suffix
}

// Finish stops the spinner and leaves a one-line verdict for result.
func (p *Progress) Finish(result *runner.RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	if result != nil {
		p.spinner.FinalMSG = Verdict(result) + "\n"
	}
	p.spinner.Stop()
	p.started = false
}

// Verdict renders a colored one-line summary of result.
func Verdict(result *runner.RunResult) string {
	summary := fmt.Sprintf("%s: %d/%d steps passed", result.SuiteName, result.PassedSteps, result.TotalSteps)
	switch result.Status {
	case runner.StatusPassed:
		return text.FgGreen.Sprint("PASSED ") + summary
	case runner.StatusStopped:
		return text.FgYellow.Sprint("STOPPED ") + summary
	case runner.StatusError:
		return text.FgRed.Sprint("ERROR ") + summary
	default:
		return text.FgRed.Sprint("FAILED ") + summary
	}
}

// EventPrinter writes one line per finished step. It is used instead of
// Progress when --verbose is given.
type EventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEventPrinter creates a printer writing to w.
func NewEventPrinter(w io.Writer) *EventPrinter {
	return &EventPrinter{w: w}
}

// Report prints suite and step milestones.
func (p *EventPrinter) Report(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case events.EventSuiteStart:
		if payload, ok := e.Payload.(events.SuiteStartPayload); ok {
			fmt.Fprintf(p.w, "Running %s (%s, %d steps)\n", payload.SuiteName, payload.TestType, payload.TotalSteps)
		}
	case events.EventStepComplete:
		if r, ok := e.Payload.(runner.StepResult); ok {
			mark := text.FgGreen.Sprint("✓")
			if !r.Success {
				mark = text.FgRed.Sprint("✗")
			}
			fmt.Fprintf(p.w, "  %s [%d] %s (%dms) %s\n", mark, r.StepNumber, r.StepName, r.Duration, r.Message)
		}
	case events.EventSuiteError:
		if payload, ok := e.Payload.(events.ErrorPayload); ok {
			fmt.Fprintf(p.w, "%s %s\n", text.FgRed.Sprint("Suite error:"), payload.Error)
		}
	case events.EventSuiteStopped:
		fmt.Fprintln(p.w, text.FgYellow.Sprint("Run stopped"))
	}
}
