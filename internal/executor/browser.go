package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"assay/internal/browser"
	"assay/internal/suite"
)

const pollInterval = 100 * time.Millisecond

var errNoBrowser = errors.New("no browser session available for this run")

// NavigationExecutor loads a page in the run's browser session.
type NavigationExecutor struct {
	Timeout time.Duration
}

func (e *NavigationExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.NavigationConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid navigation configuration", Error: "navigation step requires a navigation config"}
	}
	if env.Browser == nil {
		return Result{Message: "Navigation failed", Error: errNoBrowser.Error()}
	}

	url := ResolveURL(env.BaseURL, cfg.URL, env.Vars)
	opts := browser.WaitOptions{
		Until:    cfg.WaitUntil,
		Selector: cfg.WaitSelector,
		Timeout:  cfg.TimeoutOr(e.Timeout),
	}
	if opts.Until == "" {
		opts.Until = browser.WaitLoad
	}

	if err := env.Browser.Navigate(ctx, url, opts); err != nil {
		return Result{Message: fmt.Sprintf("Navigation to %s failed", url), Error: err.Error()}
	}

	current, err := env.Browser.CurrentURL(ctx)
	if err != nil {
		current = url
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Navigated to %s (%s)", url, opts.Until),
		Data:    map[string]any{"url": url, "currentUrl": current},
	}
}

// InteractionExecutor performs a user action on an element.
type InteractionExecutor struct {
	Timeout time.Duration
}

func (e *InteractionExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.InteractionConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid interaction configuration", Error: "interaction step requires an interaction config"}
	}
	if env.Browser == nil {
		return Result{Message: "Interaction failed", Error: errNoBrowser.Error()}
	}

	b := env.Browser
	selector := cfg.Selector
	timeout := cfg.TimeoutOr(e.Timeout)

	if cfg.Action == suite.ActionScroll {
		if err := b.ScrollIntoView(ctx, selector); err != nil {
			return Result{Message: "Scroll failed", Error: err.Error()}
		}
		target := selector
		if target == "" {
			target = "page bottom"
		}
		return Result{Success: true, Message: "Scrolled to " + target, Data: map[string]any{"action": cfg.Action, "selector": selector}}
	}

	if err := b.WaitForSelector(ctx, selector, timeout); err != nil {
		return Result{Message: fmt.Sprintf("Element %s not found", selector), Error: err.Error()}
	}

	value := env.Vars.Substitute(cfg.Value)
	var err error
	var msg string
	switch cfg.Action {
	case suite.ActionClick:
		err = b.Click(ctx, selector)
		msg = "Clicked " + selector
	case suite.ActionType:
		err = b.Type(ctx, selector, value)
		msg = fmt.Sprintf("Typed %d characters into %s", len(value), selector)
	case suite.ActionSelect:
		err = b.Select(ctx, selector, value)
		msg = fmt.Sprintf("Selected %q in %s", value, selector)
	case suite.ActionCheck:
		err = b.SetChecked(ctx, selector, true)
		msg = "Checked " + selector
	case suite.ActionUncheck:
		err = b.SetChecked(ctx, selector, false)
		msg = "Unchecked " + selector
	case suite.ActionHover:
		err = b.Hover(ctx, selector)
		msg = "Hovered " + selector
	default:
		return Result{Message: "Invalid interaction configuration", Error: fmt.Sprintf("unknown action %q", cfg.Action)}
	}

	if err != nil {
		return Result{Message: fmt.Sprintf("%s on %s failed", cfg.Action, selector), Error: err.Error()}
	}
	return Result{Success: true, Message: msg, Data: map[string]any{"action": cfg.Action, "selector": selector}}
}

// AssertionExecutor checks element state, retrying until the timeout so
// assertions tolerate pages that are still rendering.
type AssertionExecutor struct {
	Timeout time.Duration
}

func (e *AssertionExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	cfg, ok := step.Config.(*suite.AssertionConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid assertion configuration", Error: "assertion step requires an assertion config"}
	}
	if env.Browser == nil {
		return Result{Message: "Assertion failed", Error: errNoBrowser.Error()}
	}

	b := env.Browser
	selector := cfg.Selector
	timeout := cfg.TimeoutOr(e.Timeout)
	expected := env.Vars.Substitute(cfg.ExpectedValue)

	var check func(ctx context.Context) (bool, string, error)
	switch cfg.Assertion {
	case suite.AssertExists:
		check = func(ctx context.Context) (bool, string, error) {
			ok, err := b.Exists(ctx, selector)
			return ok, fmt.Sprintf("exists=%t", ok), err
		}
	case suite.AssertVisible:
		check = func(ctx context.Context) (bool, string, error) {
			ok, err := b.IsVisible(ctx, selector)
			return ok, fmt.Sprintf("visible=%t", ok), err
		}
	case suite.AssertContainsText:
		check = func(ctx context.Context) (bool, string, error) {
			text, err := b.Text(ctx, selector)
			return strings.Contains(text, expected), fmt.Sprintf("text=%q", text), err
		}
	case suite.AssertHasClass:
		check = func(ctx context.Context) (bool, string, error) {
			ok, err := b.HasClass(ctx, selector, expected)
			return ok, fmt.Sprintf("hasClass(%s)=%t", expected, ok), err
		}
	case suite.AssertHasValue:
		check = func(ctx context.Context) (bool, string, error) {
			value, err := b.Value(ctx, selector)
			return value == expected, fmt.Sprintf("value=%q", value), err
		}
	default:
		return Result{Message: "Invalid assertion configuration", Error: fmt.Sprintf("unknown assertion %q", cfg.Assertion)}
	}

	if cfg.Assertion != suite.AssertExists {
		if err := b.WaitForSelector(ctx, selector, timeout); err != nil {
			return Result{Message: fmt.Sprintf("Element %s not found", selector), Error: err.Error()}
		}
	}

	ok, observed, err := poll(ctx, timeout, check)
	data := map[string]any{
		"selector":  selector,
		"assertion": cfg.Assertion,
		"expected":  expected,
		"observed":  observed,
	}
	if err != nil {
		return Result{Message: fmt.Sprintf("Assertion %s on %s could not be evaluated", cfg.Assertion, selector), Data: data, Error: err.Error()}
	}
	if !ok {
		reason := fmt.Sprintf("%s %s failed: %s", selector, cfg.Assertion, observed)
		return Result{Message: "Assertion failed: " + reason, Data: data, Error: reason}
	}
	return Result{Success: true, Message: fmt.Sprintf("Assertion passed: %s %s", selector, cfg.Assertion), Data: data}
}

// poll re-runs check until it passes, errors persistently, or timeout ends.
func poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, string, error)) (bool, string, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, observed, err := check(ctx)
		if err == nil && ok {
			return true, observed, nil
		}
		if !time.Now().Before(deadline) {
			return false, observed, err
		}
		select {
		case <-ctx.Done():
			return false, observed, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
