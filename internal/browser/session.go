package browser

import (
	"context"
	"errors"
	"time"
)

// ErrSelectorTimeout is returned when an element does not appear in time.
var ErrSelectorTimeout = errors.New("selector not found within timeout")

// ErrNoPage is returned when an operation needs a loaded page.
var ErrNoPage = errors.New("no page loaded")

// Navigation wait conditions
const (
	WaitLoad             = "load"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle"
	WaitSelector         = "selector"
)

// WaitOptions controls when Navigate returns.
type WaitOptions struct {
	// Until is one of the Wait* conditions; empty means load
	Until string
	// Selector is awaited when Until is WaitSelector
	Selector string
	Timeout  time.Duration
}

// Session is a single browser tab driven by Functional steps. A session is
// acquired once per run and released when the run ends.
type Session interface {
	Navigate(ctx context.Context, url string, opts WaitOptions) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Select(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	Hover(ctx context.Context, selector string) error
	// ScrollIntoView scrolls to the element, or to the bottom of the page when selector is empty
	ScrollIntoView(ctx context.Context, selector string) error

	Exists(ctx context.Context, selector string) (bool, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Value(ctx context.Context, selector string) (string, error)
	HasClass(ctx context.Context, selector, class string) (bool, error)

	// CurrentURL returns the address of the loaded page
	CurrentURL(ctx context.Context) (string, error)

	Close() error
}

// Provider hands out browser sessions.
type Provider interface {
	Acquire(ctx context.Context) (Session, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (Session, error)

// Acquire calls f(ctx).
func (f ProviderFunc) Acquire(ctx context.Context) (Session, error) { return f(ctx) }
