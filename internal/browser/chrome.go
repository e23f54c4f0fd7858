package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"assay/pkg/logging"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	defaultActionTimeout     = 10 * time.Second
	defaultNavigationTimeout = 30 * time.Second
	networkIdleQuiet         = 500 * time.Millisecond
)

// ChromeOptions configures how ChromeProvider starts or connects to Chrome.
type ChromeOptions struct {
	// ExecPath is the Chrome binary; empty lets chromedp find one
	ExecPath string
	// RemoteURL connects to an already running browser (ws://host:9222/...)
	RemoteURL string
	// Headless runs Chrome without a window
	Headless bool
	// ActionTimeout bounds every non-navigation action
	ActionTimeout time.Duration
	// NavigationTimeout bounds page loads
	NavigationTimeout time.Duration
}

// ChromeProvider starts one Chrome tab per acquired session.
type ChromeProvider struct {
	opts ChromeOptions
}

// NewChromeProvider creates a provider with the given options
func NewChromeProvider(opts ChromeOptions) *ChromeProvider {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaultNavigationTimeout
	}
	return &ChromeProvider{opts: opts}
}

// Acquire launches (or attaches to) a browser and opens a tab. The session
// outlives ctx cancellation; it is torn down by Close.
func (p *ChromeProvider) Acquire(ctx context.Context) (Session, error) {
	parent := context.WithoutCancel(ctx)

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if p.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, p.opts.RemoteURL)
	} else {
		allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		allocOpts = append(allocOpts, chromedp.Flag("headless", p.opts.Headless))
		if p.opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(p.opts.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocOpts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logging.Debug("Browser", format, args...)
	}))

	s := &ChromeSession{
		ctx:    tabCtx,
		cancel: func() { tabCancel(); allocCancel() },
		opts:   p.opts,
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)

	startCtx, cancel := context.WithTimeout(tabCtx, p.opts.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx, network.Enable()); err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logging.Debug("Browser", "Browser session started (headless=%t, remote=%t)", p.opts.Headless, p.opts.RemoteURL != "")
	return s, nil
}

// ChromeSession drives a single Chrome tab through chromedp.
type ChromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   ChromeOptions

	inflight     atomic.Int64
	lastActivity atomic.Int64

	closeOnce sync.Once
}

func (s *ChromeSession) onEvent(ev interface{}) {
	switch ev.(type) {
	case *network.EventRequestWillBeSent:
		s.inflight.Add(1)
		s.lastActivity.Store(time.Now().UnixNano())
	case *network.EventLoadingFinished, *network.EventLoadingFailed:
		if s.inflight.Add(-1) < 0 {
			s.inflight.Store(0)
		}
		s.lastActivity.Store(time.Now().UnixNano())
	}
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = s.opts.ActionTimeout
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func (s *ChromeSession) eval(ctx context.Context, expr string, out any) error {
	return s.run(ctx, 0, chromedp.Evaluate(expr, out))
}

func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// Navigate loads url and waits for the requested condition.
func (s *ChromeSession) Navigate(ctx context.Context, url string, opts WaitOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.opts.NavigationTimeout
	}

	actions := []chromedp.Action{chromedp.Navigate(url)}
	switch opts.Until {
	case WaitSelector:
		if opts.Selector != "" {
			actions = append(actions, chromedp.WaitReady(opts.Selector, chromedp.ByQuery))
		}
	case WaitNetworkIdle:
		actions = append(actions, chromedp.ActionFunc(s.waitNetworkIdle))
	}

	if err := s.run(ctx, timeout, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && opts.Until == WaitSelector {
			return fmt.Errorf("%w: %s", ErrSelectorTimeout, opts.Selector)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *ChromeSession) waitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		last := time.Unix(0, s.lastActivity.Load())
		if s.inflight.Load() <= 0 && time.Since(last) >= networkIdleQuiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForSelector waits until selector matches a rendered element.
func (s *ChromeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrSelectorTimeout, selector)
	}
	return err
}

// Click clicks the first element matching selector.
func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

// Type replaces the content of an input with text.
func (s *ChromeSession) Type(ctx context.Context, selector, text string) error {
	return s.run(ctx, 0,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// Select picks the option with the given value and fires a change event.
func (s *ChromeSession) Select(ctx context.Context, selector, value string) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.value = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return el.value === %s;
	})()`, jsString(selector), jsString(value), jsString(value))

	var ok bool
	if err := s.eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not available in %s", value, selector)
	}
	return nil
}

// SetChecked clicks a checkbox or radio when its state differs from checked.
func (s *ChromeSession) SetChecked(ctx context.Context, selector string, checked bool) error {
	var current bool
	expr := fmt.Sprintf(`!!(document.querySelector(%s) || {}).checked`, jsString(selector))
	if err := s.eval(ctx, expr, &current); err != nil {
		return err
	}
	if current == checked {
		return nil
	}
	return s.Click(ctx, selector)
}

// Hover scrolls to the element and dispatches pointer enter/over events.
func (s *ChromeSession) Hover(ctx context.Context, selector string) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		for (const type of ['mouseenter', 'mouseover', 'mousemove']) {
			el.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
		}
		return true;
	})()`, jsString(selector))

	var ok bool
	if err := s.run(ctx, 0,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Evaluate(expr, &ok),
	); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s disappeared before hover", selector)
	}
	return nil
}

// ScrollIntoView scrolls selector into view, or to the page bottom.
func (s *ChromeSession) ScrollIntoView(ctx context.Context, selector string) error {
	if selector == "" {
		return s.eval(ctx, `window.scrollTo(0, document.body.scrollHeight)`, nil)
	}
	return s.run(ctx, 0, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

// Exists reports whether selector matches any element.
func (s *ChromeSession) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := s.eval(ctx, fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector)), &ok)
	return ok, err
}

// IsVisible reports whether the element is rendered with a non-empty box.
func (s *ChromeSession) IsVisible(ctx context.Context, selector string) (bool, error) {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, jsString(selector))

	var ok bool
	err := s.eval(ctx, expr, &ok)
	return ok, err
}

// Text returns the text content of the element.
func (s *ChromeSession) Text(ctx context.Context, selector string) (string, error) {
	var text string
	expr := fmt.Sprintf(`(document.querySelector(%s) || {}).textContent || ''`, jsString(selector))
	err := s.eval(ctx, expr, &text)
	return text, err
}

// Value returns the value property of a form element.
func (s *ChromeSession) Value(ctx context.Context, selector string) (string, error) {
	var value string
	expr := fmt.Sprintf(`String((document.querySelector(%s) || {}).value ?? '')`, jsString(selector))
	err := s.eval(ctx, expr, &value)
	return value, err
}

// HasClass reports whether the element carries class.
func (s *ChromeSession) HasClass(ctx context.Context, selector, class string) (bool, error) {
	var ok bool
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return !!el && el.classList.contains(%s);
	})()`, jsString(selector), jsString(class))
	err := s.eval(ctx, expr, &ok)
	return ok, err
}

// CurrentURL returns the tab's location.
func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, 0, chromedp.Location(&url))
	return url, err
}

// Close shuts the tab and, for local browsers, the browser process.
func (s *ChromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		err = chromedp.Cancel(closeCtx)
		s.cancel()
		logging.Debug("Browser", "Browser session closed")
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
