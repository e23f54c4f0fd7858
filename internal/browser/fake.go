package browser

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// FakeElement is a node in a FakePage.
type FakeElement struct {
	Visible bool
	Text    string
	Value   string
	Classes []string
	Checked bool
	// Options restricts Select to these values when non-empty
	Options []string
	// OnClick runs after the element is clicked
	OnClick func(f *Fake)
}

// FakePage maps CSS selectors to elements.
type FakePage map[string]*FakeElement

// Fake is an in-memory Session used by tests and dry runs. Selectors are
// matched literally against the current page's keys.
type Fake struct {
	mu      sync.Mutex
	pages   map[string]FakePage
	current string
	actions []string
	closed  int
}

// NewFake creates a session that can navigate to the given pages.
func NewFake(pages map[string]FakePage) *Fake {
	if pages == nil {
		pages = make(map[string]FakePage)
	}
	return &Fake{pages: pages}
}

func (f *Fake) record(format string, args ...any) {
	f.actions = append(f.actions, fmt.Sprintf(format, args...))
}

// Actions returns the log of performed operations.
func (f *Fake) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.actions)
}

// Closed returns how many times Close was called.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SetElement adds or replaces an element on the current page.
func (f *Fake) SetElement(selector string, el *FakeElement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page, ok := f.pages[f.current]; ok {
		page[selector] = el
	}
}

func (f *Fake) element(selector string) (*FakeElement, error) {
	page, ok := f.pages[f.current]
	if !ok {
		return nil, ErrNoPage
	}
	el, ok := page[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectorTimeout, selector)
	}
	return el, nil
}

func (f *Fake) Navigate(ctx context.Context, url string, opts WaitOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate %s", url)
	page, ok := f.pages[url]
	if !ok {
		return fmt.Errorf("navigation to %s failed: 404 page not found", url)
	}
	f.current = url
	if opts.Until == WaitSelector && opts.Selector != "" {
		if _, ok := page[opts.Selector]; !ok {
			return fmt.Errorf("%w: %s", ErrSelectorTimeout, opts.Selector)
		}
	}
	return nil
}

func (f *Fake) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.element(selector)
	return err
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	el, err := f.element(selector)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.record("click %s", selector)
	onClick := el.OnClick
	f.mu.Unlock()

	if onClick != nil {
		onClick(f)
	}
	return nil
}

func (f *Fake) Type(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return err
	}
	f.record("type %s %s", selector, text)
	el.Value = text
	return nil
}

func (f *Fake) Select(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return err
	}
	if len(el.Options) > 0 && !slices.Contains(el.Options, value) {
		return fmt.Errorf("option %q not available in %s", value, selector)
	}
	f.record("select %s %s", selector, value)
	el.Value = value
	return nil
}

func (f *Fake) SetChecked(ctx context.Context, selector string, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return err
	}
	f.record("checked %s %t", selector, checked)
	el.Checked = checked
	return nil
}

func (f *Fake) Hover(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.element(selector); err != nil {
		return err
	}
	f.record("hover %s", selector)
	return nil
}

func (f *Fake) ScrollIntoView(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector != "" {
		if _, err := f.element(selector); err != nil {
			return err
		}
	}
	f.record("scroll %s", selector)
	return nil
}

func (f *Fake) Exists(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[f.current]
	if !ok {
		return false, ErrNoPage
	}
	_, ok = page[selector]
	return ok, nil
}

func (f *Fake) IsVisible(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return false, nil
	}
	return el.Visible, nil
}

func (f *Fake) Text(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (f *Fake) Value(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return "", err
	}
	return el.Value, nil
}

func (f *Fake) HasClass(ctx context.Context, selector, class string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, err := f.element(selector)
	if err != nil {
		return false, err
	}
	for _, c := range el.Classes {
		if strings.EqualFold(c, class) {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// FakeProvider hands out a single Fake session and counts acquisitions.
type FakeProvider struct {
	Session *Fake
	// Err makes Acquire fail
	Err error

	mu       sync.Mutex
	acquired int
}

// Acquire returns the configured session or error.
func (p *FakeProvider) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.acquired++
	if p.Session == nil {
		p.Session = NewFake(nil)
	}
	return p.Session, nil
}

// Acquired returns how many sessions were handed out.
func (p *FakeProvider) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}
