package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/playwright-community/playwright-go"

	"github.com/hairizuan-noorazman/ui-harness/selector"
)

// Session is a running driver, browser, context and page.
type Session struct {
	ID string

	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *pwPage

	mu     sync.Mutex
	popups []*pwPage
	closed bool
}

// Launch starts the driver, launches the browser and opens one context with
// one page. If any stage fails, everything acquired so far is released before
// the error is returned.
func Launch(ctx context.Context, opts Options) (sess *Session, err error) {
	opts = opts.withDefaults()

	s := &Session{ID: uuid.New().String()}
	defer func() {
		if err != nil {
			if closeErr := s.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
			sess = nil
		}
	}()

	runOpts := &playwright.RunOptions{
		Browsers: []string{opts.Browser},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if !opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	s.pw = pw

	var browserType playwright.BrowserType
	switch opts.Browser {
	case "chromium":
		browserType = pw.Chromium
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBrowser, opts.Browser)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	s.browser = b

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	}
	if opts.VideoDir != "" {
		contextOpts.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir}
	}

	bc, err := b.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	s.context = bc

	page, err := bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(ms(opts.DefaultTimeout))
	page.SetDefaultNavigationTimeout(ms(opts.NavigationTimeout))
	s.page = newPWPage(page, s)

	return s, nil
}

// Page returns the session's main page.
func (s *Session) Page() Page {
	return s.page
}

// Close releases popups, page, context, browser and driver in that order.
// Every stage is attempted even when an earlier one fails. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	popups := s.popups
	s.popups = nil
	s.mu.Unlock()

	var result error
	for _, p := range popups {
		if err := p.page.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			result = multierror.Append(result, fmt.Errorf("close popup: %w", err))
		}
	}
	if s.page != nil {
		if err := s.page.page.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			result = multierror.Append(result, fmt.Errorf("close page: %w", err))
		}
	}
	if s.context != nil {
		if err := s.context.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			result = multierror.Append(result, fmt.Errorf("close context: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
			result = multierror.Append(result, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return result
}

func (s *Session) track(p *pwPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popups = append(s.popups, p)
}

// pwPage adapts a playwright.Page to Page.
type pwPage struct {
	page    playwright.Page
	session *Session
	console *consoleBuffer
}

func newPWPage(page playwright.Page, s *Session) *pwPage {
	p := &pwPage{page: page, session: s, console: &consoleBuffer{}}
	p.console.watch(page)
	return p
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

func timeoutOpt(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(ms(d))
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, playwright.ErrTargetClosed):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	default:
		return err
	}
}

func (p *pwPage) locate(s selector.Strategy) playwright.Locator {
	switch s.Kind {
	case selector.KindTestID:
		return p.page.GetByTestId(s.Value).First()
	case selector.KindRole:
		opts := playwright.PageGetByRoleOptions{}
		if s.Name != "" {
			opts.Name = s.Name
		}
		if s.Exact {
			opts.Exact = playwright.Bool(true)
		}
		return p.page.GetByRole(playwright.AriaRole(s.Value), opts).First()
	case selector.KindText:
		return p.page.GetByText(s.Value, playwright.PageGetByTextOptions{
			Exact: playwright.Bool(s.Exact),
		}).First()
	default:
		return p.page.Locator(s.Value).First()
	}
}

func waitUntil(state string) *playwright.WaitUntilState {
	switch state {
	case LoadCommit:
		return playwright.WaitUntilStateCommit
	case LoadDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case LoadNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateLoad
	}
}

func loadState(state string) *playwright.LoadState {
	switch state {
	case LoadDOMContentLoaded:
		return playwright.LoadStateDomcontentloaded
	case LoadNetworkIdle:
		return playwright.LoadStateNetworkidle
	default:
		return playwright.LoadStateLoad
	}
}

func elementState(state string) *playwright.WaitForSelectorState {
	switch state {
	case StateHidden:
		return playwright.WaitForSelectorStateHidden
	case StateAttached:
		return playwright.WaitForSelectorStateAttached
	case StateDetached:
		return playwright.WaitForSelectorStateDetached
	default:
		return playwright.WaitForSelectorStateVisible
	}
}

func (p *pwPage) Navigate(url, state string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil(state),
		Timeout:   timeoutOpt(timeout),
	})
	return classify(err)
}

func (p *pwPage) WaitFor(s selector.Strategy, state string, timeout time.Duration) error {
	return classify(p.locate(s).WaitFor(playwright.LocatorWaitForOptions{
		State:   elementState(state),
		Timeout: timeoutOpt(timeout),
	}))
}

func (p *pwPage) Fill(s selector.Strategy, value string, timeout time.Duration) error {
	return classify(p.locate(s).Fill(value, playwright.LocatorFillOptions{
		Timeout: timeoutOpt(timeout),
	}))
}

func (p *pwPage) Click(s selector.Strategy, timeout time.Duration) error {
	return classify(p.locate(s).Click(playwright.LocatorClickOptions{
		Timeout: timeoutOpt(timeout),
	}))
}

func (p *pwPage) Text(s selector.Strategy, timeout time.Duration) (string, error) {
	text, err := p.locate(s).TextContent(playwright.LocatorTextContentOptions{
		Timeout: timeoutOpt(timeout),
	})
	return text, classify(err)
}

func (p *pwPage) IsVisible(s selector.Strategy) (bool, error) {
	visible, err := p.locate(s).IsVisible()
	return visible, classify(err)
}

func (p *pwPage) SetInputFiles(s selector.Strategy, files []string, timeout time.Duration) error {
	return classify(p.locate(s).SetInputFiles(files, playwright.LocatorSetInputFilesOptions{
		Timeout: timeoutOpt(timeout),
	}))
}

func (p *pwPage) WaitForURL(match func(string) bool, timeout time.Duration) error {
	return classify(p.page.WaitForURL(match, playwright.PageWaitForURLOptions{
		Timeout: timeoutOpt(timeout),
	}))
}

func (p *pwPage) WaitForLoadState(state string, timeout time.Duration) error {
	return classify(p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: timeoutOpt(timeout),
	}))
}

func (p *pwPage) ExpectResponse(match func(string) bool, timeout time.Duration, trigger func() error) (Response, error) {
	predicate := func(r playwright.Response) bool {
		return match(r.URL())
	}
	resp, err := p.page.ExpectResponse(predicate, trigger, playwright.PageExpectResponseOptions{
		Timeout: timeoutOpt(timeout),
	})
	if err != nil {
		return Response{}, classify(err)
	}
	return Response{URL: resp.URL(), Status: resp.Status()}, nil
}

func (p *pwPage) ExpectPopup(timeout time.Duration, trigger func() error) (Page, error) {
	popup, err := p.page.ExpectPopup(trigger, playwright.PageExpectPopupOptions{
		Timeout: timeoutOpt(timeout),
	})
	if err != nil {
		return nil, classify(err)
	}
	if err := popup.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	}); err != nil {
		_ = popup.Close()
		return nil, classify(err)
	}

	wrapped := newPWPage(popup, p.session)
	if p.session != nil {
		p.session.track(wrapped)
	}
	return wrapped, nil
}

func (p *pwPage) Screenshot(fullPage bool) ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
	return data, classify(err)
}

func (p *pwPage) Content() (string, error) {
	html, err := p.page.Content()
	return html, classify(err)
}

func (p *pwPage) Title() (string, error) {
	title, err := p.page.Title()
	return title, classify(err)
}

func (p *pwPage) Console() []ConsoleMessage {
	return p.console.snapshot()
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Close() error {
	err := p.page.Close()
	if errors.Is(err, playwright.ErrTargetClosed) {
		return nil
	}
	return err
}
