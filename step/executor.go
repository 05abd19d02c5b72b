// Package step executes single UI interactions against a browser.Page.
//
// Every action waits for an explicit condition with an explicit timeout and
// returns a *step.Error whose Kind is one of the package sentinels. Nothing
// is retried: a failed click or fill is reported, not repeated.
package step

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hairizuan-noorazman/ui-harness/browser"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/selector"
	"github.com/hairizuan-noorazman/ui-harness/urlmatch"
)

// Timeouts bound every wait the executor performs.
type Timeouts struct {
	Element    time.Duration
	Navigation time.Duration
	Response   time.Duration
	// Probe is the smallest slice of the element timeout given to one
	// selector strategy, and the wait used by presence checks.
	Probe time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Element:    10 * time.Second,
		Navigation: 30 * time.Second,
		Response:   30 * time.Second,
		Probe:      time.Second,
	}
}

// ScreenshotSink persists screenshot bytes and returns where they went.
type ScreenshotSink interface {
	SaveScreenshot(ctx context.Context, name string, data []byte) (string, error)
}

// Executor runs actions against one page.
type Executor struct {
	page      browser.Page
	log       logger.Logger
	timeouts  Timeouts
	sink      ScreenshotSink
	fullPage  bool
	loadState string
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithTimeouts sets the timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(e *Executor) {
		if t.Element > 0 {
			e.timeouts.Element = t.Element
		}
		if t.Navigation > 0 {
			e.timeouts.Navigation = t.Navigation
		}
		if t.Response > 0 {
			e.timeouts.Response = t.Response
		}
		if t.Probe > 0 {
			e.timeouts.Probe = t.Probe
		}
	}
}

// WithScreenshotSink sets where screenshots are written.
func WithScreenshotSink(sink ScreenshotSink) Option {
	return func(e *Executor) { e.sink = sink }
}

// WithFullPage captures full-page screenshots.
func WithFullPage(fullPage bool) Option {
	return func(e *Executor) { e.fullPage = fullPage }
}

// WithLoadState sets the load signal Navigate waits for.
func WithLoadState(state string) Option {
	return func(e *Executor) { e.loadState = state }
}

// New creates an Executor for page.
func New(page browser.Page, opts ...Option) *Executor {
	e := &Executor{
		page:      page,
		log:       logger.Nop(),
		timeouts:  DefaultTimeouts(),
		fullPage:  true,
		loadState: browser.LoadLoad,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Page returns the page actions run against.
func (e *Executor) Page() browser.Page {
	return e.page
}

// Timeouts returns the active timeouts.
func (e *Executor) Timeouts() Timeouts {
	return e.timeouts
}

// WithPage returns a copy of e driving page, e.g. a popup.
func (e *Executor) WithPage(page browser.Page) *Executor {
	c := *e
	c.page = page
	return &c
}

// Override returns a copy of e in which element, navigation and response
// waits all use d.
func (e *Executor) Override(d time.Duration) *Executor {
	if d <= 0 {
		return e
	}
	c := *e
	c.timeouts.Element = d
	c.timeouts.Navigation = d
	c.timeouts.Response = d
	return &c
}

func (e *Executor) checkContext(ctx context.Context, action, target string) error {
	if err := ctx.Err(); err != nil {
		return newError(action, target, ErrUnexpectedFailure, err)
	}
	return nil
}

// Navigate loads url and waits for the configured load state.
func (e *Executor) Navigate(ctx context.Context, url string) error {
	return e.NavigateUntil(ctx, url, e.loadState)
}

// NavigateUntil loads url and waits for the given load state.
func (e *Executor) NavigateUntil(ctx context.Context, url, state string) error {
	if err := e.checkContext(ctx, "navigate", url); err != nil {
		return err
	}
	if state == "" {
		state = e.loadState
	}

	e.log.Debug(ctx, "navigating", map[string]interface{}{
		"url":        url,
		"wait_until": state,
		"timeout_ms": e.timeouts.Navigation.Milliseconds(),
	})

	err := e.page.Navigate(url, state, e.timeouts.Navigation)
	if err == nil {
		return nil
	}
	if errors.Is(err, browser.ErrTimeout) {
		return newError("navigate", url, ErrNavigationTimeout, err)
	}
	return newError("navigate", url, ErrUnexpectedFailure, err)
}

// resolve tries each strategy in order and returns the first that reaches
// state. Each strategy gets an equal share of the time still left, but never
// less than the probe timeout.
func (e *Executor) resolve(ctx context.Context, action string, sel selector.Selector, state string) (selector.Strategy, error) {
	target := sel.Describe()
	if sel.IsZero() {
		return selector.Strategy{}, newError(action, target, ErrElementNotFound, selector.ErrEmptySelector)
	}

	deadline := time.Now().Add(e.timeouts.Element)
	var lastErr error
	for i, st := range sel.Strategies {
		if err := e.checkContext(ctx, action, target); err != nil {
			return selector.Strategy{}, err
		}

		budget := time.Until(deadline) / time.Duration(len(sel.Strategies)-i)
		if budget < e.timeouts.Probe {
			budget = e.timeouts.Probe
		}

		err := e.page.WaitFor(st, state, budget)
		if err == nil {
			if i > 0 {
				e.log.Debug(ctx, "selector fallback used", map[string]interface{}{
					"selector": target,
					"strategy": st.String(),
					"attempt":  i + 1,
				})
			}
			return st, nil
		}
		if errors.Is(err, browser.ErrClosed) {
			return selector.Strategy{}, newError(action, target, ErrUnexpectedFailure, err)
		}
		lastErr = err
	}
	return selector.Strategy{}, newError(action, target, ErrElementNotFound, lastErr)
}

func (e *Executor) interactionError(action, target string, err error) error {
	if errors.Is(err, browser.ErrTimeout) {
		return newError(action, target, ErrElementNotFound, err)
	}
	return newError(action, target, ErrUnexpectedFailure, err)
}

// Fill waits for sel to be visible and sets its value.
func (e *Executor) Fill(ctx context.Context, sel selector.Selector, value string) error {
	st, err := e.resolve(ctx, "fill", sel, browser.StateVisible)
	if err != nil {
		return err
	}

	e.log.Debug(ctx, "filling", map[string]interface{}{
		"selector":     st.String(),
		"value_length": len(value),
	})

	if err := e.page.Fill(st, value, e.timeouts.Element); err != nil {
		return e.interactionError("fill", sel.Describe(), err)
	}
	return nil
}

// Click waits for sel to be visible and clicks it.
func (e *Executor) Click(ctx context.Context, sel selector.Selector) error {
	st, err := e.resolve(ctx, "click", sel, browser.StateVisible)
	if err != nil {
		return err
	}

	e.log.Debug(ctx, "clicking", map[string]interface{}{"selector": st.String()})

	if err := e.page.Click(st, e.timeouts.Element); err != nil {
		return e.interactionError("click", sel.Describe(), err)
	}
	return nil
}

// WaitVisible waits for sel to be visible.
func (e *Executor) WaitVisible(ctx context.Context, sel selector.Selector) error {
	_, err := e.resolve(ctx, "wait", sel, browser.StateVisible)
	return err
}

// WaitHidden waits for every strategy of sel to be hidden or gone.
func (e *Executor) WaitHidden(ctx context.Context, sel selector.Selector) error {
	target := sel.Describe()
	deadline := time.Now().Add(e.timeouts.Element)
	for _, st := range sel.Strategies {
		if err := e.checkContext(ctx, "wait_hidden", target); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining < e.timeouts.Probe {
			remaining = e.timeouts.Probe
		}
		if err := e.page.WaitFor(st, browser.StateHidden, remaining); err != nil {
			if errors.Is(err, browser.ErrTimeout) {
				return newError("wait_hidden", target, ErrAssertionFailed, err)
			}
			return newError("wait_hidden", target, ErrUnexpectedFailure, err)
		}
	}
	return nil
}

// IsPresent reports whether any strategy of sel is visible within the probe
// timeout. It never fails.
func (e *Executor) IsPresent(ctx context.Context, sel selector.Selector) bool {
	for _, st := range sel.Strategies {
		if ctx.Err() != nil {
			return false
		}
		if err := e.page.WaitFor(st, browser.StateVisible, e.timeouts.Probe); err == nil {
			return true
		}
	}
	return false
}

// WaitForURL waits for the page URL to match pattern.
func (e *Executor) WaitForURL(ctx context.Context, pattern *urlmatch.Pattern) error {
	if err := e.checkContext(ctx, "wait_url", pattern.String()); err != nil {
		return err
	}
	err := e.page.WaitForURL(pattern.Match, e.timeouts.Navigation)
	if err == nil {
		return nil
	}
	if errors.Is(err, browser.ErrTimeout) {
		return newError("wait_url", pattern.String(), ErrNavigationTimeout,
			fmt.Errorf("%w (current url %s)", err, e.page.URL()))
	}
	return newError("wait_url", pattern.String(), ErrUnexpectedFailure, err)
}

// WaitForLoadState waits for the page to reach a load state.
func (e *Executor) WaitForLoadState(ctx context.Context, state string) error {
	if err := e.checkContext(ctx, "wait_load", state); err != nil {
		return err
	}
	err := e.page.WaitForLoadState(state, e.timeouts.Navigation)
	if err == nil {
		return nil
	}
	if errors.Is(err, browser.ErrTimeout) {
		return newError("wait_load", state, ErrNavigationTimeout, err)
	}
	return newError("wait_load", state, ErrUnexpectedFailure, err)
}

// WaitForResponse arms a wait for the first response matching pattern, runs
// trigger, and returns that response's status. The wait is armed before
// trigger runs, so a response that arrives immediately is still observed.
// A failing trigger is returned as is. A nil trigger only waits.
func (e *Executor) WaitForResponse(ctx context.Context, pattern *urlmatch.Pattern, trigger func() error) (int, error) {
	if err := e.checkContext(ctx, "wait_response", pattern.String()); err != nil {
		return 0, err
	}

	var triggerErr error
	run := func() error {
		if trigger == nil {
			return nil
		}
		triggerErr = trigger()
		return triggerErr
	}

	resp, err := e.page.ExpectResponse(pattern.Match, e.timeouts.Response, run)
	if triggerErr != nil {
		return 0, triggerErr
	}
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return 0, newError("wait_response", pattern.String(), ErrResponseTimeout, err)
		}
		return 0, newError("wait_response", pattern.String(), ErrUnexpectedFailure, err)
	}

	e.log.Debug(ctx, "response observed", map[string]interface{}{
		"pattern": pattern.String(),
		"url":     resp.URL,
		"status":  resp.Status,
	})
	return resp.Status, nil
}

// ExpectPopup arms a wait for a new page, runs trigger and returns the popup.
func (e *Executor) ExpectPopup(ctx context.Context, trigger func() error) (browser.Page, error) {
	if err := e.checkContext(ctx, "expect_popup", ""); err != nil {
		return nil, err
	}

	var triggerErr error
	run := func() error {
		if trigger == nil {
			return nil
		}
		triggerErr = trigger()
		return triggerErr
	}

	popup, err := e.page.ExpectPopup(e.timeouts.Navigation, run)
	if triggerErr != nil {
		return nil, triggerErr
	}
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return nil, newError("expect_popup", "", ErrNavigationTimeout, err)
		}
		return nil, newError("expect_popup", "", ErrUnexpectedFailure, err)
	}
	return popup, nil
}

// AssertText waits for sel and checks its text. With contains set the text
// must include want; otherwise it must equal want after trimming.
func (e *Executor) AssertText(ctx context.Context, sel selector.Selector, want string, contains bool) (string, error) {
	st, err := e.resolve(ctx, "assert_text", sel, browser.StateVisible)
	if err != nil {
		return "", err
	}

	got, err := e.page.Text(st, e.timeouts.Element)
	if err != nil {
		return "", e.interactionError("assert_text", sel.Describe(), err)
	}

	got = strings.TrimSpace(got)
	ok := got == strings.TrimSpace(want)
	if contains {
		ok = strings.Contains(got, want)
	}
	if !ok {
		return got, newError("assert_text", sel.Describe(), ErrAssertionFailed,
			fmt.Errorf("expected %q, got %q", want, got))
	}
	return got, nil
}

// Text waits for sel and returns its trimmed text.
func (e *Executor) Text(ctx context.Context, sel selector.Selector) (string, error) {
	st, err := e.resolve(ctx, "text", sel, browser.StateVisible)
	if err != nil {
		return "", err
	}
	got, err := e.page.Text(st, e.timeouts.Element)
	if err != nil {
		return "", e.interactionError("text", sel.Describe(), err)
	}
	return strings.TrimSpace(got), nil
}

// Upload sets files on a file input. File inputs are often hidden, so only
// attachment is awaited.
func (e *Executor) Upload(ctx context.Context, sel selector.Selector, files []string) error {
	st, err := e.resolve(ctx, "upload", sel, browser.StateAttached)
	if err != nil {
		return err
	}
	if err := e.page.SetInputFiles(st, files, e.timeouts.Element); err != nil {
		return e.interactionError("upload", sel.Describe(), err)
	}
	return nil
}

// Screenshot captures the page and hands it to the sink. It is best-effort:
// failures are logged and an empty location is returned.
func (e *Executor) Screenshot(ctx context.Context, name string) string {
	if e.sink == nil {
		e.log.Debug(ctx, "screenshot skipped, no sink configured", map[string]interface{}{"name": name})
		return ""
	}

	data, err := e.page.Screenshot(e.fullPage)
	if err != nil {
		e.log.Warn(ctx, "failed to capture screenshot", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return ""
	}

	location, err := e.sink.SaveScreenshot(ctx, name, data)
	if err != nil {
		e.log.Warn(ctx, "failed to save screenshot", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		return ""
	}

	e.log.Info(ctx, "screenshot saved", map[string]interface{}{
		"name":     name,
		"location": location,
	})
	return location
}
