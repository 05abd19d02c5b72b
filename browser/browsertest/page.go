// Package browsertest provides an in-memory browser.Page for tests.
//
// Elements are keyed by the strategy's String form ("testid:submit",
// "role:button|Save"). Waits never sleep for element state: a missing or
// hidden element fails immediately with a browser.ErrTimeout. Response waits
// are real: ExpectResponse arms a waiter that Emit delivers to.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hairizuan-noorazman/ui-harness/browser"
	"github.com/hairizuan-noorazman/ui-harness/selector"
)

// Element is a fake DOM element.
type Element struct {
	Visible bool
	// VisibleAfter makes the element visible once it has been waited on
	// this many times.
	VisibleAfter int
	Value        string
	Text         string
	Files        []string

	waits int
}

// Page is a fake browser.Page.
type Page struct {
	mu sync.Mutex

	url      string
	elements map[string]*Element
	calls    []string
	waiters  []*waiter
	closed   int

	// OnClick runs after a click on the keyed strategy.
	OnClick map[string]func(p *Page)
	// OnNavigate runs after a successful navigation.
	OnNavigate func(p *Page, url string)
	// NavigateErr fails navigation to the keyed URL.
	NavigateErr map[string]error
	// ClickErr fails clicks on the keyed strategy.
	ClickErr map[string]error
	// Popup is returned by ExpectPopup. Nil makes ExpectPopup time out.
	Popup *Page
	// ScreenshotErr fails Screenshot.
	ScreenshotErr error
	// PageTitle and HTML are returned by Title and Content.
	PageTitle string
	HTML      string
	// ContentErr fails Content.
	ContentErr error

	console []browser.ConsoleMessage
}

type waiter struct {
	match func(string) bool
	ch    chan browser.Response
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{
		url:         "about:blank",
		elements:    map[string]*Element{},
		OnClick:     map[string]func(p *Page){},
		NavigateErr: map[string]error{},
		ClickErr:    map[string]error{},
	}
}

// Add registers an element under the given strategy definition.
func (p *Page) Add(def string, el *Element) *Page {
	st, err := selector.ParseStrategy(def)
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[st.String()] = el
	return p
}

// Element returns the element registered under def.
func (p *Page) Element(def string) *Element {
	st, err := selector.ParseStrategy(def)
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[st.String()]
}

// SetURL sets the current URL without navigating.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Calls returns the recorded calls, e.g. "click testid:submit".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CloseCount returns how many times Close was called.
func (p *Page) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Armed returns the number of response waiters currently armed.
func (p *Page) Armed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Emit delivers a response to every armed waiter whose pattern matches.
// A response emitted while no waiter is armed is lost, as on a real page.
func (p *Page) Emit(resp browser.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := p.waiters[:0]
	for _, w := range p.waiters {
		if w.match(resp.URL) {
			w.ch <- resp
			continue
		}
		remaining = append(remaining, w)
	}
	p.waiters = remaining
}

func (p *Page) record(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func timeoutErr(what string) error {
	return fmt.Errorf("%w: %s", browser.ErrTimeout, what)
}

func (p *Page) lookup(s selector.Strategy) *Element {
	return p.elements[s.String()]
}

func (p *Page) Navigate(url, waitUntil string, timeout time.Duration) error {
	p.mu.Lock()
	p.record("navigate %s", url)
	if err := p.NavigateErr[url]; err != nil {
		p.mu.Unlock()
		return err
	}
	p.url = url
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) WaitFor(s selector.Strategy, state string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait %s %s", state, s)

	el := p.lookup(s)
	visible := false
	if el != nil {
		el.waits++
		if el.VisibleAfter > 0 && el.waits >= el.VisibleAfter {
			el.Visible = true
		}
		visible = el.Visible
	}

	switch state {
	case browser.StateHidden, browser.StateDetached:
		if !visible {
			return nil
		}
	case browser.StateAttached:
		if el != nil {
			return nil
		}
	default:
		if visible {
			return nil
		}
	}
	return timeoutErr("waiting for " + s.String() + " to be " + state)
}

func (p *Page) Fill(s selector.Strategy, value string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("fill %s", s)

	el := p.lookup(s)
	if el == nil || !el.Visible {
		return timeoutErr("fill " + s.String())
	}
	el.Value = value
	return nil
}

func (p *Page) Click(s selector.Strategy, timeout time.Duration) error {
	p.mu.Lock()
	p.record("click %s", s)

	if err := p.ClickErr[s.String()]; err != nil {
		p.mu.Unlock()
		return err
	}
	el := p.lookup(s)
	if el == nil || !el.Visible {
		p.mu.Unlock()
		return timeoutErr("click " + s.String())
	}
	hook := p.OnClick[s.String()]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Text(s selector.Strategy, timeout time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("text %s", s)

	el := p.lookup(s)
	if el == nil {
		return "", timeoutErr("text " + s.String())
	}
	return el.Text, nil
}

func (p *Page) IsVisible(s selector.Strategy) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := p.lookup(s)
	return el != nil && el.Visible, nil
}

func (p *Page) SetInputFiles(s selector.Strategy, files []string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("upload %s %s", s, strings.Join(files, ","))

	el := p.lookup(s)
	if el == nil {
		return timeoutErr("set input files " + s.String())
	}
	el.Files = append([]string(nil), files...)
	return nil
}

func (p *Page) WaitForURL(match func(string) bool, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait_url")
	if match(p.url) {
		return nil
	}
	return timeoutErr("waiting for url, current " + p.url)
}

func (p *Page) WaitForLoadState(state string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("load_state %s", state)
	return nil
}

func (p *Page) ExpectResponse(match func(string) bool, timeout time.Duration, trigger func() error) (browser.Response, error) {
	w := &waiter{match: match, ch: make(chan browser.Response, 1)}

	p.mu.Lock()
	p.record("expect_response")
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	defer p.disarm(w)

	if trigger != nil {
		if err := trigger(); err != nil {
			return browser.Response{}, err
		}
	}

	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case resp := <-w.ch:
		return resp, nil
	case <-ctx.Done():
		return browser.Response{}, timeoutErr("waiting for response")
	}
}

func (p *Page) disarm(w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, other := range p.waiters {
		if other == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *Page) ExpectPopup(timeout time.Duration, trigger func() error) (browser.Page, error) {
	p.mu.Lock()
	p.record("expect_popup")
	p.mu.Unlock()

	if trigger != nil {
		if err := trigger(); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Popup == nil {
		return nil, timeoutErr("waiting for popup")
	}
	return p.Popup, nil
}

func (p *Page) Screenshot(fullPage bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("screenshot")
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return []byte("\x89PNG fake"), nil
}

// Log appends a console message, as the browser would.
func (p *Page) Log(typ, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = append(p.console, browser.ConsoleMessage{Type: typ, Text: text, Time: time.Now()})
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("content")
	if p.ContentErr != nil {
		return "", p.ContentErr
	}
	return p.HTML, nil
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, nil
}

func (p *Page) Console() []browser.ConsoleMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.ConsoleMessage(nil), p.console...)
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}
