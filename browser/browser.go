// Package browser owns the browser process, its context and the page a run
// drives. Everything above this package talks to the Page interface so it can
// be exercised without a real browser.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/hairizuan-noorazman/ui-harness/selector"
)

var (
	// ErrTimeout is returned when the driver gave up waiting.
	ErrTimeout = errors.New("browser timeout")

	// ErrClosed is returned when the page, context or browser is gone.
	ErrClosed = errors.New("browser closed")

	// ErrUnsupportedBrowser is returned for an unknown browser type.
	ErrUnsupportedBrowser = errors.New("unsupported browser type")
)

// Element states accepted by Page.WaitFor.
const (
	StateVisible  = "visible"
	StateHidden   = "hidden"
	StateAttached = "attached"
	StateDetached = "detached"
)

// Load states accepted by Page.Navigate and Page.WaitForLoadState.
const (
	LoadCommit           = "commit"
	LoadDOMContentLoaded = "domcontentloaded"
	LoadLoad             = "load"
	LoadNetworkIdle      = "networkidle"
)

// Response is the part of a network response used for synchronization.
type Response struct {
	URL    string
	Status int
}

// ConsoleMessage is an entry from the browser console, or an uncaught page
// error when Type is ConsolePageError.
type ConsoleMessage struct {
	Type     string    `json:"type"`
	Text     string    `json:"text"`
	Location string    `json:"location,omitempty"`
	Time     time.Time `json:"time"`
}

// ConsolePageError is the ConsoleMessage type of an uncaught page error.
const ConsolePageError = "pageerror"

// MaxConsoleMessages bounds the console buffer of a page. Older entries are
// dropped first.
const MaxConsoleMessages = 200

// IsError reports whether the message is a console error or a page error.
func (m ConsoleMessage) IsError() bool {
	return m.Type == "error" || m.Type == ConsolePageError
}

// Page is the surface the step executor drives. A zero timeout means the
// page's default timeout.
type Page interface {
	// Navigate loads url and waits for the load state.
	Navigate(url, waitUntil string, timeout time.Duration) error
	// WaitFor waits until the first element matched by s reaches state.
	WaitFor(s selector.Strategy, state string, timeout time.Duration) error
	Fill(s selector.Strategy, value string, timeout time.Duration) error
	Click(s selector.Strategy, timeout time.Duration) error
	Text(s selector.Strategy, timeout time.Duration) (string, error)
	IsVisible(s selector.Strategy) (bool, error)
	SetInputFiles(s selector.Strategy, files []string, timeout time.Duration) error
	WaitForURL(match func(string) bool, timeout time.Duration) error
	WaitForLoadState(state string, timeout time.Duration) error
	// ExpectResponse arms a wait for the first response whose URL satisfies
	// match, then runs trigger. The wait is armed before trigger starts.
	ExpectResponse(match func(string) bool, timeout time.Duration, trigger func() error) (Response, error)
	// ExpectPopup arms a wait for a new page opened by trigger.
	ExpectPopup(timeout time.Duration, trigger func() error) (Page, error)
	Screenshot(fullPage bool) ([]byte, error)
	// Content returns the serialized DOM.
	Content() (string, error)
	Title() (string, error)
	// Console returns the buffered console messages and page errors,
	// oldest first.
	Console() []ConsoleMessage
	URL() string
	Close() error
}

// Handle is an acquired page together with the resources behind it.
type Handle interface {
	Page() Page
	Close() error
}

// Opener acquires a Handle. Callers must Close the handle on every path.
type Opener func(ctx context.Context) (Handle, error)

// Options configures Launch.
type Options struct {
	Browser        string // chromium, firefox or webkit
	Headless       bool
	SlowMo         time.Duration
	ViewportWidth  int
	ViewportHeight int
	// DefaultTimeout applies to every page interaction.
	DefaultTimeout time.Duration
	// NavigationTimeout applies to navigations.
	NavigationTimeout time.Duration
	// VideoDir enables context video recording.
	VideoDir string
	// SkipInstall skips the driver and browser download check.
	SkipInstall bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Browser:           "chromium",
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    720,
		DefaultTimeout:    10 * time.Second,
		NavigationTimeout: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Browser == "" {
		o.Browser = d.Browser
	}
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = d.ViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = d.ViewportHeight
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = d.DefaultTimeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	return o
}

// NewOpener returns an Opener that launches a fresh session per call.
func NewOpener(opts Options) Opener {
	return func(ctx context.Context) (Handle, error) {
		s, err := Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Shared wraps a handle so that Close is a no-op. Used when several runs
// share one session and the owner closes it at the end.
func Shared(h Handle) Opener {
	return func(ctx context.Context) (Handle, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return sharedHandle{Handle: h}, nil
	}
}

// SharedPage is Shared with page p driven instead of the handle's own page.
// It keeps a session on the popup a login finished in.
func SharedPage(h Handle, p Page) Opener {
	return func(ctx context.Context) (Handle, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return sharedHandle{Handle: h, page: p}, nil
	}
}

type sharedHandle struct {
	Handle
	page Page
}

func (h sharedHandle) Page() Page {
	if h.page != nil {
		return h.page
	}
	return h.Handle.Page()
}

func (sharedHandle) Close() error { return nil }
