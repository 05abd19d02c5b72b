package browsertest

import (
	"context"
	"sync"

	"github.com/hairizuan-noorazman/ui-harness/browser"
)

// Handle is a fake browser.Handle that counts Close calls.
type Handle struct {
	page *Page

	mu     sync.Mutex
	closed int
}

// Page returns the fake page.
func (h *Handle) Page() browser.Page {
	return h.page
}

// Close records the call and closes the page.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed++
	h.mu.Unlock()
	return h.page.Close()
}

// Closed returns how many times Close was called.
func (h *Handle) Closed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Opener hands out handles to one fake page and counts how often it was
// asked to.
type Opener struct {
	Page *Page
	// Err is returned instead of a handle when set.
	Err error

	mu      sync.Mutex
	opened  int
	handles []*Handle
}

// NewOpener returns an Opener for page.
func NewOpener(page *Page) *Opener {
	return &Opener{Page: page}
}

// Open implements browser.Opener.
func (o *Opener) Open(ctx context.Context) (browser.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
	if o.Err != nil {
		return nil, o.Err
	}
	h := &Handle{page: o.Page}
	o.handles = append(o.handles, h)
	return h, nil
}

// Opened returns how many times Open was called.
func (o *Opener) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

// Closed returns the total Close calls across handed-out handles.
func (o *Opener) Closed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, h := range o.handles {
		total += h.Closed()
	}
	return total
}
