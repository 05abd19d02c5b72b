package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// consoleBuffer keeps the last MaxConsoleMessages entries of a page.
type consoleBuffer struct {
	mu   sync.Mutex
	msgs []ConsoleMessage
}

func (b *consoleBuffer) add(m ConsoleMessage) {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, m)
	if over := len(b.msgs) - MaxConsoleMessages; over > 0 {
		b.msgs = append(b.msgs[:0:0], b.msgs[over:]...)
	}
}

func (b *consoleBuffer) snapshot() []ConsoleMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ConsoleMessage(nil), b.msgs...)
}

// watch subscribes the buffer to the page's console and page errors.
func (b *consoleBuffer) watch(page playwright.Page) {
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		entry := ConsoleMessage{Type: msg.Type(), Text: msg.Text()}
		if loc := msg.Location(); loc != nil && loc.URL != "" {
			entry.Location = fmt.Sprintf("%s:%d:%d", loc.URL, loc.LineNumber, loc.ColumnNumber)
		}
		b.add(entry)
	})
	page.OnPageError(func(err error) {
		b.add(ConsoleMessage{Type: ConsolePageError, Text: err.Error()})
	})
}
