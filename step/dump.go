package step

import (
	"context"
	"time"

	"github.com/hairizuan-noorazman/ui-harness/browser"
)

// MaxDumpHTML bounds the serialized DOM kept in a PageDump.
const MaxDumpHTML = 512 << 10

// PageDump is the state of the page when a step failed.
type PageDump struct {
	Step          string                   `json:"step"`
	Error         string                   `json:"error,omitempty"`
	URL           string                   `json:"url"`
	Title         string                   `json:"title,omitempty"`
	HTML          string                   `json:"html,omitempty"`
	HTMLTruncated bool                     `json:"html_truncated,omitempty"`
	Console       []browser.ConsoleMessage `json:"console"`
	CaptureErrors []string                 `json:"capture_errors,omitempty"`
	CapturedAt    time.Time                `json:"captured_at"`
}

// Dump captures URL, title, DOM and console of the page. Parts that cannot be
// read are listed in CaptureErrors; Dump itself never fails.
func (e *Executor) Dump(ctx context.Context, stepName string, cause error) PageDump {
	d := PageDump{
		Step:       stepName,
		URL:        e.page.URL(),
		Console:    e.page.Console(),
		CapturedAt: time.Now().UTC(),
	}
	if d.Console == nil {
		d.Console = []browser.ConsoleMessage{}
	}
	if cause != nil {
		d.Error = cause.Error()
	}

	if title, err := e.page.Title(); err != nil {
		d.CaptureErrors = append(d.CaptureErrors, "title: "+err.Error())
	} else {
		d.Title = title
	}

	html, err := e.page.Content()
	switch {
	case err != nil:
		d.CaptureErrors = append(d.CaptureErrors, "content: "+err.Error())
	case len(html) > MaxDumpHTML:
		d.HTML = html[:MaxDumpHTML]
		d.HTMLTruncated = true
	default:
		d.HTML = html
	}

	if len(d.CaptureErrors) > 0 {
		e.log.Debug(ctx, "page dump incomplete", map[string]interface{}{
			"step":   stepName,
			"errors": d.CaptureErrors,
		})
	}
	return d
}

// LogConsole writes the page's console to the log, errors at warn and the
// rest at debug, and returns how many errors it saw.
func (e *Executor) LogConsole(ctx context.Context) int {
	errs := 0
	for _, m := range e.page.Console() {
		fields := map[string]interface{}{
			"type": m.Type,
			"text": m.Text,
		}
		if m.Location != "" {
			fields["location"] = m.Location
		}
		if m.IsError() {
			errs++
			e.log.Warn(ctx, "browser console error", fields)
			continue
		}
		e.log.Debug(ctx, "browser console", fields)
	}
	return errs
}
