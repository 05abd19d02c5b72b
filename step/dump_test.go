package step

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/ui-harness/browser"
	"github.com/hairizuan-noorazman/ui-harness/browser/browsertest"
)

func TestExecutor_Dump(t *testing.T) {
	page := browsertest.NewPage()
	page.SetURL("http://console.test/console/machines")
	page.PageTitle = "Machines"
	page.HTML = "<html><body><h1>Machines</h1></body></html>"
	page.Log("error", "Failed to load resource: 500")
	ex, _ := newExecutor(page)

	d := ex.Dump(context.Background(), "create machine", errors.New("element not found"))
	assert.Equal(t, "create machine", d.Step)
	assert.Equal(t, "element not found", d.Error)
	assert.Equal(t, "http://console.test/console/machines", d.URL)
	assert.Equal(t, "Machines", d.Title)
	assert.Contains(t, d.HTML, "<h1>Machines</h1>")
	assert.False(t, d.HTMLTruncated)
	require.Len(t, d.Console, 1)
	assert.Empty(t, d.CaptureErrors)
	assert.False(t, d.CapturedAt.IsZero())
}

func TestExecutor_DumpIsBestEffort(t *testing.T) {
	page := browsertest.NewPage()
	page.ContentErr = browser.ErrClosed
	ex, _ := newExecutor(page)

	d := ex.Dump(context.Background(), "submit", nil)
	assert.Empty(t, d.HTML)
	assert.NotNil(t, d.Console)
	require.Len(t, d.CaptureErrors, 1)
	assert.True(t, strings.HasPrefix(d.CaptureErrors[0], "content: "))

	page.ContentErr = nil
	page.HTML = strings.Repeat("a", MaxDumpHTML+10)
	d = ex.Dump(context.Background(), "submit", nil)
	assert.Len(t, d.HTML, MaxDumpHTML)
	assert.True(t, d.HTMLTruncated)
}

func TestExecutor_LogConsole(t *testing.T) {
	page := browsertest.NewPage()
	page.Log("log", "app booted")
	page.Log("error", "Uncaught TypeError")
	page.Log(browser.ConsolePageError, "ReferenceError: foo is not defined")
	ex, log := newExecutor(page)

	assert.Equal(t, 2, ex.LogConsole(context.Background()))
	assert.Len(t, log.Messages("warn"), 2)
	assert.Contains(t, log.Messages("debug"), "browser console")
}
