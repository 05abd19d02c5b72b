package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew_ConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.Info(context.Background(), "page opened", map[string]interface{}{
		"url":      "http://localhost/console",
		"password": "hunter2",
	})

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	assert.Equal(t, "page opened", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "http://localhost/console", lines[0]["url"])
	assert.Equal(t, RedactedValue, lines[0]["password"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "chatty", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.Debug(context.Background(), "hidden", nil)
	log.Info(context.Background(), "shown", nil)

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestNew_FileSink(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	log, err := New(Options{
		Level:     "info",
		Output:    &console,
		Dir:       dir,
		SessionID: "session-1",
	})
	require.NoError(t, err)
	defer log.Close()

	log.WithField("scenario", "login").Warn(context.Background(), "slow page", map[string]interface{}{
		"api_token": "abc",
	})
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	expected := filepath.Join(dir, "sessions", "session-1", "run.log")
	assert.Equal(t, expected, log.LogPath())

	data, err := os.ReadFile(expected)
	require.NoError(t, err)

	lines := decodeLines(t, data)
	require.Len(t, lines, 1)
	assert.Equal(t, "slow page", lines[0]["msg"])
	assert.Equal(t, "login", lines[0]["scenario"])
	assert.Equal(t, "session-1", lines[0]["session_id"])
	assert.Equal(t, RedactedValue, lines[0]["api_token"])
	assert.Contains(t, console.String(), "slow page")
}

func TestNew_FileSinkRequiresSessionID(t *testing.T) {
	var console bytes.Buffer
	log, err := New(Options{Output: &console, Dir: t.TempDir()})
	require.Error(t, err)
	require.NotNil(t, log)

	log.Info(context.Background(), "still usable", nil)
	assert.Contains(t, console.String(), "still usable")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestLogrusLogger_NeverRaises(t *testing.T) {
	log, err := New(Options{Output: failingWriter{}})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		log.Error(context.Background(), "cannot be written", map[string]interface{}{"k": "v"})
	})
}
