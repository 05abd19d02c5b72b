package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options configures a LogrusLogger.
type Options struct {
	// Level is parsed with logrus.ParseLevel; unknown levels fall back to info.
	Level string

	// Format selects the console formatter: "text" (default) or "json".
	Format string

	// Output is the console writer. Defaults to os.Stdout.
	Output io.Writer

	// Dir enables the JSON file sink at <Dir>/sessions/<SessionID>/run.log.
	// Leave empty to log to the console only.
	Dir string

	// SessionID names the session directory. Required when Dir is set.
	SessionID string

	// SensitiveFields overrides DefaultSensitiveFields for redaction.
	SensitiveFields []string
}

// LogrusLogger wraps a logrus logger to implement the Logger interface.
type LogrusLogger struct {
	logger  *logrus.Logger
	entry   *logrus.Entry
	file    *os.File
	logPath string
	once    *sync.Once
}

// NewLogrusLogger creates a console LogrusLogger at the given level.
func NewLogrusLogger(level string) *LogrusLogger {
	l, _ := New(Options{Level: level})
	return l
}

// New creates a LogrusLogger from options. If the file sink cannot be opened
// the returned logger still works on the console and the error is returned
// alongside it, so callers may warn and carry on.
func New(opts Options) (*LogrusLogger, error) {
	logger := logrus.New()
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch opts.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// Parse and set log level
	logLevel, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Redaction must run before the file hook so neither sink sees raw values.
	logger.AddHook(&redactHook{redactor: NewRedactor(opts.SensitiveFields)})

	l := &LogrusLogger{
		logger: logger,
		entry:  logrus.NewEntry(logger),
		once:   &sync.Once{},
	}

	if opts.Dir == "" {
		return l, nil
	}

	file, logPath, err := openSessionFile(opts.Dir, opts.SessionID)
	if err != nil {
		return l, err
	}
	l.file = file
	l.logPath = logPath
	logger.AddHook(&fileHook{
		writer:    file,
		formatter: &logrus.JSONFormatter{},
	})
	if opts.SessionID != "" {
		l.entry = l.entry.WithField("session_id", opts.SessionID)
	}

	return l, nil
}

func openSessionFile(dir, sessionID string) (*os.File, string, error) {
	if sessionID == "" {
		return nil, "", fmt.Errorf("session id is required for file logging")
	}

	sessionDir := filepath.Join(dir, "sessions", sessionID)
	if err := os.MkdirAll(sessionDir, 0750); err != nil {
		return nil, "", fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(sessionDir, "run.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log file: %w", err)
	}

	return file, logPath, nil
}

// fileHook writes every entry to a second sink with its own formatter.
type fileHook struct {
	mu        sync.Mutex
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}

// Debug logs a debug-level message.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	defer swallow()
	l.with(fields).Debug(msg)
}

// Info logs an info-level message.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	defer swallow()
	l.with(fields).Info(msg)
}

// Warn logs a warning-level message.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	defer swallow()
	l.with(fields).Warn(msg)
}

// Error logs an error-level message.
func (l *LogrusLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	defer swallow()
	l.with(fields).Error(msg)
}

func (l *LogrusLogger) with(fields map[string]interface{}) *logrus.Entry {
	if fields != nil {
		return l.entry.WithFields(fields)
	}
	return l.entry
}

// swallow keeps a broken formatter or writer from taking the run down.
func swallow() {
	_ = recover()
}

// WithField returns a new logger with the given field added.
func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	child := *l
	child.entry = l.entry.WithField(key, value)
	return &child
}

// WithFields returns a new logger with the given fields added.
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	child := *l
	child.entry = l.entry.WithFields(fields)
	return &child
}

// LogPath returns the session log file path, or "" when logging to the console only.
func (l *LogrusLogger) LogPath() string {
	return l.logPath
}

// Close closes the session log file. Safe to call multiple times.
func (l *LogrusLogger) Close() error {
	var err error
	l.once.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
