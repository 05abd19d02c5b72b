package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// RedactedValue replaces the value of any field whose key looks sensitive.
const RedactedValue = "***REDACTED***"

// DefaultSensitiveFields lists the key fragments that are redacted when no
// explicit list is configured.
var DefaultSensitiveFields = []string{"password", "token", "credential", "secret"}

// Redactor masks values of sensitive keys. Matching is a case-insensitive
// substring match on the key, so "newUserPassword" and "api_token" are both
// caught by the defaults.
type Redactor struct {
	fragments []string
}

// NewRedactor creates a redactor for the given key fragments.
// An empty list falls back to DefaultSensitiveFields.
func NewRedactor(fragments []string) *Redactor {
	if len(fragments) == 0 {
		fragments = DefaultSensitiveFields
	}
	lowered := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			lowered = append(lowered, f)
		}
	}
	return &Redactor{fragments: lowered}
}

// IsSensitive reports whether the key should have its value masked.
func (r *Redactor) IsSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, f := range r.fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

// Redact returns a copy of fields with sensitive values masked. Nested maps
// and slices are walked; the input is never modified.
func (r *Redactor) Redact(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if r.IsSensitive(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = r.redactValue(v)
	}
	return out
}

func (r *Redactor) redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return r.Redact(val)
	case map[string]string:
		m := make(map[string]interface{}, len(val))
		for k, s := range val {
			m[k] = s
		}
		return r.Redact(m)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = r.redactValue(item)
		}
		return items
	case error:
		return val.Error()
	default:
		return v
	}
}

// Redact masks sensitive values in fields using DefaultSensitiveFields.
func Redact(fields map[string]interface{}) map[string]interface{} {
	return NewRedactor(nil).Redact(fields)
}

// redactHook masks sensitive entry data before any formatter sees it.
type redactHook struct {
	redactor *Redactor
}

func (h *redactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *redactHook) Fire(entry *logrus.Entry) error {
	for k, v := range entry.Data {
		if h.redactor.IsSensitive(k) {
			entry.Data[k] = RedactedValue
			continue
		}
		entry.Data[k] = h.redactor.redactValue(v)
	}
	return nil
}
