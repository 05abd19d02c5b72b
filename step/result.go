package step

import "time"

// Status is the outcome of one step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records one executed step.
type Result struct {
	Index      int
	Name       string
	Action     string
	Status     Status
	Kind       error
	Err        error
	Optional   bool
	StartedAt  time.Time
	Duration   time.Duration
	Screenshot string
	// Detail carries action output such as a response status or asserted text.
	Detail string
}

// KindName returns the stable name of the failure kind.
func (r Result) KindName() string {
	return KindName(r.Kind)
}

// Message returns the error text, or "" for a passing step.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Failed reports whether the step failed.
func (r Result) Failed() bool {
	return r.Status == StatusFailed
}
