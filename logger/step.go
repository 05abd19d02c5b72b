package logger

import (
	"context"
	"time"
)

// StepTimer brackets a named step with begin/end log entries.
type StepTimer struct {
	ctx    context.Context
	log    Logger
	name   string
	start  time.Time
	fields map[string]interface{}
}

// StartStep logs the beginning of a named step and returns a timer whose End
// method logs the outcome together with the elapsed duration.
func StartStep(ctx context.Context, log Logger, name string, fields map[string]interface{}) *StepTimer {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["step"] = name

	log.Info(ctx, "step started", merged)

	return &StepTimer{
		ctx:    ctx,
		log:    log,
		name:   name,
		start:  time.Now(),
		fields: merged,
	}
}

// End logs "step finished" or "step failed" and returns the elapsed time.
func (s *StepTimer) End(err error) time.Duration {
	elapsed := time.Since(s.start)

	fields := make(map[string]interface{}, len(s.fields)+2)
	for k, v := range s.fields {
		fields[k] = v
	}
	fields["duration_ms"] = elapsed.Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		s.log.Error(s.ctx, "step failed", fields)
		return elapsed
	}

	s.log.Info(s.ctx, "step finished", fields)
	return elapsed
}

// Name returns the step name.
func (s *StepTimer) Name() string {
	return s.name
}
