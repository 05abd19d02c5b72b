package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuan-noorazman/ui-harness/browser"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
)

// Runner executes scenarios. Each run opens its own page through Open and
// releases it before returning.
type Runner struct {
	Open browser.Opener
	// Env is copied for every run; RunID and Unique are filled in per run.
	Env      Env
	Log      logger.Logger
	Timeouts step.Timeouts
	// Blobs receives screenshots and the session log. Nil disables both.
	Blobs storage.BlobStorage
	// SkipScreenshots turns screenshot steps into no-ops. Failure
	// screenshots are governed by ScreenshotOnFailure alone.
	SkipScreenshots     bool
	ScreenshotOnFailure bool
	FullPage            bool
	LoadState           string
	// DumpOnFailure stores URL, title, DOM and console of the page next to
	// the failure screenshot.
	DumpOnFailure bool
	// LogPath is uploaded as a log artifact when the run ends.
	LogPath   string
	SessionID string
	Observers []Observer

	// Now is used for timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) log() logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

func (r *Runner) notify(fn func(o Observer)) {
	for _, o := range r.Observers {
		fn(o)
	}
}

// Run compiles sc and executes it. A scenario that does not compile is
// returned as an error before any browser is opened; everything that goes
// wrong afterwards is reported in the Report.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	env := r.Env
	env.RunID = uuid.NewString()
	if env.Unique == "" {
		env.Unique = UniqueSuffix(r.now())
	}

	plan, err := Compile(sc, env)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, plan), nil
}

// Execute runs a compiled plan.
func (r *Runner) Execute(ctx context.Context, plan *Plan) *Report {
	log := r.log().WithFields(map[string]interface{}{
		"run_id":   plan.RunID,
		"scenario": plan.Scenario,
	})

	rep := &Report{
		RunID:     plan.RunID,
		Scenario:  plan.Scenario,
		SessionID: r.SessionID,
		Status:    step.StatusPassed,
		StartedAt: r.now(),
	}

	log.Info(ctx, "run started", map[string]interface{}{"steps": len(plan.Steps)})
	r.notify(func(o Observer) {
		o.RunStarted(ctx, RunInfo{
			ID:        plan.RunID,
			Scenario:  plan.Scenario,
			SessionID: r.SessionID,
			StartedAt: rep.StartedAt,
			Steps:     len(plan.Steps),
		})
	})

	var arts *storage.Artifacts
	if r.Blobs != nil {
		arts = storage.NewArtifacts(r.Blobs, plan.RunID)
		arts.OnSaved = func(ctx context.Context, a storage.Artifact) {
			r.notify(func(o Observer) { o.ArtifactSaved(ctx, plan.RunID, a) })
		}
	}

	r.drive(ctx, plan, arts, log, rep)

	rep.Duration = time.Since(rep.StartedAt)

	if arts != nil && r.LogPath != "" {
		arts.SetStep(0)
		if _, err := arts.SaveFile(ctx, storage.KindLog, r.LogPath); err != nil {
			log.Warn(ctx, "failed to store session log", map[string]interface{}{"error": err.Error()})
		}
	}

	passed, failed, skipped := rep.Counts()
	fields := map[string]interface{}{
		"status":      string(rep.Status),
		"duration_ms": rep.Duration.Milliseconds(),
		"passed":      passed,
		"failed":      failed,
		"skipped":     skipped,
	}
	if rep.Err != nil {
		fields["error"] = rep.Err.Error()
		log.Error(ctx, "run failed", fields)
	} else {
		log.Info(ctx, "run passed", fields)
	}

	r.notify(func(o Observer) { o.RunFinished(ctx, rep) })
	return rep
}

// drive owns the page for the duration of the steps. The handle is closed on
// every path out of it.
func (r *Runner) drive(ctx context.Context, plan *Plan, arts *storage.Artifacts, log logger.Logger, rep *Report) {
	handle, err := r.Open(ctx)
	if err != nil {
		err = &step.Error{Action: "open", Target: "browser", Kind: step.ErrUnexpectedFailure, Err: err}
		rep.Status = step.StatusFailed
		rep.Err = err
		log.Error(ctx, "failed to open browser", map[string]interface{}{"error": err.Error()})
		r.skipFrom(ctx, plan, 0, rep)
		return
	}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Warn(ctx, "failed to release browser", map[string]interface{}{"error": err.Error()})
		}
	}()

	opts := []step.Option{
		step.WithLogger(log),
		step.WithTimeouts(r.Timeouts),
		step.WithFullPage(r.FullPage),
	}
	if r.LoadState != "" {
		opts = append(opts, step.WithLoadState(r.LoadState))
	}
	if arts != nil {
		opts = append(opts, step.WithScreenshotSink(arts))
	}
	exec := step.New(handle.Page(), opts...)

	rep.Page = exec.Page()

	for i, ps := range plan.Steps {
		if arts != nil {
			arts.SetStep(i + 1)
		}

		var res step.Result
		res, exec = r.runStep(ctx, exec, i, ps, log)
		rep.Page = exec.Page()

		if res.Failed() {
			rep.Status = step.StatusFailed
			rep.Err = res.Err
			r.captureFailure(ctx, exec, arts, i, &res, rep)
		}

		rep.Steps = append(rep.Steps, res)
		r.notify(func(o Observer) { o.StepFinished(ctx, plan.RunID, res) })

		if res.Failed() {
			r.skipFrom(ctx, plan, i+1, rep)
			return
		}
	}
}

// captureFailure logs the browser console and stores the failure screenshot
// and page dump of the step at index.
func (r *Runner) captureFailure(ctx context.Context, exec *step.Executor, arts *storage.Artifacts, index int, res *step.Result, rep *Report) {
	exec.LogConsole(ctx)
	if arts == nil {
		return
	}

	name := fmt.Sprintf("failure_%02d_%s", index+1, storage.SanitizeName(res.Name))
	if r.ScreenshotOnFailure {
		if loc := exec.Screenshot(ctx, name); loc != "" {
			res.Screenshot = loc
			rep.Screenshot = loc
		}
	}
	if !r.DumpOnFailure {
		return
	}

	data, err := json.MarshalIndent(exec.Dump(ctx, res.Name, res.Err), "", "  ")
	if err != nil {
		r.log().Warn(ctx, "failed to encode page dump", map[string]interface{}{"error": err.Error()})
		return
	}
	art, err := arts.SaveDump(ctx, name, data)
	if err != nil {
		r.log().Warn(ctx, "failed to store page dump", map[string]interface{}{
			"step":  res.Name,
			"error": err.Error(),
		})
		return
	}
	rep.Dump = art.Location
}

// skipFrom records every step from index on as skipped.
func (r *Runner) skipFrom(ctx context.Context, plan *Plan, index int, rep *Report) {
	for i := index; i < len(plan.Steps); i++ {
		ps := plan.Steps[i]
		res := step.Result{
			Index:     i,
			Name:      ps.Name,
			Action:    ps.Action,
			Status:    step.StatusSkipped,
			Optional:  ps.Optional,
			StartedAt: r.now(),
		}
		rep.Steps = append(rep.Steps, res)
		r.notify(func(o Observer) { o.StepFinished(ctx, plan.RunID, res) })
	}
}

// runStep executes one planned step and returns its result together with
// the executor for the next step, which drives a popup after expect_popup.
func (r *Runner) runStep(ctx context.Context, exec *step.Executor, index int, ps PlannedStep, log logger.Logger) (step.Result, *step.Executor) {
	res := step.Result{
		Index:     index,
		Name:      ps.Name,
		Action:    ps.Action,
		Optional:  ps.Optional,
		StartedAt: r.now(),
	}

	timer := logger.StartStep(ctx, log, ps.Name, map[string]interface{}{
		"index":  index + 1,
		"action": ps.Action,
	})

	x := exec.Override(time.Duration(ps.Timeout))
	next := exec
	var err error

	switch ps.Action {
	case ActionNavigate:
		err = x.NavigateUntil(ctx, ps.URL, ps.State)

	case ActionClick:
		err = x.Click(ctx, ps.Target)

	case ActionType:
		err = x.Fill(ctx, ps.Target, ps.Value)

	case ActionWait:
		switch {
		case ps.Target.IsZero():
			err = x.WaitForLoadState(ctx, ps.State)
		case ps.State == browser.StateHidden || ps.State == browser.StateDetached:
			err = x.WaitHidden(ctx, ps.Target)
		default:
			err = x.WaitVisible(ctx, ps.Target)
		}

	case ActionWaitURL:
		err = x.WaitForURL(ctx, ps.URLPattern)

	case ActionWaitResponse:
		var trigger func() error
		if !ps.TriggerTarget.IsZero() {
			trigger = func() error { return x.Click(ctx, ps.TriggerTarget) }
		}
		var status int
		status, err = x.WaitForResponse(ctx, ps.URLPattern, trigger)
		if err == nil {
			res.Detail = strconv.Itoa(status)
			if ps.ExpectStatus != 0 && status != ps.ExpectStatus {
				err = &step.Error{
					Action: ActionWaitResponse,
					Target: ps.Pattern,
					Kind:   step.ErrAssertionFailed,
					Err:    fmt.Errorf("expected status %d, got %d", ps.ExpectStatus, status),
				}
			}
		}

	case ActionExpectPopup:
		var popup browser.Page
		popup, err = x.ExpectPopup(ctx, func() error { return x.Click(ctx, ps.TriggerTarget) })
		if err == nil {
			next = exec.WithPage(popup)
			res.Detail = popup.URL()
		}

	case ActionAssertText:
		res.Detail, err = x.AssertText(ctx, ps.Target, ps.Value, ps.Contains)

	case ActionScreenshot:
		if !r.SkipScreenshots {
			res.Screenshot = x.Screenshot(ctx, ps.Value)
		}

	case ActionUpload:
		err = x.Upload(ctx, ps.Target, ps.Files)

	default:
		err = &step.Error{Action: ps.Action, Kind: step.ErrUnexpectedFailure, Err: fmt.Errorf("unsupported action")}
	}

	if err != nil && !ps.ErrorTarget.IsZero() {
		err = r.pageError(ctx, x, ps, err)
	}

	if err == nil && ps.Screenshot != "" && !r.SkipScreenshots {
		res.Screenshot = next.Screenshot(ctx, ps.Screenshot)
	}

	switch {
	case err == nil:
		res.Status = step.StatusPassed
		res.Duration = timer.End(nil)

	case ps.Optional:
		res.Status = step.StatusSkipped
		res.Kind = step.KindOf(err)
		res.Err = err
		res.Duration = timer.End(nil)
		log.Info(ctx, "optional step skipped", map[string]interface{}{
			"step":   ps.Name,
			"reason": err.Error(),
		})

	default:
		res.Status = step.StatusFailed
		res.Kind = step.KindOf(err)
		res.Err = err
		res.Duration = timer.End(err)
	}

	return res, next
}

// pageError replaces err when the page shows an error message.
func (r *Runner) pageError(ctx context.Context, x *step.Executor, ps PlannedStep, err error) error {
	if !x.IsPresent(ctx, ps.ErrorTarget) {
		return err
	}
	msg, textErr := x.Text(ctx, ps.ErrorTarget)
	if textErr != nil {
		return err
	}
	return &step.Error{
		Action: ps.Action,
		Target: ps.ErrorTarget.Describe(),
		Kind:   step.ErrAssertionFailed,
		Err:    fmt.Errorf("page shows error %q: %w", msg, err),
	}
}
