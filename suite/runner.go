package suite

import (
	"context"
	"time"

	"github.com/hairizuan-noorazman/ui-harness/browser"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/step"
)

// Report is the outcome of a suite run.
type Report struct {
	Name      string
	Status    step.Status
	Reports   []*scenario.Report
	Skipped   []string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	return r.Status == step.StatusPassed
}

// ExitCode is 0 when the suite passed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r == nil || !r.Passed() {
		return 1
	}
	return 0
}

// Runner runs suites. Scenarios is the template for every scenario run; its
// Open is replaced by the suite's shared session. After a login that ends in
// a popup, the scenarios drive the popup.
type Runner struct {
	Open      browser.Opener
	Scenarios scenario.Runner
	Log       logger.Logger
}

// Run executes the scenarios of d in order in one browser session. All
// scenarios are compiled before the browser is opened.
func (r *Runner) Run(ctx context.Context, d Definition, scenarios []*scenario.Scenario) (*Report, error) {
	log := r.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithField("suite", d.Name)

	base := r.Scenarios
	if base.Env.Unique == "" {
		base.Env.Unique = scenario.UniqueSuffix(time.Now())
	}

	needsLogin := false
	for _, sc := range scenarios {
		check := base.Env
		check.LoggedIn = true
		if _, err := scenario.Compile(sc, check); err != nil {
			return nil, err
		}
		needsLogin = needsLogin || sc.RequiresLogin
	}

	rep := &Report{Name: d.Name, Status: step.StatusPassed, StartedAt: time.Now()}
	defer func() { rep.Duration = time.Since(rep.StartedAt) }()

	log.Info(ctx, "suite started", map[string]interface{}{
		"scenarios":   len(scenarios),
		"needs_login": needsLogin,
	})

	handle, err := r.Open(ctx)
	if err != nil {
		rep.Status = step.StatusFailed
		rep.Err = &step.Error{Action: "open", Target: "browser", Kind: step.ErrUnexpectedFailure, Err: err}
		for _, sc := range scenarios {
			rep.Skipped = append(rep.Skipped, sc.Name)
		}
		log.Error(ctx, "failed to open browser", map[string]interface{}{"error": err.Error()})
		return rep, nil
	}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Warn(ctx, "failed to release browser", map[string]interface{}{"error": err.Error()})
		}
	}()

	base.Open = browser.Shared(handle)

	if needsLogin {
		runner := base
		sr, err := runner.Run(ctx, scenario.Login(base.Env.Settings))
		if err != nil {
			return nil, err
		}
		rep.Reports = append(rep.Reports, sr)
		if !sr.Passed() {
			rep.Status = step.StatusFailed
			rep.Err = sr.Err
			for _, sc := range scenarios {
				rep.Skipped = append(rep.Skipped, sc.Name)
			}
			log.Error(ctx, "suite login failed", map[string]interface{}{"error": sr.Err.Error()})
			return rep, nil
		}
		base.Env.LoggedIn = true
		if sr.Page != nil {
			base.Open = browser.SharedPage(handle, sr.Page)
		}
	}

	for i, sc := range scenarios {
		runner := base
		sr, err := runner.Run(ctx, sc)
		if err != nil {
			return nil, err
		}
		rep.Reports = append(rep.Reports, sr)

		if sr.Passed() {
			continue
		}
		rep.Status = step.StatusFailed
		if rep.Err == nil {
			rep.Err = sr.Err
		}
		if !d.ContinueOnFailure {
			for _, rest := range scenarios[i+1:] {
				rep.Skipped = append(rep.Skipped, rest.Name)
			}
			break
		}
	}

	log.Info(ctx, "suite finished", map[string]interface{}{
		"status":  string(rep.Status),
		"ran":     len(rep.Reports),
		"skipped": len(rep.Skipped),
	})
	return rep, nil
}
