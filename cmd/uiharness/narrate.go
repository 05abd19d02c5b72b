package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
	"github.com/hairizuan-noorazman/ui-harness/suite"
)

// narrator prints one line per step as a run progresses.
type narrator struct {
	out io.Writer

	pass func(a ...interface{}) string
	fail func(a ...interface{}) string
	skip func(a ...interface{}) string
	dim  func(a ...interface{}) string
	bold func(a ...interface{}) string
}

func newNarrator(out io.Writer) *narrator {
	return &narrator{
		out:  out,
		pass: color.New(color.FgGreen).SprintFunc(),
		fail: color.New(color.FgRed).SprintFunc(),
		skip: color.New(color.FgYellow).SprintFunc(),
		dim:  color.New(color.Faint).SprintFunc(),
		bold: color.New(color.Bold).SprintFunc(),
	}
}

func (n *narrator) RunStarted(ctx context.Context, run scenario.RunInfo) {
	fmt.Fprintf(n.out, "%s %s\n", n.bold("▶ "+run.Scenario), n.dim(fmt.Sprintf("(%d steps, run %s)", run.Steps, run.ID)))
}

func (n *narrator) StepFinished(ctx context.Context, runID string, res step.Result) {
	label := res.Name
	if label == "" {
		label = res.Action
	}
	took := n.dim(res.Duration.Round(time.Millisecond).String())

	switch res.Status {
	case step.StatusPassed:
		fmt.Fprintf(n.out, "  %s %s %s\n", n.pass("✓"), label, took)
	case step.StatusSkipped:
		reason := "skipped"
		if res.Err != nil {
			reason = res.Message()
		}
		fmt.Fprintf(n.out, "  %s %s %s\n", n.skip("-"), label, n.dim(reason))
	default:
		fmt.Fprintf(n.out, "  %s %s %s\n", n.fail("✗"), label, took)
		fmt.Fprintf(n.out, "    %s %s\n", n.fail(res.KindName()), res.Message())
	}
}

func (n *narrator) ArtifactSaved(ctx context.Context, runID string, art storage.Artifact) {
	if art.Kind != storage.KindScreenshot && art.Kind != storage.KindDump {
		return
	}
	where := art.Location
	if where == "" {
		where = art.Path
	}
	fmt.Fprintf(n.out, "    %s\n", n.dim(art.Kind+": "+where))
}

func (n *narrator) RunFinished(ctx context.Context, rep *scenario.Report) {
	passed, failed, skipped := rep.Counts()
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped in %s", passed, failed, skipped, rep.Duration.Round(time.Millisecond))
	if rep.Passed() {
		fmt.Fprintf(n.out, "%s %s\n\n", n.pass("PASSED"), summary)
		return
	}
	fmt.Fprintf(n.out, "%s %s\n\n", n.fail("FAILED"), summary)
}

// suiteSummary prints the outcome of a suite after its scenarios have been
// narrated.
func (n *narrator) suiteSummary(rep *suite.Report) {
	ran := len(rep.Reports)
	for _, name := range rep.Skipped {
		fmt.Fprintf(n.out, "%s %s\n", n.skip("- "+name), n.dim("not run"))
	}
	status := n.pass("SUITE PASSED")
	if !rep.Passed() {
		status = n.fail("SUITE FAILED")
	}
	fmt.Fprintf(n.out, "%s %s: %d run, %d skipped in %s\n", status, rep.Name, ran, len(rep.Skipped), rep.Duration.Round(time.Millisecond))
}
