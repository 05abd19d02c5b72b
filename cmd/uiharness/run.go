package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/ui-harness/harness"
	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/suite"
)

type runFlags struct {
	vars   map[string]string
	headed bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "override a scenario var (name=value, repeatable)")
	cmd.Flags().BoolVar(&f.headed, "headed", false, "show the browser window")
}

func (f *runFlags) options(cmd *cobra.Command) harness.Options {
	opts := harness.Options{
		ConfigPath: flagConfig,
		Vars:       f.vars,
		Headed:     f.headed,
		LogOutput:  cmd.ErrOrStderr(),
	}
	if !flagJSON {
		opts.Observers = append(opts.Observers, newNarrator(cmd.OutOrStdout()))
	}
	return opts
}

// signalContext is cancelled on SIGINT or SIGTERM so browser cleanup runs.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			opts := flags.options(cmd)
			opts.ScenarioPath = args[0]
			rep, err := harness.Run(ctx, opts)
			if err != nil {
				return err
			}
			return finishRun(cmd.OutOrStdout(), rep)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newLoginCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the configured console and screenshot the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rep, err := harness.Run(ctx, flags.options(cmd))
			if err != nil {
				return err
			}
			return finishRun(cmd.OutOrStdout(), rep)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newSuiteCmd() *cobra.Command {
	var flags runFlags
	var name string

	cmd := &cobra.Command{
		Use:   "suite <file>",
		Short: "Run the scenarios of a suite in one browser session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			opts := flags.options(cmd)
			opts.SuitePath = args[0]
			opts.SuiteName = name
			rep, err := harness.RunSuite(ctx, opts)
			if err != nil {
				return err
			}

			if flagJSON {
				if err := printJSON(cmd.OutOrStdout(), suiteView(rep)); err != nil {
					return err
				}
			} else {
				newNarrator(cmd.OutOrStdout()).suiteSummary(rep)
			}
			if !rep.Passed() {
				return errRunFailed
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&name, "scenario", "s", "", "suite to run when the file defines several")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var vars map[string]string

	cmd := &cobra.Command{
		Use:   "validate [scenario]",
		Short: "Check configuration and a scenario without opening a browser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := harness.Options{ConfigPath: flagConfig, Vars: vars}
			if len(args) == 1 {
				opts.ScenarioPath = args[0]
			}
			plan, err := harness.Validate(opts)
			if err != nil {
				return err
			}

			type plannedView struct {
				Action string `json:"action"`
				Name   string `json:"name"`
				Target string `json:"target,omitempty"`
			}
			steps := make([]plannedView, 0, len(plan.Steps))
			rows := make([][]string, 0, len(plan.Steps))
			for i, ps := range plan.Steps {
				target := ps.URL
				if !ps.Target.IsZero() {
					target = ps.Target.Describe()
				}
				if ps.URLPattern != nil {
					target = ps.Pattern
				}
				steps = append(steps, plannedView{Action: ps.Action, Name: ps.Name, Target: target})
				rows = append(rows, []string{fmt.Sprintf("%d", i+1), ps.Action, ps.Name, target})
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				return printJSON(out, map[string]interface{}{"scenario": plan.Scenario, "steps": steps})
			}
			printTable(out, []string{"#", "ACTION", "NAME", "TARGET"}, rows)
			printMessage(out, "%s: %d steps OK", plan.Scenario, len(plan.Steps))
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&vars, "var", nil, "override a scenario var (name=value, repeatable)")
	return cmd
}

func finishRun(out io.Writer, rep *scenario.Report) error {
	if flagJSON {
		if err := printJSON(out, reportView(rep)); err != nil {
			return err
		}
	}
	if !rep.Passed() {
		return errRunFailed
	}
	return nil
}

type stepView struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type runView struct {
	RunID      string     `json:"run_id"`
	Scenario   string     `json:"scenario"`
	SessionID  string     `json:"session_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
	Screenshot string     `json:"screenshot,omitempty"`
	Dump       string     `json:"dump,omitempty"`
	Steps      []stepView `json:"steps"`
}

type suiteRunView struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Runs       []runView `json:"runs"`
	Skipped    []string  `json:"skipped,omitempty"`
}

func reportView(rep *scenario.Report) runView {
	v := runView{
		RunID:      rep.RunID,
		Scenario:   rep.Scenario,
		SessionID:  rep.SessionID,
		Status:     string(rep.Status),
		StartedAt:  rep.StartedAt,
		DurationMS: rep.Duration.Milliseconds(),
		Screenshot: rep.Screenshot,
		Dump:       rep.Dump,
		Steps:      make([]stepView, 0, len(rep.Steps)),
	}
	if rep.Err != nil {
		v.Error = rep.Err.Error()
	}
	for _, res := range rep.Steps {
		v.Steps = append(v.Steps, stepView{
			Index:      res.Index,
			Name:       res.Name,
			Action:     res.Action,
			Status:     string(res.Status),
			ErrorKind:  res.KindName(),
			Message:    res.Message(),
			Detail:     res.Detail,
			Screenshot: res.Screenshot,
			DurationMS: res.Duration.Milliseconds(),
		})
	}
	return v
}

func suiteView(rep *suite.Report) suiteRunView {
	v := suiteRunView{
		Name:       rep.Name,
		Status:     string(rep.Status),
		DurationMS: rep.Duration.Milliseconds(),
		Skipped:    rep.Skipped,
		Runs:       make([]runView, 0, len(rep.Reports)),
	}
	if rep.Err != nil {
		v.Error = rep.Err.Error()
	}
	for _, r := range rep.Reports {
		v.Runs = append(v.Runs, reportView(r))
	}
	return v
}
