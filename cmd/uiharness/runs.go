package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/ui-harness/harness"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/testrun"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded run history",
	}

	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsGetCmd())
	cmd.AddCommand(newRunsPruneCmd())
	return cmd
}

func loadHistory() (*history, error) {
	_, settings, err := harness.LoadSettings(flagConfig)
	if err != nil {
		return nil, err
	}
	return openHistory(settings, logger.Nop())
}

func newRunsListCmd() *cobra.Command {
	var opts testrun.ListOptions
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				opts.Status = testrun.Status(status)
				if !opts.Status.IsValid() {
					return fmt.Errorf("%w: %q", testrun.ErrInvalidStatus, status)
				}
			}

			h, err := loadHistory()
			if err != nil {
				return err
			}
			defer h.Close()

			runs, err := h.runs.List(context.Background(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				return printJSON(out, runs)
			}

			headers := []string{"ID", "SCENARIO", "STATUS", "STEPS", "STARTED AT", "DURATION"}
			var rows [][]string
			for _, r := range runs {
				duration := "-"
				if r.CompletedAt != nil {
					duration = r.Duration().Round(time.Millisecond).String()
				}
				rows = append(rows, []string{
					r.ID.String(),
					r.ScenarioName,
					string(r.Status),
					strconv.Itoa(r.StepCount),
					formatTime(r.StartedAt),
					duration,
				})
			}
			printTable(out, headers, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ScenarioName, "scenario", "", "Filter by scenario name")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, passed, failed, skipped)")
	cmd.Flags().IntVar(&opts.Limit, "limit", testrun.DefaultListLimit, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")
	return cmd
}

func newRunsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show a run with its steps and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run ID %q: must be a valid UUID", args[0])
			}

			h, err := loadHistory()
			if err != nil {
				return err
			}
			defer h.Close()

			ctx := context.Background()
			run, err := h.runs.GetByID(ctx, id)
			if err != nil {
				return err
			}
			steps, err := h.steps.ListByTestRun(ctx, id)
			if err != nil {
				return err
			}
			assets, err := h.assets.ListByTestRun(ctx, id, testrun.AssetFilter{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				return printJSON(out, map[string]interface{}{
					"run":    run,
					"steps":  steps,
					"assets": assets,
				})
			}

			printMessage(out, "Run:       %s", run.ID)
			printMessage(out, "Scenario:  %s", run.ScenarioName)
			printMessage(out, "Session:   %s", run.SessionID)
			printMessage(out, "Status:    %s", run.Status)
			printMessage(out, "Started:   %s", formatTime(run.StartedAt))
			printMessage(out, "Completed: %s", formatTime(run.CompletedAt))
			if run.Notes != "" {
				printMessage(out, "Notes:     %s", run.Notes)
			}
			printMessage(out, "")

			var rows [][]string
			for _, s := range steps {
				rows = append(rows, []string{
					strconv.Itoa(s.StepIndex + 1),
					s.Action,
					s.Name,
					string(s.Status),
					s.ErrorKind,
					strconv.FormatInt(s.DurationMS, 10) + "ms",
				})
			}
			printTable(out, []string{"#", "ACTION", "NAME", "STATUS", "ERROR", "DURATION"}, rows)

			if len(assets) > 0 {
				printMessage(out, "")
				rows = rows[:0]
				for _, a := range assets {
					where := a.Location
					if where == "" {
						where = a.AssetPath
					}
					stepNo := "-"
					if a.StepIndex != nil {
						stepNo = strconv.Itoa(*a.StepIndex + 1)
					}
					rows = append(rows, []string{stepNo, string(a.AssetType), a.FileName, where})
				}
				printTable(out, []string{"STEP", "TYPE", "FILE", "LOCATION"}, rows)
			}
			return nil
		},
	}
}

func newRunsPruneCmd() *cobra.Command {
	var olderThan time.Duration
	var status string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs with their steps and stored artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			opts := testrun.PruneOptions{
				Before: time.Now().Add(-olderThan),
				Status: testrun.Status(status),
				DryRun: dryRun,
			}

			_, settings, err := harness.LoadSettings(flagConfig)
			if err != nil {
				return err
			}
			ctx := context.Background()
			log, _ := logger.New(logger.Options{Level: settings.Logging.Level, Output: cmd.ErrOrStderr()})

			h, err := openHistory(settings, log)
			if err != nil {
				return err
			}
			defer h.Close()

			blobs, err := openBlobs(ctx, settings)
			if err != nil {
				return err
			}

			res, err := testrun.NewPruner(h.runs, h.steps, h.assets, blobs, log).Prune(ctx, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				return printJSON(out, res)
			}
			verb := "Deleted"
			if res.DryRun {
				verb = "Would delete"
			}
			printMessage(out, "%s %d runs, %d step results, %d artifacts (%d files) completed before %s",
				verb, res.Runs, res.Steps, res.Assets, res.Blobs, formatTime(&opts.Before))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete runs completed longer ago than this")
	cmd.Flags().StringVar(&status, "status", "", "Only delete runs with this final status (passed, failed, skipped)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be deleted without deleting it")
	return cmd
}
