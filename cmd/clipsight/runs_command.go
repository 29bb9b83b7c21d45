package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipsight/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run history",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))

	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			headers := []string{"RUN", "STARTED", "STATUS", "VIDEOS", "FRAMES", "TOKENS"}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					string(run.Status),
					fmt.Sprintf("%d/%d", run.VideosSucceeded, run.VideosRequested),
					fmt.Sprintf("%d/%d", run.FramesSucceeded, run.FramesSucceeded+run.FramesFailed),
					strconv.Itoa(run.TokensUsed),
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}, shouldColorize(os.Stdout)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-video detail of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load run: %w", err)
			}
			videos, err := store.ListRunVideos(cmd.Context(), run.ID)
			if err != nil {
				return fmt.Errorf("load run videos: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
			fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "Finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
			}
			if run.ReportPath != "" {
				fmt.Fprintf(out, "Report:   %s\n", run.ReportPath)
			}
			if run.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", run.Error)
			}

			if len(videos) == 0 {
				fmt.Fprintln(out, "No videos recorded")
				return nil
			}
			headers := []string{"VIDEO", "SOURCE", "STAGE", "FRAMES", "STATUS"}
			rows := make([][]string, 0, len(videos))
			for _, video := range videos {
				status := "ok"
				if !video.Success {
					status = "failed"
					if video.Error != "" {
						status = "failed: " + truncateCell(video.Error, 48)
					}
				}
				rows = append(rows, []string{
					video.VideoID,
					truncateCell(video.Source, 40),
					video.Stage,
					fmt.Sprintf("%d/%d", video.FramesSucceeded, video.FramesSucceeded+video.FramesFailed),
					status,
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}, shouldColorize(os.Stdout)))
			return nil
		},
	}
}

func openHistory(ctx *commandContext) (*runstore.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("run history is disabled in the configuration")
	}
	store, err := runstore.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return store, nil
}
