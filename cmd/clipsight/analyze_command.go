package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"clipsight/internal/batch"
	"clipsight/internal/logging"
	"clipsight/internal/report"
	"clipsight/internal/runstore"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		interval         float64
		maxDuration      float64
		maxFrames        int
		frameConcurrency int
		videoConcurrency int
		maxVideos        int
		outputDir        string
		downloadDir      string
		keepDownloads    bool
		pairwise         bool
		noProgress       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file-or-url> [file-or-url...]",
		Short: "Analyze one or more videos and write a consolidated report",
		Long: `Analyze samples frames from each video, describes them through the
configured vision model, summarizes each video, compares the videos against
each other, and writes a single JSON report to the output directory.

Sources may be local video files or supported video URLs in any mix.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("interval") {
				cfg.Sampling.IntervalSeconds = interval
			}
			if flags.Changed("max-duration") {
				cfg.Sampling.MaxDurationSeconds = maxDuration
			}
			if flags.Changed("max-frames") {
				cfg.Sampling.MaxFrames = maxFrames
			}
			if flags.Changed("frame-concurrency") {
				cfg.Batch.FrameConcurrency = frameConcurrency
			}
			if flags.Changed("video-concurrency") {
				cfg.Batch.VideoConcurrency = videoConcurrency
			}
			if flags.Changed("max-videos") {
				cfg.Batch.MaxVideos = maxVideos
			}
			if flags.Changed("output-dir") {
				cfg.Paths.OutputDir = outputDir
			}
			if flags.Changed("download-dir") {
				cfg.Paths.DownloadDir = downloadDir
			}
			if flags.Changed("keep-downloads") {
				cfg.Batch.KeepDownloads = keepDownloads
			}
			if flags.Changed("pairwise") {
				cfg.Batch.PairwiseComparisons = pairwise
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			client, err := ctx.newVisionClient()
			if err != nil {
				return err
			}

			opts := []batch.Option{}
			if cfg.History.Enabled {
				store, err := runstore.Open(cfg.HistoryPath())
				if err != nil {
					logger.Warn("run history unavailable", logging.Error(err))
				} else {
					defer store.Close()
					opts = append(opts, batch.WithHistory(store))
				}
			}
			if !noProgress && shouldColorize(os.Stderr) {
				opts = append(opts, batch.WithEvents(newProgressEvents(os.Stderr)))
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch := batch.New(cfg, client, logger, opts...)
			result, err := orch.Run(runCtx, args)
			if err != nil {
				return err
			}

			printRunSummary(cmd, result)
			return nil
		},
	}

	cmd.Flags().Float64Var(&interval, "interval", 1.0, "Seconds between sampled frames")
	cmd.Flags().Float64Var(&maxDuration, "max-duration", 20.0, "Seconds of each video to analyze")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 20, "Maximum frames per video")
	cmd.Flags().IntVar(&frameConcurrency, "frame-concurrency", 5, "Concurrent description calls within one video")
	cmd.Flags().IntVar(&videoConcurrency, "video-concurrency", 2, "Concurrently processed videos")
	cmd.Flags().IntVar(&maxVideos, "max-videos", 10, "Maximum videos per run")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the report")
	cmd.Flags().StringVar(&downloadDir, "download-dir", "", "Directory for downloaded videos")
	cmd.Flags().BoolVar(&keepDownloads, "keep-downloads", false, "Keep downloaded videos after the run")
	cmd.Flags().BoolVar(&pairwise, "pairwise", false, "Also compare every pair of videos")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func printRunSummary(cmd *cobra.Command, result *batch.Result) {
	out := cmd.OutOrStdout()
	batchReport := result.Report

	headers := []string{"VIDEO", "TITLE", "FRAMES", "TOKENS", "STATUS"}
	rows := make([][]string, 0, len(batchReport.Videos))
	for _, video := range batchReport.Videos {
		status := "ok"
		if !video.Success {
			status = "failed: " + truncateCell(video.Error, 48)
		}
		rows = append(rows, []string{
			video.VideoID,
			truncateCell(video.Title, 40),
			fmt.Sprintf("%d/%d", video.SuccessfulFrames(), len(video.FrameAnalyses)),
			strconv.Itoa(video.TokensUsed()),
			status,
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}, shouldColorize(os.Stdout)))

	printSimilaritySummary(cmd, batchReport.Similarity)

	summary := batchReport.Summary
	fmt.Fprintf(out, "\n%d/%d videos analyzed, %d frames described (%d failed), %d tokens used in %.1fs\n",
		summary.VideosSucceeded,
		summary.VideosRequested,
		summary.FramesSucceeded,
		summary.FramesFailed,
		summary.TokensUsed,
		batchReport.Metadata.ProcessingSeconds,
	)
	fmt.Fprintf(out, "Report: %s\n", result.Path)
}

func printSimilaritySummary(cmd *cobra.Command, similarity *report.SimilarityReport) {
	if similarity == nil {
		return
	}
	out := cmd.OutOrStdout()
	if !similarity.Success {
		fmt.Fprintf(out, "Similarity analysis failed: %s\n", similarity.Error)
		return
	}
	fmt.Fprintf(out, "Similarity: %.0f/10", similarity.OverallScore)
	if similarity.ScoreExplanation != "" {
		fmt.Fprintf(out, " (%s)", truncateCell(similarity.ScoreExplanation, 100))
	}
	fmt.Fprintln(out)
	for _, pair := range similarity.Pairwise {
		if pair.Error != "" {
			fmt.Fprintf(out, "  %s vs %s: failed (%s)\n", pair.VideoA, pair.VideoB, truncateCell(pair.Error, 60))
			continue
		}
		fmt.Fprintf(out, "  %s vs %s: %.0f/10\n", pair.VideoA, pair.VideoB, pair.Score)
	}
}

func truncateCell(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
