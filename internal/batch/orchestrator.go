package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"clipsight/internal/config"
	"clipsight/internal/describe"
	"clipsight/internal/download"
	"clipsight/internal/logging"
	"clipsight/internal/media/frames"
	"clipsight/internal/report"
	"clipsight/internal/runstore"
	"clipsight/internal/services"
	"clipsight/internal/services/vision"
	"clipsight/internal/similarity"
	"clipsight/internal/summarize"
)

const lockFileName = ".clipsight.lock"

// VisionClient is the API surface the orchestrator needs from the vision
// client.
type VisionClient interface {
	Describe(ctx context.Context, image []byte, timestamp float64, frameNumber int) (report.FrameDescription, error)
	Complete(ctx context.Context, prompt string, maxTokens int) (vision.Completion, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (vision.Completion, error)
}

// Sampler probes local videos and extracts frames.
type Sampler interface {
	Probe(ctx context.Context, path string) (report.VideoMetadata, error)
	Sample(ctx context.Context, path string, duration float64, opts frames.Options) ([]frames.Sample, error)
}

// Downloader fetches remote videos.
type Downloader interface {
	Probe(ctx context.Context, url string) (download.Info, error)
	Download(ctx context.Context, url string, info download.Info, maxSeconds float64) (string, error)
	Cleanup() error
}

// History records run and per-video state transitions.
type History interface {
	BeginRun(ctx context.Context, runID string, videosRequested int) error
	UpsertVideo(ctx context.Context, record runstore.VideoRecord) error
	SetVideoStage(ctx context.Context, runID, videoID, stage string) error
	FinishRun(ctx context.Context, runID string, status runstore.RunStatus, totals runstore.RunRecord) error
}

// Events carries optional observer callbacks for interactive frontends.
// All callbacks may be invoked from multiple goroutines.
type Events struct {
	VideoStarted  func(videoID, source string, index, total int)
	FrameProgress func(videoID string, completed, total int)
	VideoFinished func(videoID string, result report.VideoReport)
}

// Orchestrator drives one batch run end to end: source resolution,
// per-video sampling/describing/summarizing, the similarity stage, and
// report persistence.
type Orchestrator struct {
	cfg        *config.Config
	logger     *slog.Logger
	client     VisionClient
	sampler    Sampler
	downloader Downloader
	history    History
	events     Events
}

// Option customizes the orchestrator, mostly for tests.
type Option func(*Orchestrator)

// WithSampler overrides the frame sampler.
func WithSampler(sampler Sampler) Option {
	return func(o *Orchestrator) {
		if sampler != nil {
			o.sampler = sampler
		}
	}
}

// WithDownloader overrides the remote video downloader.
func WithDownloader(downloader Downloader) Option {
	return func(o *Orchestrator) {
		if downloader != nil {
			o.downloader = downloader
		}
	}
}

// WithHistory attaches a run history store.
func WithHistory(history History) Option {
	return func(o *Orchestrator) {
		o.history = history
	}
}

// WithEvents attaches observer callbacks.
func WithEvents(events Events) Option {
	return func(o *Orchestrator) {
		o.events = events
	}
}

// New constructs an orchestrator with real external-tool wrappers unless
// options substitute them.
func New(cfg *config.Config, client VisionClient, logger *slog.Logger, opts ...Option) *Orchestrator {
	orch := &Orchestrator{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "batch"),
		client:     client,
		sampler:    frames.NewSampler(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger),
		downloader: download.NewDownloader(cfg.YtDlpBinary(), cfg.Paths.DownloadDir, logger),
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// Result is the outcome of one completed run.
type Result struct {
	Report *report.BatchReport
	Path   string
}

// source is one requested input after classification.
type source struct {
	raw        string
	remote     bool
	resolveErr string
}

// Run executes the batch for the given source identifiers. Only
// configuration problems abort the run; every per-video and per-frame
// failure is recorded in the report, and the run still completes when all
// videos fail.
func (o *Orchestrator) Run(ctx context.Context, rawSources []string) (*Result, error) {
	if err := o.cfg.RequireAPIKey(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", "", err)
	}
	sources := classifySources(rawSources)
	if len(sources) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", "no sources provided", nil)
	}
	if limit := o.cfg.Batch.MaxVideos; limit > 0 && len(sources) > limit {
		o.logger.Warn("truncating sources to batch limit",
			logging.Int("requested", len(sources)),
			logging.Int("limit", limit),
		)
		sources = sources[:limit]
	}
	if !anyResolvable(sources) {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", "no valid sources: each must be an existing file or a supported video URL", nil)
	}
	if err := o.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", "prepare directories", err)
	}

	reportPath := filepath.Join(o.cfg.Paths.OutputDir, report.FileName)
	if _, err := os.Stat(reportPath); err == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", fmt.Sprintf("report already exists at %s", reportPath), nil)
	}

	lock := flock.New(filepath.Join(o.cfg.Paths.OutputDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", "acquire output lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "", "run", "another run is writing to this output directory", nil)
	}
	defer func() { _ = lock.Unlock() }()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := o.logger.With(logging.String(logging.FieldRunID, runID))
	logger.Info("run started", logging.Int("videos", len(sources)))

	if o.history != nil {
		if err := o.history.BeginRun(ctx, runID, len(sources)); err != nil {
			logger.Warn("record run start failed", logging.Error(err))
		}
	}

	started := time.Now()
	videos := o.processAll(ctx, runID, logger, sources)

	batch := &report.BatchReport{
		Metadata: report.Metadata{
			RunID:       runID,
			GeneratedAt: time.Now().UTC(),
			Settings: report.RunSettings{
				IntervalSeconds:    o.cfg.Sampling.IntervalSeconds,
				MaxFrames:          o.cfg.Sampling.MaxFrames,
				MaxDurationSeconds: o.cfg.Sampling.MaxDurationSeconds,
				FrameConcurrency:   o.cfg.Batch.FrameConcurrency,
				VideoConcurrency:   o.cfg.Batch.VideoConcurrency,
				Model:              o.cfg.Vision.Model,
			},
		},
		Videos: videos,
	}

	if len(sources) > 1 {
		logger.Info("comparing videos")
		batch.Similarity = similarity.Analyze(ctx, o.client, videos, o.cfg.Batch.PairwiseComparisons)
		if !batch.Similarity.Success {
			logger.Warn("similarity analysis failed", logging.String("reason", batch.Similarity.Error))
		}
	}

	batch.Metadata.ProcessingSeconds = time.Since(started).Seconds()
	batch.ComputeTotals()

	path, err := report.Write(o.cfg.Paths.OutputDir, batch)
	if err != nil {
		o.finishHistory(ctx, runID, runstore.RunFailed, batch, "", err)
		return nil, fmt.Errorf("persist report: %w", err)
	}
	o.finishHistory(ctx, runID, runstore.RunCompleted, batch, path, nil)

	if !o.cfg.Batch.KeepDownloads {
		if err := o.downloader.Cleanup(); err != nil {
			logger.Warn("cleanup downloads failed", logging.Error(err))
		}
	}

	logger.Info("run finished",
		logging.String("report", path),
		logging.Int("videos_succeeded", batch.Summary.VideosSucceeded),
		logging.Int("videos_failed", batch.Summary.VideosFailed),
		logging.Int("tokens_used", batch.Summary.TokensUsed),
		logging.Duration("elapsed", time.Since(started)),
	)
	return &Result{Report: batch, Path: path}, nil
}

// processAll runs the per-video pipeline under the video concurrency bound.
// Results are position-partitioned so input order is preserved.
func (o *Orchestrator) processAll(ctx context.Context, runID string, logger *slog.Logger, sources []source) []report.VideoReport {
	results := make([]report.VideoReport, len(sources))
	limit := o.cfg.Batch.VideoConcurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, src := range sources {
		if ctx.Err() != nil {
			for j := i; j < len(sources); j++ {
				results[j] = report.VideoReport{
					VideoID: fallbackVideoID(sources[j].raw, j),
					Source:  sources[j].raw,
					Error:   ctx.Err().Error(),
				}
			}
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(position int, src source) {
			defer wg.Done()
			defer func() { <-sem }()
			results[position] = o.processVideo(ctx, runID, logger, src, position, len(sources))
		}(i, src)
	}

	wg.Wait()
	return results
}

func (o *Orchestrator) processVideo(ctx context.Context, runID string, logger *slog.Logger, src source, index, total int) report.VideoReport {
	started := time.Now()
	result := report.VideoReport{
		VideoID:       fallbackVideoID(src.raw, index),
		Source:        src.raw,
		FrameAnalyses: []report.FrameDescription{},
	}
	defer func() {
		result.ProcessingSeconds = time.Since(started).Seconds()
	}()

	if src.resolveErr != "" {
		result.Error = src.resolveErr
		o.recordVideo(ctx, runID, result, runstore.StageFailed)
		return result
	}
	o.recordVideo(ctx, runID, result, runstore.StageResolving)

	localPath := src.raw
	if src.remote {
		ctx = o.enterStage(ctx, runID, result.VideoID, runstore.StageDownloading)
		info, err := o.downloader.Probe(ctx, src.raw)
		if err != nil {
			return o.failVideo(ctx, runID, logger, result, err)
		}
		result.VideoID = info.ID
		result.Title = info.Title
		localPath, err = o.downloader.Download(ctx, src.raw, info, o.cfg.Sampling.MaxDurationSeconds)
		if err != nil {
			return o.failVideo(ctx, runID, logger, result, err)
		}
	} else {
		result.Title = strings.TrimSuffix(filepath.Base(src.raw), filepath.Ext(src.raw))
	}
	result.LocalPath = localPath

	ctx = services.WithVideoID(ctx, result.VideoID)
	videoLogger := logging.WithContext(ctx, o.logger)
	if o.events.VideoStarted != nil {
		o.events.VideoStarted(result.VideoID, src.raw, index, total)
	}

	ctx = o.enterStage(ctx, runID, result.VideoID, runstore.StageSampling)
	meta, err := o.sampler.Probe(ctx, localPath)
	if err != nil {
		return o.failVideo(ctx, runID, videoLogger, result, err)
	}
	result.Metadata = &meta

	samples, err := o.sampler.Sample(ctx, localPath, meta.DurationSeconds, frames.Options{
		IntervalSeconds:    o.cfg.Sampling.IntervalSeconds,
		MaxDurationSeconds: o.cfg.Sampling.MaxDurationSeconds,
		MaxFrames:          o.cfg.Sampling.MaxFrames,
	})
	if err != nil {
		return o.failVideo(ctx, runID, videoLogger, result, err)
	}
	videoLogger.Info("frames sampled", logging.Int("count", len(samples)))

	ctx = o.enterStage(ctx, runID, result.VideoID, runstore.StageDescribing)
	var progress describe.ProgressFunc
	if o.events.FrameProgress != nil {
		videoID := result.VideoID
		progress = func(completed, total int, _ report.FrameDescription) {
			o.events.FrameProgress(videoID, completed, total)
		}
	}
	result.FrameAnalyses = describe.All(ctx, o.client, samples, o.cfg.Batch.FrameConcurrency, progress)

	if result.SuccessfulFrames() == 0 {
		result.Error = "no frame produced a description"
		videoLogger.Warn("all frame descriptions failed")
	} else {
		result.Success = true
	}

	ctx = o.enterStage(ctx, runID, result.VideoID, runstore.StageSummarizing)
	result.VideoSummary = summarize.Video(ctx, o.client, result.Metadata, result.FrameAnalyses)

	stage := runstore.StageCompleted
	if !result.Success {
		stage = runstore.StageFailed
	}
	o.recordVideo(ctx, runID, result, stage)
	if o.events.VideoFinished != nil {
		o.events.VideoFinished(result.VideoID, result)
	}
	videoLogger.Info("video processed",
		logging.Bool("success", result.Success),
		logging.Int("frames_succeeded", result.SuccessfulFrames()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result
}

func (o *Orchestrator) failVideo(ctx context.Context, runID string, logger *slog.Logger, result report.VideoReport, err error) report.VideoReport {
	result.Error = err.Error()
	logger.Warn("video failed",
		logging.String("source", result.Source),
		logging.Error(err),
	)
	o.recordVideo(ctx, runID, result, runstore.StageFailed)
	if o.events.VideoFinished != nil {
		o.events.VideoFinished(result.VideoID, result)
	}
	return result
}

// enterStage annotates the context with the pipeline stage and records the
// transition on the video's history row.
func (o *Orchestrator) enterStage(ctx context.Context, runID, videoID, stage string) context.Context {
	ctx = services.WithStage(ctx, stage)
	if o.history != nil {
		if err := o.history.SetVideoStage(ctx, runID, videoID, stage); err != nil {
			o.logger.Warn("record stage transition failed", logging.Error(err))
		}
	}
	return ctx
}

func (o *Orchestrator) recordVideo(ctx context.Context, runID string, result report.VideoReport, stage string) {
	if o.history == nil {
		return
	}
	err := o.history.UpsertVideo(ctx, runstore.VideoRecord{
		RunID:             runID,
		VideoID:           result.VideoID,
		Source:            result.Source,
		Stage:             stage,
		Success:           result.Success,
		Error:             result.Error,
		FramesSucceeded:   result.SuccessfulFrames(),
		FramesFailed:      len(result.FrameAnalyses) - result.SuccessfulFrames(),
		ProcessingSeconds: result.ProcessingSeconds,
	})
	if err != nil {
		o.logger.Warn("record video state failed", logging.Error(err))
	}
}

func (o *Orchestrator) finishHistory(ctx context.Context, runID string, status runstore.RunStatus, batch *report.BatchReport, path string, runErr error) {
	if o.history == nil {
		return
	}
	totals := runstore.RunRecord{
		VideosSucceeded: batch.Summary.VideosSucceeded,
		VideosFailed:    batch.Summary.VideosFailed,
		FramesSucceeded: batch.Summary.FramesSucceeded,
		FramesFailed:    batch.Summary.FramesFailed,
		TokensUsed:      batch.Summary.TokensUsed,
		ReportPath:      path,
	}
	if runErr != nil {
		totals.Error = runErr.Error()
	}
	if err := o.history.FinishRun(ctx, runID, status, totals); err != nil {
		o.logger.Warn("record run finish failed", logging.Error(err))
	}
}

func classifySources(raw []string) []source {
	sources := make([]source, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		entry := source{raw: value}
		switch {
		case download.IsValidURL(value):
			entry.remote = true
		case fileExists(value):
		default:
			entry.resolveErr = fmt.Sprintf("%q is neither an existing file nor a supported video URL", value)
		}
		sources = append(sources, entry)
	}
	return sources
}

func anyResolvable(sources []source) bool {
	for _, src := range sources {
		if src.resolveErr == "" {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func fallbackVideoID(raw string, index int) string {
	if id := download.ExtractVideoID(raw); id != "" {
		return id
	}
	if fileExists(raw) {
		return strings.TrimSuffix(filepath.Base(raw), filepath.Ext(raw))
	}
	return fmt.Sprintf("video_%d", index+1)
}
