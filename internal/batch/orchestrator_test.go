package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"clipsight/internal/config"
	"clipsight/internal/download"
	"clipsight/internal/logging"
	"clipsight/internal/media/frames"
	"clipsight/internal/report"
	"clipsight/internal/runstore"
	"clipsight/internal/services"
	"clipsight/internal/services/vision"
	"clipsight/internal/testsupport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t)
}

func writeVideoFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	testsupport.WriteVideoFile(t, path)
	return path
}

type stubVision struct {
	mu            sync.Mutex
	describeCalls int
	failFrames    bool
}

func (s *stubVision) Describe(ctx context.Context, image []byte, timestamp float64, frameNumber int) (report.FrameDescription, error) {
	s.mu.Lock()
	s.describeCalls++
	s.mu.Unlock()
	if s.failFrames {
		return report.FrameDescription{
			Timestamp:   timestamp,
			FrameNumber: frameNumber,
			Error:       "simulated api failure",
		}, nil
	}
	return report.FrameDescription{
		Timestamp:   timestamp,
		FrameNumber: frameNumber,
		Success:     true,
		Description: "a frame",
		TokensUsed:  5,
	}, nil
}

func (s *stubVision) Complete(ctx context.Context, prompt string, maxTokens int) (vision.Completion, error) {
	return vision.Completion{Content: "A summary.", TokensUsed: 20, Model: "demo"}, nil
}

func (s *stubVision) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (vision.Completion, error) {
	return vision.Completion{
		Content:    `{"overall_score":6,"common_themes":"demo","categories":{},"key_differences":"none"}`,
		TokensUsed: 30,
		Model:      "demo",
	}, nil
}

type stubSampler struct {
	failProbe  bool
	frameCount int
}

func (s *stubSampler) Probe(ctx context.Context, path string) (report.VideoMetadata, error) {
	if s.failProbe {
		return report.VideoMetadata{}, services.Wrap(services.ErrSourceUnreadable, "sampling", "probe", path, nil)
	}
	return report.VideoMetadata{
		FPS:             30,
		TotalFrames:     600,
		DurationSeconds: 20,
		Width:           1280,
		Height:          720,
		Resolution:      "1280x720",
	}, nil
}

func (s *stubSampler) Sample(ctx context.Context, path string, duration float64, opts frames.Options) ([]frames.Sample, error) {
	count := s.frameCount
	if count == 0 {
		count = 4
	}
	samples := make([]frames.Sample, count)
	for i := range samples {
		samples[i] = frames.Sample{Timestamp: float64(i), Index: i + 1, Image: []byte{0xff, 0xd8}}
	}
	return samples, nil
}

type stubDownloader struct {
	mu       sync.Mutex
	files    map[string]string
	cleaned  bool
	failWith error
}

func (s *stubDownloader) Probe(ctx context.Context, url string) (download.Info, error) {
	if s.failWith != nil {
		return download.Info{}, s.failWith
	}
	id := download.ExtractVideoID(url)
	return download.Info{ID: id, Title: "Remote " + id, Duration: 30}, nil
}

func (s *stubDownloader) Download(ctx context.Context, url string, info download.Info, maxSeconds float64) (string, error) {
	if s.failWith != nil {
		return "", s.failWith
	}
	return s.files[info.ID], nil
}

func (s *stubDownloader) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleaned = true
	return nil
}

func newTestOrchestrator(cfg *config.Config, client VisionClient, opts ...Option) *Orchestrator {
	opts = append([]Option{WithSampler(&stubSampler{})}, opts...)
	return New(cfg, client, logging.NewNop(), opts...)
}

func TestRunProcessesLocalFiles(t *testing.T) {
	cfg := testConfig(t)
	client := &stubVision{}
	first := writeVideoFile(t, "first.mp4")
	second := writeVideoFile(t, "second.mp4")

	orch := newTestOrchestrator(cfg, client, WithDownloader(&stubDownloader{}))
	result, err := orch.Run(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	batch := result.Report
	if len(batch.Videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(batch.Videos))
	}
	if batch.Videos[0].Source != first || batch.Videos[1].Source != second {
		t.Fatal("expected input order preserved")
	}
	for _, video := range batch.Videos {
		if !video.Success {
			t.Fatalf("expected success, got %+v", video)
		}
		if len(video.FrameAnalyses) != 4 {
			t.Fatalf("expected 4 frame analyses, got %d", len(video.FrameAnalyses))
		}
		if video.VideoSummary == nil || !video.VideoSummary.Success {
			t.Fatalf("expected summary, got %+v", video.VideoSummary)
		}
		if video.Metadata == nil || video.Metadata.Resolution != "1280x720" {
			t.Fatalf("expected probe metadata, got %+v", video.Metadata)
		}
	}
	if batch.Similarity == nil || !batch.Similarity.Success {
		t.Fatalf("expected similarity analysis, got %+v", batch.Similarity)
	}
	if batch.Summary.VideosSucceeded != 2 || batch.Summary.VideosFailed != 0 {
		t.Fatalf("unexpected totals %+v", batch.Summary)
	}
	if batch.Metadata.RunID == "" {
		t.Fatal("expected run id assigned")
	}

	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("expected persisted report: %v", err)
	}
	reread, err := report.Read(result.Path)
	if err != nil {
		t.Fatalf("read report back: %v", err)
	}
	if len(reread.Videos) != 2 {
		t.Fatalf("expected round-tripped report, got %d videos", len(reread.Videos))
	}
}

func TestRunSingleVideoSkipsSimilarity(t *testing.T) {
	cfg := testConfig(t)
	path := writeVideoFile(t, "only.mp4")

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(&stubDownloader{}))
	result, err := orch.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Similarity != nil {
		t.Fatal("expected no similarity stage for a single video")
	}
}

func TestRunReachesDoneWhenEveryVideoFails(t *testing.T) {
	cfg := testConfig(t)
	first := writeVideoFile(t, "first.mp4")
	second := writeVideoFile(t, "second.mp4")

	orch := New(cfg, &stubVision{}, logging.NewNop(),
		WithSampler(&stubSampler{failProbe: true}),
		WithDownloader(&stubDownloader{}),
	)
	result, err := orch.Run(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("run must complete even when all videos fail, got %v", err)
	}

	batch := result.Report
	if batch.Summary.VideosFailed != 2 || batch.Summary.VideosSucceeded != 0 {
		t.Fatalf("unexpected totals %+v", batch.Summary)
	}
	for _, video := range batch.Videos {
		if video.Success || video.Error == "" {
			t.Fatalf("expected failed video with reason, got %+v", video)
		}
	}
	if batch.Similarity == nil || batch.Similarity.Success {
		t.Fatal("expected failed similarity with no eligible videos")
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("expected report persisted: %v", err)
	}
}

func TestRunRemoteSourceDownloads(t *testing.T) {
	cfg := testConfig(t)
	local := writeVideoFile(t, "abc123xyz00.mp4")
	downloader := &stubDownloader{files: map[string]string{"abc123xyz00": local}}

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(downloader))
	result, err := orch.Run(context.Background(), []string{
		"https://www.youtube.com/watch?v=abc123xyz00",
		local,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	video := result.Report.Videos[0]
	if video.VideoID != "abc123xyz00" {
		t.Fatalf("expected provider video id, got %q", video.VideoID)
	}
	if video.Title != "Remote abc123xyz00" {
		t.Fatalf("expected probed title, got %q", video.Title)
	}
	if !video.Success {
		t.Fatalf("expected downloaded video processed, got %+v", video)
	}
	if !downloader.cleaned {
		t.Fatal("expected download cleanup after run")
	}
}

func TestRunKeepDownloadsSkipsCleanup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batch.KeepDownloads = true
	local := writeVideoFile(t, "abc123xyz00.mp4")
	downloader := &stubDownloader{files: map[string]string{"abc123xyz00": local}}

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(downloader))
	if _, err := orch.Run(context.Background(), []string{"https://youtu.be/abc123xyz00"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if downloader.cleaned {
		t.Fatal("expected downloads kept")
	}
}

func TestRunDownloadFailureIsSoft(t *testing.T) {
	cfg := testConfig(t)
	local := writeVideoFile(t, "local.mp4")
	downloader := &stubDownloader{
		failWith: services.Wrap(services.ErrDownloadFailed, "downloading", "fetch", "unavailable", nil),
	}

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(downloader))
	result, err := orch.Run(context.Background(), []string{
		"https://youtu.be/abc123xyz00",
		local,
	})
	if err != nil {
		t.Fatalf("download failure must not abort the run: %v", err)
	}

	batch := result.Report
	if batch.Videos[0].Success {
		t.Fatal("expected remote video failed")
	}
	if !strings.Contains(batch.Videos[0].Error, "download failed") {
		t.Fatalf("expected download reason, got %q", batch.Videos[0].Error)
	}
	if !batch.Videos[1].Success {
		t.Fatal("expected local video unaffected")
	}
}

func TestRunRequiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vision.APIKey = ""
	path := writeVideoFile(t, "a.mp4")

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(&stubDownloader{}))
	_, err := orch.Run(context.Background(), []string{path})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunRequiresValidSources(t *testing.T) {
	cfg := testConfig(t)
	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(&stubDownloader{}))

	_, err := orch.Run(context.Background(), []string{"/does/not/exist.mp4", "https://vimeo.com/123"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	_, err = orch.Run(context.Background(), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty input, got %v", err)
	}
}

func TestRunUnresolvableSourceAmongValidOnes(t *testing.T) {
	cfg := testConfig(t)
	local := writeVideoFile(t, "good.mp4")

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(&stubDownloader{}))
	result, err := orch.Run(context.Background(), []string{"/missing/file.mp4", local})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Videos[0].Success {
		t.Fatal("expected unresolvable source recorded as failed")
	}
	if !result.Report.Videos[1].Success {
		t.Fatal("expected valid source processed")
	}
}

func TestRunRefusesExistingReport(t *testing.T) {
	cfg := testConfig(t)
	path := writeVideoFile(t, "a.mp4")
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	existing := filepath.Join(cfg.Paths.OutputDir, report.FileName)
	if err := os.WriteFile(existing, []byte("{}"), 0o644); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(&stubDownloader{}))
	_, err := orch.Run(context.Background(), []string{path})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
}

func TestRunTruncatesToMaxVideos(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batch.MaxVideos = 2
	paths := []string{
		writeVideoFile(t, "a.mp4"),
		writeVideoFile(t, "b.mp4"),
		writeVideoFile(t, "c.mp4"),
	}

	orch := newTestOrchestrator(cfg, &stubVision{}, WithDownloader(&stubDownloader{}))
	result, err := orch.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Report.Videos) != 2 {
		t.Fatalf("expected truncation to 2 videos, got %d", len(result.Report.Videos))
	}
}

func TestRunAllFramesFailedVideoFails(t *testing.T) {
	cfg := testConfig(t)
	path := writeVideoFile(t, "a.mp4")

	orch := newTestOrchestrator(cfg, &stubVision{failFrames: true}, WithDownloader(&stubDownloader{}))
	result, err := orch.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	video := result.Report.Videos[0]
	if video.Success {
		t.Fatal("expected video failed when no frame produced a description")
	}
	if video.VideoSummary == nil || video.VideoSummary.Success {
		t.Fatal("expected failed summary without successful frames")
	}
	if result.Report.Summary.FramesFailed != 4 {
		t.Fatalf("expected 4 failed frames in totals, got %d", result.Report.Summary.FramesFailed)
	}
}

func TestRunEmitsFrameProgress(t *testing.T) {
	cfg := testConfig(t)
	path := writeVideoFile(t, "a.mp4")

	var mu sync.Mutex
	var observed int
	orch := newTestOrchestrator(cfg, &stubVision{},
		WithDownloader(&stubDownloader{}),
		WithEvents(Events{
			FrameProgress: func(videoID string, completed, total int) {
				mu.Lock()
				defer mu.Unlock()
				observed = completed
				if total != 4 {
					t.Errorf("expected total 4, got %d", total)
				}
			},
		}),
	)
	if _, err := orch.Run(context.Background(), []string{path}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if observed != 4 {
		t.Fatalf("expected final progress 4, got %d", observed)
	}
}

type recordingHistory struct {
	mu     sync.Mutex
	stages []string
}

func (h *recordingHistory) BeginRun(ctx context.Context, runID string, videosRequested int) error {
	return nil
}

func (h *recordingHistory) UpsertVideo(ctx context.Context, record runstore.VideoRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, record.Stage)
	return nil
}

func (h *recordingHistory) SetVideoStage(ctx context.Context, runID, videoID, stage string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, stage)
	return nil
}

func (h *recordingHistory) FinishRun(ctx context.Context, runID string, status runstore.RunStatus, totals runstore.RunRecord) error {
	return nil
}

func TestRunTracksStageTransitions(t *testing.T) {
	cfg := testConfig(t)
	path := writeVideoFile(t, "staged.mp4")
	history := &recordingHistory{}

	orch := newTestOrchestrator(cfg, &stubVision{},
		WithDownloader(&stubDownloader{}),
		WithHistory(history),
	)
	if _, err := orch.Run(context.Background(), []string{path}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		runstore.StageResolving,
		runstore.StageSampling,
		runstore.StageDescribing,
		runstore.StageSummarizing,
		runstore.StageCompleted,
	}
	history.mu.Lock()
	got := append([]string(nil), history.stages...)
	history.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, got)
	}
	for i, stage := range want {
		if got[i] != stage {
			t.Fatalf("expected stages %v, got %v", want, got)
		}
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store := testsupport.MustOpenStore(t, cfg.HistoryPath())
	path := writeVideoFile(t, "tracked.mp4")

	orch := newTestOrchestrator(cfg, &stubVision{},
		WithDownloader(&stubDownloader{}),
		WithHistory(store),
	)
	result, err := orch.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := store.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != result.Report.Metadata.RunID {
		t.Fatalf("expected run id %s, got %s", result.Report.Metadata.RunID, run.ID)
	}
	if run.Status != runstore.RunCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if run.VideosSucceeded != 1 || run.ReportPath != result.Path {
		t.Fatalf("unexpected run totals %+v", run)
	}

	videos, err := store.ListRunVideos(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListRunVideos: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected 1 recorded video, got %d", len(videos))
	}
	if videos[0].Stage != runstore.StageCompleted || !videos[0].Success {
		t.Fatalf("unexpected video record %+v", videos[0])
	}
}
