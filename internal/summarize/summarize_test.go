package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"clipsight/internal/report"
	"clipsight/internal/services/vision"
)

type stubCompleter struct {
	calls   int
	prompt  string
	result  vision.Completion
	failErr error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (vision.Completion, error) {
	s.calls++
	s.prompt = prompt
	if s.failErr != nil {
		return vision.Completion{}, s.failErr
	}
	return s.result, nil
}

func sampleMeta() *report.VideoMetadata {
	return &report.VideoMetadata{
		FPS:             29.97,
		DurationSeconds: 20.0,
		Width:           1920,
		Height:          1080,
		Resolution:      "1920x1080",
	}
}

func TestVideoAggregatesSuccessfulFrames(t *testing.T) {
	stub := &stubCompleter{
		result: vision.Completion{Content: "A cooking tutorial.", TokensUsed: 150, Model: "demo-model"},
	}
	descriptions := []report.FrameDescription{
		{FrameNumber: 1, Timestamp: 0.0, Success: true, Description: "A kitchen counter."},
		{FrameNumber: 2, Timestamp: 1.0, Success: false, Error: "rate limited"},
		{FrameNumber: 3, Timestamp: 2.0, Success: true, Description: "Hands chopping onions."},
	}

	summary := Video(context.Background(), stub, sampleMeta(), descriptions)
	if !summary.Success {
		t.Fatalf("expected success, got %+v", summary)
	}
	if summary.Summary != "A cooking tutorial." {
		t.Fatalf("unexpected summary %q", summary.Summary)
	}
	if summary.FramesAnalyzed != 2 {
		t.Fatalf("expected 2 frames analyzed, got %d", summary.FramesAnalyzed)
	}
	if summary.TokensUsed != 150 || summary.Model != "demo-model" {
		t.Fatalf("expected usage recorded, got %+v", summary)
	}
	if stub.calls != 1 {
		t.Fatalf("expected one aggregation call, got %d", stub.calls)
	}
	if strings.Contains(stub.prompt, "rate limited") {
		t.Fatal("failed frames must not leak into the prompt")
	}
	if !strings.Contains(stub.prompt, "Frame 3 (2.0s): Hands chopping onions.") {
		t.Fatalf("expected labeled frame lines in prompt, got %s", stub.prompt)
	}
	if !strings.Contains(stub.prompt, "Total frames analyzed: 2") {
		t.Fatal("expected successful frame count in prompt")
	}
	if !strings.Contains(stub.prompt, "Resolution: 1920x1080") {
		t.Fatal("expected video metadata in prompt")
	}
}

func TestVideoNoSuccessfulFramesSkipsAPI(t *testing.T) {
	stub := &stubCompleter{}
	descriptions := []report.FrameDescription{
		{FrameNumber: 1, Success: false, Error: "timeout"},
		{FrameNumber: 2, Success: false, Error: "timeout"},
	}

	summary := Video(context.Background(), stub, sampleMeta(), descriptions)
	if summary.Success {
		t.Fatal("expected failed summary")
	}
	if summary.Error == "" {
		t.Fatal("expected failure reason")
	}
	if stub.calls != 0 {
		t.Fatalf("expected zero API calls, got %d", stub.calls)
	}
}

func TestVideoEmptyInputSkipsAPI(t *testing.T) {
	stub := &stubCompleter{}
	summary := Video(context.Background(), stub, sampleMeta(), nil)
	if summary.Success {
		t.Fatal("expected failed summary")
	}
	if stub.calls != 0 {
		t.Fatalf("expected zero API calls, got %d", stub.calls)
	}
}

func TestVideoAPIFailureCaptured(t *testing.T) {
	stub := &stubCompleter{failErr: errors.New("transient api failure: http 503")}
	descriptions := []report.FrameDescription{
		{FrameNumber: 1, Timestamp: 0, Success: true, Description: "A stage."},
	}

	summary := Video(context.Background(), stub, sampleMeta(), descriptions)
	if summary.Success {
		t.Fatal("expected failed summary")
	}
	if !strings.Contains(summary.Error, "503") {
		t.Fatalf("expected captured reason, got %q", summary.Error)
	}
	if summary.FramesAnalyzed != 1 {
		t.Fatalf("expected frames analyzed recorded, got %d", summary.FramesAnalyzed)
	}
}

func TestVideoNilMetadata(t *testing.T) {
	stub := &stubCompleter{result: vision.Completion{Content: "Summary."}}
	descriptions := []report.FrameDescription{
		{FrameNumber: 1, Success: true, Description: "A frame."},
	}
	summary := Video(context.Background(), stub, nil, descriptions)
	if !summary.Success {
		t.Fatalf("expected success with nil metadata, got %+v", summary)
	}
}
