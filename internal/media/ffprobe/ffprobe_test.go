package ffprobe

import "testing"

func TestResultAccessors(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, CodecType: "audio"},
			{Index: 1, CodecType: "video", Width: 1920, Height: 1080, AvgFrameRate: "30000/1001", NBFrames: "600"},
		},
		Format: Format{Duration: "20.02"},
	}

	if got := result.DurationSeconds(); got != 20.02 {
		t.Fatalf("expected duration 20.02, got %v", got)
	}
	rate := result.FrameRate()
	if rate < 29.9 || rate > 30.0 {
		t.Fatalf("expected NTSC frame rate, got %v", rate)
	}
	width, height := result.Dimensions()
	if width != 1920 || height != 1080 {
		t.Fatalf("unexpected dimensions %dx%d", width, height)
	}
	if got := result.TotalFrames(); got != 600 {
		t.Fatalf("expected 600 frames, got %d", got)
	}
}

func TestFrameRateFallsBackToRFrameRate(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "25/1"}}}
	if got := result.FrameRate(); got != 25 {
		t.Fatalf("expected 25, got %v", got)
	}
}

func TestTotalFramesEstimated(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "24/1"}},
		Format:  Format{Duration: "10"},
	}
	if got := result.TotalFrames(); got != 240 {
		t.Fatalf("expected 240 estimated frames, got %d", got)
	}
}

func TestZeroValuesForMissingStream(t *testing.T) {
	var result Result
	if result.FrameRate() != 0 || result.TotalFrames() != 0 {
		t.Fatal("expected zero metadata without a video stream")
	}
	if w, h := result.Dimensions(); w != 0 || h != 0 {
		t.Fatal("expected zero dimensions without a video stream")
	}
}
