package frames

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"clipsight/internal/logging"
	"clipsight/internal/media/ffprobe"
	"clipsight/internal/report"
	"clipsight/internal/services"
)

// Sample is one decoded frame taken from a video.
type Sample struct {
	// Timestamp is the seek position in seconds.
	Timestamp float64
	// Index is the 1-based position within the sampled sequence.
	Index int
	// Image holds the frame encoded as JPEG.
	Image []byte
}

// Options controls how timestamps are planned for one video.
type Options struct {
	// IntervalSeconds is the spacing between samples.
	IntervalSeconds float64
	// MaxDurationSeconds caps the analysis window; 0 means the full video.
	MaxDurationSeconds float64
	// MaxFrames caps the sample count. When the interval plan would exceed
	// it, MaxFrames samples are distributed evenly across the window instead.
	MaxFrames int
}

// Sampler extracts frames from local video files by shelling out to ffmpeg,
// seeking to each planned timestamp and decoding a single frame.
type Sampler struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *slog.Logger
}

// NewSampler constructs a sampler using the given binaries.
func NewSampler(ffmpegBin, ffprobeBin string, logger *slog.Logger) *Sampler {
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBin) == "" {
		ffprobeBin = "ffprobe"
	}
	return &Sampler{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		logger:     logging.NewComponentLogger(logger, "sampler"),
	}
}

// Probe inspects the video and returns its technical metadata. A file that
// cannot be opened, or that reports no video stream or zero duration, is
// reported as unreadable.
func (s *Sampler) Probe(ctx context.Context, path string) (report.VideoMetadata, error) {
	result, err := ffprobe.Inspect(ctx, s.ffprobeBin, path)
	if err != nil {
		return report.VideoMetadata{}, services.Wrap(services.ErrSourceUnreadable, "sampling", "probe", path, err)
	}
	if _, ok := result.VideoStream(); !ok {
		return report.VideoMetadata{}, services.Wrap(services.ErrSourceUnreadable, "sampling", "probe", fmt.Sprintf("%s: no video stream", path), nil)
	}
	duration := result.DurationSeconds()
	if duration <= 0 || result.TotalFrames() == 0 {
		return report.VideoMetadata{}, services.Wrap(services.ErrSourceUnreadable, "sampling", "probe", fmt.Sprintf("%s: zero frames", path), nil)
	}

	width, height := result.Dimensions()
	return report.VideoMetadata{
		FPS:             result.FrameRate(),
		TotalFrames:     result.TotalFrames(),
		DurationSeconds: duration,
		Width:           width,
		Height:          height,
		Resolution:      fmt.Sprintf("%dx%d", width, height),
	}, nil
}

// PlanTimestamps computes the sample positions for a video of the given
// duration. Timestamps are 0, Δ, 2Δ, … while t < min(duration, maxDuration),
// strictly increasing. When the interval plan exceeds maxFrames, exactly
// maxFrames timestamps are distributed evenly across the window instead.
// A window shorter than one interval still yields a single sample at t=0.
func PlanTimestamps(duration float64, opts Options) []float64 {
	if duration <= 0 || opts.IntervalSeconds <= 0 {
		return nil
	}
	window := duration
	if opts.MaxDurationSeconds > 0 && opts.MaxDurationSeconds < window {
		window = opts.MaxDurationSeconds
	}

	count := int(math.Ceil(window / opts.IntervalSeconds))
	if count < 1 {
		count = 1
	}
	if opts.MaxFrames > 0 && count > opts.MaxFrames {
		timestamps := make([]float64, 0, opts.MaxFrames)
		for i := 0; i < opts.MaxFrames; i++ {
			timestamps = append(timestamps, float64(i)*window/float64(opts.MaxFrames))
		}
		return timestamps
	}

	timestamps := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		timestamps = append(timestamps, float64(i)*opts.IntervalSeconds)
	}
	return timestamps
}

// Sample extracts one frame per planned timestamp, sequentially. Frames that
// fail to decode are skipped with a warning; an entirely empty result is
// reported as NoFramesExtracted so callers can continue with an empty
// description list rather than abort.
func (s *Sampler) Sample(ctx context.Context, path string, duration float64, opts Options) ([]Sample, error) {
	timestamps := PlanTimestamps(duration, opts)
	if len(timestamps) == 0 {
		return nil, services.Wrap(services.ErrNoFramesExtracted, "sampling", "plan", path, nil)
	}

	samples := make([]Sample, 0, len(timestamps))
	for _, timestamp := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		image, err := s.extractFrame(ctx, path, timestamp)
		if err != nil {
			s.logger.Warn("frame decode failed",
				logging.String("video", path),
				logging.Float64("timestamp", timestamp),
				logging.Error(err),
			)
			continue
		}
		samples = append(samples, Sample{
			Timestamp: timestamp,
			Index:     len(samples) + 1,
			Image:     image,
		})
	}

	if len(samples) == 0 {
		return nil, services.Wrap(services.ErrNoFramesExtracted, "sampling", "decode", path, nil)
	}
	return samples, nil
}

func (s *Sampler) extractFrame(ctx context.Context, path string, timestamp float64) ([]byte, error) {
	seek := strconv.FormatFloat(timestamp, 'f', 3, 64)
	cmd := exec.CommandContext(ctx, s.ffmpegBin,
		"-v", "error",
		"-ss", seek,
		"-i", path,
		"-frames:v", "1",
		"-c:v", "mjpeg",
		"-f", "image2",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg seek %s: %w: %s", seek, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg seek %s: no frame decoded", seek)
	}
	return stdout.Bytes(), nil
}
