package describe

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipsight/internal/media/frames"
	"clipsight/internal/report"
)

type stubDescriber struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	delay    func(frameNumber int) time.Duration
	fail     func(frameNumber int) bool
}

func (s *stubDescriber) Describe(ctx context.Context, image []byte, timestamp float64, frameNumber int) (report.FrameDescription, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	if s.delay != nil {
		time.Sleep(s.delay(frameNumber))
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if s.fail != nil && s.fail(frameNumber) {
		return report.FrameDescription{
			Timestamp:   timestamp,
			FrameNumber: frameNumber,
			Error:       "simulated failure",
		}, nil
	}
	return report.FrameDescription{
		Timestamp:   timestamp,
		FrameNumber: frameNumber,
		Success:     true,
		Description: fmt.Sprintf("frame %d", frameNumber),
		TokensUsed:  10,
	}, nil
}

func makeSamples(n int) []frames.Sample {
	samples := make([]frames.Sample, n)
	for i := range samples {
		samples[i] = frames.Sample{
			Timestamp: float64(i),
			Index:     i + 1,
			Image:     []byte{0xff, 0xd8},
		}
	}
	return samples
}

func TestAllPreservesOrderUnderJitter(t *testing.T) {
	samples := makeSamples(12)
	stub := &stubDescriber{
		delay: func(int) time.Duration {
			return time.Duration(rand.Intn(5)) * time.Millisecond
		},
	}

	results := All(context.Background(), stub, samples, 4, nil)
	if len(results) != len(samples) {
		t.Fatalf("expected %d results, got %d", len(samples), len(results))
	}
	for i, result := range results {
		if result.FrameNumber != i+1 {
			t.Fatalf("result %d carries frame number %d", i, result.FrameNumber)
		}
		if result.Timestamp != float64(i) {
			t.Fatalf("result %d carries timestamp %v", i, result.Timestamp)
		}
	}
}

func TestAllRespectsConcurrencyBound(t *testing.T) {
	samples := makeSamples(10)
	stub := &stubDescriber{
		delay: func(int) time.Duration { return 5 * time.Millisecond },
	}

	All(context.Background(), stub, samples, 3, nil)
	if stub.peak > 3 {
		t.Fatalf("observed %d concurrent calls with limit 3", stub.peak)
	}
	if stub.peak < 2 {
		t.Fatalf("expected parallel dispatch, peak was %d", stub.peak)
	}
}

func TestAllSequentialWithLimitOne(t *testing.T) {
	samples := makeSamples(5)
	stub := &stubDescriber{
		delay: func(int) time.Duration { return time.Millisecond },
	}

	All(context.Background(), stub, samples, 1, nil)
	if stub.peak != 1 {
		t.Fatalf("expected sequential calls, peak was %d", stub.peak)
	}
}

func TestAllFailuresDoNotCancelSiblings(t *testing.T) {
	samples := makeSamples(8)
	stub := &stubDescriber{
		fail: func(frameNumber int) bool { return frameNumber%2 == 0 },
	}

	results := All(context.Background(), stub, samples, 4, nil)
	succeeded, failed := 0, 0
	for _, result := range results {
		if result.Success {
			succeeded++
		} else {
			failed++
		}
	}
	if succeeded != 4 || failed != 4 {
		t.Fatalf("expected 4/4 split, got %d succeeded %d failed", succeeded, failed)
	}
}

func TestAllProgressCountsEveryFrame(t *testing.T) {
	samples := makeSamples(6)
	stub := &stubDescriber{
		fail: func(frameNumber int) bool { return frameNumber == 2 },
	}

	var calls int32
	var lastCompleted int32
	All(context.Background(), stub, samples, 2, func(completed, total int, result report.FrameDescription) {
		atomic.AddInt32(&calls, 1)
		atomic.StoreInt32(&lastCompleted, int32(completed))
		if total != 6 {
			t.Errorf("expected total 6, got %d", total)
		}
	})
	if calls != 6 {
		t.Fatalf("expected 6 progress calls, got %d", calls)
	}
	if lastCompleted != 6 {
		t.Fatalf("expected final completed count 6, got %d", lastCompleted)
	}
}

func TestAllCancellationStopsDispatch(t *testing.T) {
	samples := makeSamples(20)
	ctx, cancel := context.WithCancel(context.Background())

	var started int32
	stub := &stubDescriber{
		delay: func(int) time.Duration {
			if atomic.AddInt32(&started, 1) == 1 {
				cancel()
			}
			return 2 * time.Millisecond
		},
	}

	results := All(ctx, stub, samples, 2, nil)
	if len(results) != len(samples) {
		t.Fatalf("expected one result per sample, got %d", len(results))
	}
	var failed int
	for _, result := range results {
		if !result.Success {
			failed++
			if result.Error == "" {
				t.Fatal("undescribed frames must carry a reason")
			}
		}
	}
	if failed == 0 {
		t.Fatal("expected pending frames to be recorded as failed after cancel")
	}
	if int(atomic.LoadInt32(&started)) == len(samples) {
		t.Fatal("expected cancellation to stop dispatching new frames")
	}
}

func TestAllEmptyInput(t *testing.T) {
	results := All(context.Background(), &stubDescriber{}, nil, 4, nil)
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}
