package describe

import (
	"context"
	"sync"
	"sync/atomic"

	"clipsight/internal/media/frames"
	"clipsight/internal/report"
)

// FrameDescriber is the single-frame description call. API failures come
// back as failed descriptions, not errors; only cancellation is an error.
type FrameDescriber interface {
	Describe(ctx context.Context, image []byte, timestamp float64, frameNumber int) (report.FrameDescription, error)
}

// ProgressFunc observes each completed frame. completed counts all finished
// frames so far regardless of outcome. Callbacks are serialized.
type ProgressFunc func(completed, total int, result report.FrameDescription)

// All describes every sample with at most limit concurrent calls and
// returns one description per sample in sample order. A limit below one is
// treated as one. Failures of individual frames never cancel in-flight or
// pending siblings. When ctx is canceled, pending frames are not dispatched
// and come back as failed descriptions while in-flight calls finish.
func All(ctx context.Context, describer FrameDescriber, samples []frames.Sample, limit int, progress ProgressFunc) []report.FrameDescription {
	results := make([]report.FrameDescription, len(samples))
	if len(samples) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	var (
		completed  atomic.Int64
		progressMu sync.Mutex
		wg         sync.WaitGroup
	)
	sem := make(chan struct{}, limit)

	record := func(result report.FrameDescription) {
		done := int(completed.Add(1))
		if progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		progress(done, len(samples), result)
	}

	for i, sample := range samples {
		if ctx.Err() != nil {
			// Stop dispatching; remaining frames are recorded as failed.
			for j := i; j < len(samples); j++ {
				results[j] = canceledDescription(samples[j], ctx.Err())
				record(results[j])
			}
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(position int, sample frames.Sample) {
			defer wg.Done()
			defer func() { <-sem }()
			desc, err := describer.Describe(ctx, sample.Image, sample.Timestamp, sample.Index)
			if err != nil {
				desc = canceledDescription(sample, err)
			}
			results[position] = desc
			record(desc)
		}(i, sample)
	}

	wg.Wait()
	return results
}

func canceledDescription(sample frames.Sample, err error) report.FrameDescription {
	return report.FrameDescription{
		Timestamp:   sample.Timestamp,
		FrameNumber: sample.Index,
		Error:       err.Error(),
		Description: "Error analyzing frame: " + err.Error(),
	}
}
