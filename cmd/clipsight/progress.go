package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"clipsight/internal/batch"
	"clipsight/internal/report"
)

// progressRenderer aggregates the frame counters of concurrently processed
// videos into a single bar. Totals only become known per video once its
// frames are sampled, so the bar max grows as the run proceeds.
type progressRenderer struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	total     map[string]int
	completed map[string]int
	finished  int
	videos    int
}

func newProgressEvents(out io.Writer) batch.Events {
	renderer := &progressRenderer{
		total:     make(map[string]int),
		completed: make(map[string]int),
	}
	renderer.bar = progressbar.NewOptions(0,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(0),
	)
	return batch.Events{
		VideoStarted:  renderer.videoStarted,
		FrameProgress: renderer.frameProgress,
		VideoFinished: renderer.videoFinished,
	}
}

func (p *progressRenderer) videoStarted(videoID, source string, index, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videos = total
	p.bar.Describe(fmt.Sprintf("video %d/%d", index+1, total))
}

func (p *progressRenderer) frameProgress(videoID string, completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total[videoID] = total
	p.completed[videoID] = completed
	p.redraw()
}

func (p *progressRenderer) videoFinished(videoID string, result report.VideoReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished++
	if p.finished == p.videos {
		_ = p.bar.Finish()
		return
	}
	p.redraw()
}

func (p *progressRenderer) redraw() {
	totalFrames := 0
	completedFrames := 0
	for id, total := range p.total {
		totalFrames += total
		completedFrames += p.completed[id]
	}
	p.bar.ChangeMax(totalFrames)
	_ = p.bar.Set(completedFrames)
}
