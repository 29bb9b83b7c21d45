package report

import "time"

// VideoMetadata captures the technical properties of a decoded video.
type VideoMetadata struct {
	FPS             float64 `json:"fps"`
	TotalFrames     int     `json:"total_frames"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Resolution      string  `json:"resolution"`
}

// FrameDescription is the outcome of describing one sampled frame. Exactly
// one is produced per FrameSample, in sample index order.
type FrameDescription struct {
	Timestamp   float64 `json:"timestamp"`
	FrameNumber int     `json:"frame_number"`
	Success     bool    `json:"success"`
	Description string  `json:"description,omitempty"`
	Error       string  `json:"error,omitempty"`
	TokensUsed  int     `json:"tokens_used,omitempty"`
	Model       string  `json:"model,omitempty"`
}

// VideoSummary is the narrative summary generated from one video's
// successful frame descriptions.
type VideoSummary struct {
	Success        bool   `json:"success"`
	Summary        string `json:"summary,omitempty"`
	Error          string `json:"error,omitempty"`
	TokensUsed     int    `json:"tokens_used,omitempty"`
	FramesAnalyzed int    `json:"frames_analyzed"`
	Model          string `json:"model,omitempty"`
}

// VideoReport aggregates everything produced for one video in a batch.
type VideoReport struct {
	VideoID           string             `json:"video_id"`
	Source            string             `json:"source"`
	Title             string             `json:"title,omitempty"`
	LocalPath         string             `json:"video_file,omitempty"`
	Metadata          *VideoMetadata     `json:"video_info,omitempty"`
	Success           bool               `json:"success"`
	Error             string             `json:"error,omitempty"`
	FrameAnalyses     []FrameDescription `json:"frame_analyses"`
	VideoSummary      *VideoSummary      `json:"video_summary,omitempty"`
	ProcessingSeconds float64            `json:"processing_time_seconds"`
}

// SuccessfulFrames counts descriptions with Success=true.
func (v VideoReport) SuccessfulFrames() int {
	count := 0
	for _, frame := range v.FrameAnalyses {
		if frame.Success {
			count++
		}
	}
	return count
}

// TokensUsed sums the token usage across frame analyses and the summary.
func (v VideoReport) TokensUsed() int {
	total := 0
	for _, frame := range v.FrameAnalyses {
		total += frame.TokensUsed
	}
	if v.VideoSummary != nil {
		total += v.VideoSummary.TokensUsed
	}
	return total
}

// PairwiseComparison is one pair-level similarity result.
type PairwiseComparison struct {
	VideoA     string  `json:"video_a"`
	VideoB     string  `json:"video_b"`
	Score      float64 `json:"score,omitempty"`
	Analysis   string  `json:"analysis,omitempty"`
	Error      string  `json:"error,omitempty"`
	TokensUsed int     `json:"tokens_used,omitempty"`
}

// SimilarityReport is the cross-video comparison produced once per batch.
type SimilarityReport struct {
	Success          bool                 `json:"success"`
	Error            string               `json:"error,omitempty"`
	OverallScore     float64              `json:"overall_score,omitempty"`
	ScoreExplanation string               `json:"score_explanation,omitempty"`
	CommonThemes     string               `json:"common_themes,omitempty"`
	ProductionNotes  string               `json:"production_notes,omitempty"`
	KeyDifferences   string               `json:"key_differences,omitempty"`
	CategoryRatings  map[string]string    `json:"category_ratings,omitempty"`
	VideosCompared   []string             `json:"videos_compared"`
	Pairwise         []PairwiseComparison `json:"pairwise_comparisons,omitempty"`
	TokensUsed       int                  `json:"tokens_used,omitempty"`
	Model            string               `json:"model,omitempty"`
}

// RunSettings records the knobs the batch ran with, for report consumers.
type RunSettings struct {
	IntervalSeconds    float64 `json:"interval_seconds"`
	MaxFrames          int     `json:"max_frames"`
	MaxDurationSeconds float64 `json:"max_duration_seconds"`
	FrameConcurrency   int     `json:"frame_concurrency"`
	VideoConcurrency   int     `json:"video_concurrency"`
	Model              string  `json:"model"`
}

// Metadata is the run-level header of a batch report.
type Metadata struct {
	RunID             string      `json:"run_id"`
	GeneratedAt       time.Time   `json:"generated_at"`
	ProcessingSeconds float64     `json:"processing_time_seconds"`
	Settings          RunSettings `json:"processing_settings"`
}

// Totals summarizes a run so partial success is legible without parsing
// every video entry.
type Totals struct {
	VideosRequested int  `json:"videos_requested"`
	VideosSucceeded int  `json:"videos_succeeded"`
	VideosFailed    int  `json:"videos_failed"`
	FramesSucceeded int  `json:"frames_succeeded"`
	FramesFailed    int  `json:"frames_failed"`
	SimilarityRan   bool `json:"similarity_ran"`
	TokensUsed      int  `json:"tokens_used"`
}

// BatchReport is the terminal persisted artifact of one run. Write-once.
type BatchReport struct {
	Metadata   Metadata          `json:"metadata"`
	Summary    Totals            `json:"summary"`
	Videos     []VideoReport     `json:"video_analyses"`
	Similarity *SimilarityReport `json:"similarity_analysis,omitempty"`
}

// ComputeTotals fills the Summary block from the report contents.
func (b *BatchReport) ComputeTotals() {
	totals := Totals{VideosRequested: len(b.Videos)}
	for _, video := range b.Videos {
		if video.Success {
			totals.VideosSucceeded++
		} else {
			totals.VideosFailed++
		}
		for _, frame := range video.FrameAnalyses {
			if frame.Success {
				totals.FramesSucceeded++
			} else {
				totals.FramesFailed++
			}
		}
		totals.TokensUsed += video.TokensUsed()
	}
	if b.Similarity != nil {
		totals.SimilarityRan = b.Similarity.Success
		totals.TokensUsed += b.Similarity.TokensUsed
		for _, pair := range b.Similarity.Pairwise {
			totals.TokensUsed += pair.TokensUsed
		}
	}
	b.Summary = totals
}
