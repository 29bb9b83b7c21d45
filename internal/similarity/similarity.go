package similarity

import (
	"context"
	"fmt"
	"strings"

	"clipsight/internal/report"
	"clipsight/internal/services/vision"
)

const (
	analysisMaxTokens = 2000
	pairwiseMaxTokens = 300

	// Frame detail included per video is capped to keep the prompt bounded.
	maxFrameLines = 10
	maxFrameChars = 200
	maxSummaryRef = 500

	minVideosForComparison = 2
)

// Client is the structured completion call on the vision client.
type Client interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (vision.Completion, error)
}

// candidate is one video eligible for comparison.
type candidate struct {
	id      string
	title   string
	source  string
	summary string
	frames  []report.FrameDescription
	seconds float64
}

// Analyze compares the successfully summarized videos in one batch. Fewer
// than two eligible videos yields a failed report without calling the API.
// When pairwise is set, one extra call per unordered pair records a
// per-pair score; pairwise failures are captured on the pair, not the run.
func Analyze(ctx context.Context, client Client, videos []report.VideoReport, pairwise bool) *report.SimilarityReport {
	candidates := eligible(videos)
	compared := make([]string, 0, len(candidates))
	for _, c := range candidates {
		compared = append(compared, c.id)
	}
	result := &report.SimilarityReport{VideosCompared: compared}

	if len(candidates) < minVideosForComparison {
		result.Error = fmt.Sprintf("need at least %d successfully analyzed videos for comparison, have %d", minVideosForComparison, len(candidates))
		return result
	}

	completion, err := client.CompleteJSON(ctx, jsonSystemPrompt, buildAnalysisPrompt(candidates), analysisMaxTokens)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var payload struct {
		OverallScore     float64           `json:"overall_score"`
		ScoreExplanation string            `json:"score_explanation"`
		CommonThemes     string            `json:"common_themes"`
		Categories       map[string]string `json:"categories"`
		ProductionNotes  string            `json:"production_notes"`
		KeyDifferences   string            `json:"key_differences"`
	}
	if err := vision.DecodeModelJSON(completion.Content, &payload); err != nil {
		result.Error = fmt.Sprintf("parse similarity payload: %v", err)
		result.TokensUsed = completion.TokensUsed
		return result
	}

	result.Success = true
	result.OverallScore = clampScore(payload.OverallScore)
	result.ScoreExplanation = strings.TrimSpace(payload.ScoreExplanation)
	result.CommonThemes = strings.TrimSpace(payload.CommonThemes)
	result.CategoryRatings = payload.Categories
	result.ProductionNotes = strings.TrimSpace(payload.ProductionNotes)
	result.KeyDifferences = strings.TrimSpace(payload.KeyDifferences)
	result.TokensUsed = completion.TokensUsed
	result.Model = completion.Model

	if pairwise {
		result.Pairwise = comparePairs(ctx, client, candidates)
	}
	return result
}

func eligible(videos []report.VideoReport) []candidate {
	candidates := make([]candidate, 0, len(videos))
	for _, video := range videos {
		if !video.Success || video.VideoSummary == nil || !video.VideoSummary.Success {
			continue
		}
		seconds := 0.0
		if video.Metadata != nil {
			seconds = video.Metadata.DurationSeconds
		}
		candidates = append(candidates, candidate{
			id:      video.VideoID,
			title:   video.Title,
			source:  video.Source,
			summary: video.VideoSummary.Summary,
			frames:  video.FrameAnalyses,
			seconds: seconds,
		})
	}
	return candidates
}

func comparePairs(ctx context.Context, client Client, candidates []candidate) []report.PairwiseComparison {
	comparisons := make([]report.PairwiseComparison, 0, len(candidates)*(len(candidates)-1)/2)
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			comparisons = append(comparisons, comparePair(ctx, client, candidates[i], candidates[j]))
		}
	}
	return comparisons
}

func comparePair(ctx context.Context, client Client, a, b candidate) report.PairwiseComparison {
	comparison := report.PairwiseComparison{VideoA: a.id, VideoB: b.id}

	completion, err := client.CompleteJSON(ctx, jsonSystemPrompt, buildPairwisePrompt(a, b), pairwiseMaxTokens)
	if err != nil {
		comparison.Error = err.Error()
		return comparison
	}
	var payload struct {
		Score    float64 `json:"score"`
		Analysis string  `json:"analysis"`
	}
	if err := vision.DecodeModelJSON(completion.Content, &payload); err != nil {
		comparison.Error = fmt.Sprintf("parse comparison payload: %v", err)
		comparison.TokensUsed = completion.TokensUsed
		return comparison
	}
	comparison.Score = clampScore(payload.Score)
	comparison.Analysis = strings.TrimSpace(payload.Analysis)
	comparison.TokensUsed = completion.TokensUsed
	return comparison
}

func clampScore(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
