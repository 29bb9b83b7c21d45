package summarize

import (
	"context"
	"fmt"
	"strings"

	"clipsight/internal/report"
	"clipsight/internal/services/vision"
)

const summaryMaxTokens = 1500

// Completer is the aggregation call on the vision client.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (vision.Completion, error)
}

// Video aggregates a video's successful frame descriptions into one
// narrative summary with a single API call. When no frame succeeded the
// summary is failed without calling the API.
func Video(ctx context.Context, client Completer, meta *report.VideoMetadata, descriptions []report.FrameDescription) *report.VideoSummary {
	successful := make([]report.FrameDescription, 0, len(descriptions))
	for _, desc := range descriptions {
		if desc.Success {
			successful = append(successful, desc)
		}
	}
	if len(successful) == 0 {
		return &report.VideoSummary{
			Success: false,
			Error:   "no successful frame analyses to summarize",
		}
	}

	result, err := client.Complete(ctx, buildPrompt(meta, successful), summaryMaxTokens)
	if err != nil {
		return &report.VideoSummary{
			Success:        false,
			Error:          err.Error(),
			FramesAnalyzed: len(successful),
		}
	}
	return &report.VideoSummary{
		Success:        true,
		Summary:        result.Content,
		TokensUsed:     result.TokensUsed,
		FramesAnalyzed: len(successful),
		Model:          result.Model,
	}
}

func buildPrompt(meta *report.VideoMetadata, successful []report.FrameDescription) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant tasked with creating a comprehensive summary of a video based on frame-by-frame analyses.\n\n")
	b.WriteString("Video Information:\n")
	if meta != nil {
		fmt.Fprintf(&b, "- Duration: %.1f seconds\n", meta.DurationSeconds)
		fmt.Fprintf(&b, "- Resolution: %s\n", meta.Resolution)
		fmt.Fprintf(&b, "- FPS: %.1f\n", meta.FPS)
	}
	fmt.Fprintf(&b, "- Total frames analyzed: %d\n\n", len(successful))
	b.WriteString("Below are the detailed analyses of individual frames from the video:\n\n")
	for _, desc := range successful {
		fmt.Fprintf(&b, "Frame %d (%.1fs): %s\n", desc.FrameNumber, desc.Timestamp, desc.Description)
	}
	b.WriteString(`
Based on these frame analyses, provide a comprehensive summary of the video using the following structure:

1. **Overall Video Summary** – What is this video about? What's the main content, purpose, or narrative?

2. **Key Themes and Topics** – What are the main themes, subjects, or topics covered throughout the video?

3. **Visual Progression** – How does the visual content evolve throughout the video? Are there distinct segments or scenes?

4. **Notable Moments** – Highlight any particularly interesting, important, or distinctive moments in the video.

5. **Technical Observations** – Comment on visual quality, lighting changes, camera work, or production style.

6. **Content Classification** – What type of video is this? (e.g., tutorial, vlog, presentation, entertainment, documentary, etc.)

7. **Key Takeaways** – What are the main points or messages someone would get from watching this video?

Instructions:
- Be concise but comprehensive
- Focus on patterns and overall narrative rather than repeating individual frame details
- Highlight transitions, changes, and progression throughout the video
- Identify the video's purpose and target audience
- Keep the summary well-structured and easy to read
`)
	return b.String()
}
