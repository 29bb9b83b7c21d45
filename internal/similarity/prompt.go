package similarity

import (
	"fmt"
	"strings"
)

const jsonSystemPrompt = "You are an AI assistant specialized in analyzing and comparing video content. You must respond ONLY with a JSON object."

func buildAnalysisPrompt(candidates []candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I will provide you with detailed breakdowns of %d different videos, and you need to analyze their similarities and differences.\n\n", len(candidates))
	b.WriteString("Each video has been analyzed frame-by-frame, with detailed descriptions and a comprehensive summary.\n\nHere are the video breakdowns:\n")

	for _, c := range candidates {
		fmt.Fprintf(&b, "\n=== VIDEO %s: %s ===\n", c.id, c.title)
		if c.source != "" {
			fmt.Fprintf(&b, "Source: %s\n", c.source)
		}
		if c.seconds > 0 {
			fmt.Fprintf(&b, "Duration Analyzed: %.1f seconds\n", c.seconds)
		}
		fmt.Fprintf(&b, "Frames Analyzed: %d\n\nCOMPREHENSIVE SUMMARY:\n%s\n\nFRAME-BY-FRAME DESCRIPTIONS:\n", countSuccessful(c), c.summary)
		lines := 0
		for _, frame := range c.frames {
			if !frame.Success {
				continue
			}
			fmt.Fprintf(&b, "- %.1fs: %s\n", frame.Timestamp, truncate(frame.Description, maxFrameChars))
			lines++
			if lines >= maxFrameLines {
				break
			}
		}
	}

	fmt.Fprintf(&b, `
Based on these %d video analyses, respond with a JSON object with exactly these fields:

{
  "overall_score": <number 1-10 rating overall similarity, 1 = completely different, 10 = nearly identical>,
  "score_explanation": "<brief explanation of the rating>",
  "common_themes": "<themes, topics, recurring visual elements, settings, or styles that appear across multiple videos>",
  "categories": {<one entry per video id, value is a category such as tutorial, entertainment, documentary, vlog>},
  "production_notes": "<similarities in production quality, filming style, environments, lighting, or camera work>",
  "key_differences": "<what makes each video unique and the main differentiating factors>"
}

Be specific and reference the actual video content. Refer to videos by their id.`, len(candidates))
	return b.String()
}

func buildPairwisePrompt(a, b candidate) string {
	var builder strings.Builder
	builder.WriteString("Compare these two videos and rate their similarity on a scale of 1-10:\n\n")
	fmt.Fprintf(&builder, "VIDEO A: %s\nSummary: %s\n\n", a.title, truncate(a.summary, maxSummaryRef))
	fmt.Fprintf(&builder, "VIDEO B: %s\nSummary: %s\n\n", b.title, truncate(b.summary, maxSummaryRef))
	builder.WriteString(`Respond with a JSON object with exactly these fields:

{
  "score": <number 1-10, 1 = completely different, 10 = nearly identical>,
  "analysis": "<2-3 sentences covering the main similarities and differences>"
}`)
	return builder.String()
}

func countSuccessful(c candidate) int {
	count := 0
	for _, frame := range c.frames {
		if frame.Success {
			count++
		}
	}
	return count
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
