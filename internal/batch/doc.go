// Package batch orchestrates one analysis run: resolving sources,
// downloading remote videos, the per-video sampling, describing, and
// summarizing pipeline, the cross-video similarity stage, and writing the
// consolidated report.
//
// Two independent concurrency bounds apply: the video bound limits
// simultaneously processing videos, the frame bound limits outstanding
// description calls within each video. Per-video and per-frame failures are
// recorded in the report and never abort sibling work; only configuration
// problems (missing API key, no valid sources, a held output lock, an
// existing report) abort a run before processing starts.
package batch
