// Package vision wraps an OpenAI-compatible chat completions API for frame
// description and text aggregation calls.
//
// The client retries transient failures (408, 429, 5xx, network timeouts,
// empty completions) with exponential backoff capped at a maximum delay,
// honoring Retry-After when the server provides one. Context cancellation
// is never retried. Describe captures API failures as result data so a bad
// frame or a rate-limit exhaustion never aborts sibling work; Complete and
// CompleteJSON return errors tagged transient or permanent for reporting.
package vision
