// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, video IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep the failure
//     taxonomy (transient vs permanent, soft vs configuration) consistent
//     across every boundary call.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
