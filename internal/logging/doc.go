// Package logging assembles the structured slog loggers used across
// clipsight components.
//
// It owns the console and JSON handlers, centralizes level plumbing, and
// exposes context-aware helpers so stage code automatically tags log lines
// with run IDs, video IDs, and stage names. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
