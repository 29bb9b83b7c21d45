// Package describe fans sampled frames out to the vision client under a
// bounded concurrency limit while preserving sample order in the results.
package describe
