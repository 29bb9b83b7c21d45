// Package summarize turns one video's frame descriptions into a narrative
// summary through a single aggregation call.
package summarize
