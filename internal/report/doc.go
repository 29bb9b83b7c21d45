// Package report defines the batch report data model and its persisted JSON
// form, the sole durable output of a run.
package report
