// Package runstore persists run history to SQLite so past batches and
// their per-video outcomes can be inspected after the fact.
package runstore
