// Package similarity compares the summarized videos of one batch, rating
// overall similarity and optionally each unordered pair.
package similarity
