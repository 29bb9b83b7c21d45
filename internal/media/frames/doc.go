// Package frames plans and extracts frame samples from local video files.
//
// Sampling is a fixed-interval walk over the analysis window, optionally
// collapsed to an even distribution when a frame budget would be exceeded.
// Decoding is delegated to ffmpeg, one seek per sample.
package frames
