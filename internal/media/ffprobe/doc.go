// Package ffprobe wraps the ffprobe binary to expose the container metadata
// the frame sampler needs: duration, frame rate, and pixel dimensions.
package ffprobe
