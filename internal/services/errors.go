package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnreadable marks videos that cannot be opened or report no frames.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrDownloadFailed marks remote sources that could not be fetched.
	ErrDownloadFailed = errors.New("download failed")
	// ErrNoFramesExtracted marks videos that yielded an empty sample sequence.
	ErrNoFramesExtracted = errors.New("no frames extracted")
	// ErrTransient marks API failures eligible for retry.
	ErrTransient = errors.New("transient api failure")
	// ErrPermanent marks API failures that must not be retried.
	ErrPermanent = errors.New("permanent api failure")
	// ErrNoSuccessfulFrames marks summary requests with no usable descriptions.
	ErrNoSuccessfulFrames = errors.New("no successful frames")
	// ErrInsufficientInput marks similarity requests with fewer than two summaries.
	ErrInsufficientInput = errors.New("insufficient input")
	// ErrConfiguration marks errors that abort a run before processing starts.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsSoft reports whether an error is recorded as data rather than aborting
// sibling work. Only configuration errors abort a run.
func IsSoft(err error) bool {
	return err != nil && !errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
