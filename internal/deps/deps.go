package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"clipsight/internal/config"
)

const versionProbeTimeout = 5 * time.Second

// Requirement defines one external binary the analysis pipeline shells out
// to. Optional tools degrade a feature instead of failing a check.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of probing one requirement. Detail carries the
// version string for available binaries or the failure reason otherwise.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Fatal reports whether this status alone should fail a dependency check.
// Missing optional tools are a warning, not a failure.
func (s Status) Fatal() bool {
	return !s.Available && !s.Optional
}

// Required lists the external binaries the pipeline invokes. yt-dlp is
// optional since local files need no downloader.
func Required(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Frame extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Video metadata",
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.YtDlpBinary(),
			Description: "Remote video download",
			Optional:    true,
		},
	}
}

// CheckBinaries probes each requirement on PATH and reports availability.
// Available binaries also get a best-effort version probe.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		status := Status{Requirement: req}
		switch {
		case req.Command == "":
			status.Detail = "command not configured"
		case !binaryOnPath(req.Command):
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			if req.Optional {
				status.Detail += " (optional)"
			}
		default:
			status.Available = true
			status.Detail = req.Description
			if version := Version(req.Command); version != "" {
				status.Detail = version
			}
		}
		results = append(results, status)
	}
	return results
}

func binaryOnPath(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

// Version returns the first line of `command --version` output, or an empty
// string when it cannot be determined.
func Version(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, command, "--version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line)
}
