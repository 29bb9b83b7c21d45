package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"clipsight/internal/logging"
	"clipsight/internal/services"
)

// Info is the metadata yt-dlp reports for a remote video without downloading it.
type Info struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	UploadDate string  `json:"upload_date"`
}

// Downloader fetches remote videos through the yt-dlp binary.
type Downloader struct {
	binary string
	dir    string
	logger *slog.Logger
}

// NewDownloader constructs a downloader that stores files under dir.
func NewDownloader(binary, dir string, logger *slog.Logger) *Downloader {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	return &Downloader{
		binary: binary,
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "downloader"),
	}
}

// Probe fetches metadata for a URL without downloading the video.
func (d *Downloader) Probe(ctx context.Context, url string) (Info, error) {
	output, err := d.run(ctx, "--dump-json", "--no-download", "--no-playlist", NormalizeWatchURL(url))
	if err != nil {
		return Info{}, services.Wrap(services.ErrDownloadFailed, "resolving", "probe", url, err)
	}
	var info Info
	if err := json.Unmarshal(output, &info); err != nil {
		return Info{}, services.Wrap(services.ErrDownloadFailed, "resolving", "probe", fmt.Sprintf("%s: parse metadata", url), err)
	}
	if info.ID == "" {
		return Info{}, services.Wrap(services.ErrDownloadFailed, "resolving", "probe", fmt.Sprintf("%s: empty video id", url), nil)
	}
	return info, nil
}

// Download fetches the video and returns the local file path. When
// maxSeconds is positive only that leading section is downloaded, which is
// all the sampler will read anyway.
func (d *Downloader) Download(ctx context.Context, url string, info Info, maxSeconds float64) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrDownloadFailed, "downloading", "prepare", d.dir, err)
	}

	args := []string{
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"-f", "best[ext=mp4]/best",
		"-o", filepath.Join(d.dir, info.ID+".%(ext)s"),
	}
	if maxSeconds > 0 {
		args = append(args, "--download-sections", fmt.Sprintf("*0-%g", maxSeconds))
	}
	args = append(args, NormalizeWatchURL(url))

	if _, err := d.run(ctx, args...); err != nil {
		return "", services.Wrap(services.ErrDownloadFailed, "downloading", "fetch", fmt.Sprintf("%s: %s", url, classifyFailure(err)), err)
	}

	path, err := d.findDownloaded(info.ID)
	if err != nil {
		return "", services.Wrap(services.ErrDownloadFailed, "downloading", "locate", url, err)
	}
	d.logger.Info("video downloaded", logging.String("video_id", info.ID), logging.String("path", path))
	return path, nil
}

// Cleanup removes the download directory and everything in it.
func (d *Downloader) Cleanup() error {
	if strings.TrimSpace(d.dir) == "" {
		return nil
	}
	return os.RemoveAll(d.dir)
}

func (d *Downloader) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("%s: %w: %s", d.binary, err, detail)
	}
	return stdout.Bytes(), nil
}

func (d *Downloader) findDownloaded(id string) (string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == id {
			return filepath.Join(d.dir, name), nil
		}
	}
	return "", fmt.Errorf("downloaded file for %s not found", id)
}

// classifyFailure makes common provider refusals readable in reports. The
// distinction is best-effort; anything unmatched stays a generic failure.
func classifyFailure(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "age"):
		return "age-restricted"
	case strings.Contains(msg, "region") || strings.Contains(msg, "country"):
		return "region-locked"
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "removed"):
		return "unavailable"
	default:
		return "fetch failed"
	}
}
