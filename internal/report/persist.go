package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the report filename written into the run output directory.
// Downstream tooling parses this file, so the name and shape are stable.
const FileName = "batch_analysis_report.json"

// Write persists the report as indented JSON in dir. The report is
// write-once: an existing file is never overwritten.
func Write(dir string, batch *BatchReport) (string, error) {
	if batch == nil {
		return "", errors.New("report write: nil report")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report write: create directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("report write: %s already exists", path)
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report write: encode: %w", err)
	}
	data = append(data, '\n')

	// Write to a temp file first so a crash never leaves a torn report.
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return "", fmt.Errorf("report write: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("report write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("report write: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("report write: rename: %w", err)
	}
	return path, nil
}

// Read loads a previously written batch report.
func Read(path string) (*BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report read: %w", err)
	}
	var batch BatchReport
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("report read: decode: %w", err)
	}
	return &batch, nil
}
