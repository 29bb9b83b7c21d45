package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.BaseURL == "" {
		return errors.New("vision.base_url must be set")
	}
	if c.Vision.Model == "" {
		return errors.New("vision.model must be set")
	}
	if c.Vision.TimeoutSeconds <= 0 {
		return errors.New("vision.timeout_seconds must be positive")
	}
	if c.Vision.MaxTokens <= 0 {
		return errors.New("vision.max_tokens must be positive")
	}
	if c.Vision.RetryAttempts <= 0 {
		return errors.New("vision.retry_attempts must be positive")
	}
	return nil
}

func (c *Config) validateSampling() error {
	if c.Sampling.IntervalSeconds <= 0 {
		return errors.New("sampling.interval_seconds must be positive")
	}
	if c.Sampling.MaxFrames <= 0 {
		return errors.New("sampling.max_frames must be positive")
	}
	if c.Sampling.MaxDurationSeconds <= 0 {
		return errors.New("sampling.max_duration_seconds must be positive")
	}
	return nil
}

func (c *Config) validateBatch() error {
	for name, value := range map[string]int{
		"batch.frame_concurrency": c.Batch.FrameConcurrency,
		"batch.video_concurrency": c.Batch.VideoConcurrency,
		"batch.max_videos":        c.Batch.MaxVideos,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// RequireAPIKey verifies a vision API credential is available. It is checked
// at run start rather than at config load so read-only commands work without
// a key.
func (c *Config) RequireAPIKey() error {
	if c.Vision.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipsight/config.toml"
		}
		return fmt.Errorf("vision.api_key is required. Set CLIPSIGHT_API_KEY or OPENAI_API_KEY, or edit %s (create with 'clipsight config init')", defaultPath)
	}
	return nil
}
