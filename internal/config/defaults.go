package config

const (
	defaultOutputDir          = "~/.local/share/clipsight/output"
	defaultDownloadDir        = "~/.local/share/clipsight/downloads"
	defaultLogDir             = "~/.local/share/clipsight/logs"
	defaultVisionBaseURL      = "https://api.openai.com/v1/chat/completions"
	defaultVisionModel        = "gpt-4o"
	defaultVisionTimeout      = 60
	defaultVisionMaxTokens    = 1000
	defaultVisionRetries      = 3
	defaultSamplingInterval   = 1.0
	defaultSamplingMaxFrames  = 20
	defaultSamplingMaxSeconds = 20.0
	defaultFrameConcurrency   = 5
	defaultVideoConcurrency   = 2
	defaultMaxVideos          = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:   defaultOutputDir,
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
		},
		Vision: Vision{
			BaseURL:        defaultVisionBaseURL,
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeout,
			MaxTokens:      defaultVisionMaxTokens,
			RetryAttempts:  defaultVisionRetries,
		},
		Sampling: Sampling{
			IntervalSeconds:    defaultSamplingInterval,
			MaxFrames:          defaultSamplingMaxFrames,
			MaxDurationSeconds: defaultSamplingMaxSeconds,
		},
		Batch: Batch{
			FrameConcurrency:    defaultFrameConcurrency,
			VideoConcurrency:    defaultVideoConcurrency,
			MaxVideos:           defaultMaxVideos,
			PairwiseComparisons: true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
