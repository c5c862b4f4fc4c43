package config

const (
	defaultTargetTotal      = 500
	defaultBatchSize        = 10
	defaultStageCount       = 5
	defaultCallDelaySeconds = 1.5

	defaultRetryMaxAttempts    = 5
	defaultRetryInitialSeconds = 1.0
	defaultRetryMultiplier     = 2.0

	defaultLLMBaseURL        = "https://api.anthropic.com"
	defaultLLMModel          = "claude-sonnet-4-20250514"
	defaultLLMMaxTokens      = 400
	defaultLLMTemperature    = 0.3
	defaultLLMTimeoutSeconds = 60

	defaultDataDir = "~/.local/share/refinery/data"
	defaultLogDir  = "~/.local/share/refinery/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Pipeline: Pipeline{
			TargetTotal:      defaultTargetTotal,
			BatchSize:        defaultBatchSize,
			StageCount:       defaultStageCount,
			CallDelaySeconds: defaultCallDelaySeconds,
		},
		Retry: Retry{
			MaxAttempts:         defaultRetryMaxAttempts,
			InitialDelaySeconds: defaultRetryInitialSeconds,
			Multiplier:          defaultRetryMultiplier,
			Jitter:              true,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
