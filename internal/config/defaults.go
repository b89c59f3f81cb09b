package config

const (
	defaultRegistryBaseURL        = "https://clinicaltrials.gov/api/v2"
	defaultRegistryPageSize       = 100
	defaultRegistryPageDelayMS    = 1000
	defaultRegistryTimeoutSeconds = 30
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "openai/gpt-4o-mini"
	defaultLLMReferer             = "https://github.com/trialscope/trialscope"
	defaultLLMTitle               = "trialscope"
	defaultLLMTimeoutSeconds      = 60
	defaultLLMTemperature         = 0.5
	defaultLLMMaxTokens           = 1500
	defaultLLMMaxRetries          = 3
	defaultLLMInitialBackoffMS    = 1000
	defaultLLMMaxBackoffMS        = 30000
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultEnvFile                = ".env"
	apiKeyEnv                     = "OPENROUTER_API_KEY"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Registry: Registry{
			BaseURL:        defaultRegistryBaseURL,
			PageSize:       defaultRegistryPageSize,
			PageDelayMS:    defaultRegistryPageDelayMS,
			TimeoutSeconds: defaultRegistryTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:          defaultLLMBaseURL,
			Model:            defaultLLMModel,
			Referer:          defaultLLMReferer,
			Title:            defaultLLMTitle,
			TimeoutSeconds:   defaultLLMTimeoutSeconds,
			Temperature:      defaultLLMTemperature,
			MaxTokens:        defaultLLMMaxTokens,
			MaxRetries:       defaultLLMMaxRetries,
			InitialBackoffMS: defaultLLMInitialBackoffMS,
			MaxBackoffMS:     defaultLLMMaxBackoffMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
