package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Registry contains configuration for the ClinicalTrials.gov search API.
type Registry struct {
	BaseURL        string `toml:"base_url"`
	PageSize       int    `toml:"page_size"`
	PageDelayMS    int    `toml:"page_delay_ms"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains the OpenRouter gateway connection and sampling settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	// MaxRetries counts retries after the first attempt.
	MaxRetries       int `toml:"max_retries"`
	InitialBackoffMS int `toml:"initial_backoff_ms"`
	MaxBackoffMS     int `toml:"max_backoff_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for trialscope.
//
// Configuration sections by subsystem:
//   - Registry: trial search endpoint, paging, and pacing
//   - LLM: gateway credentials, model, sampling, and retry policy
//   - Logging: log format, level, and optional log directory
type Config struct {
	Registry Registry `toml:"registry"`
	LLM      LLM      `toml:"llm"`
	Logging  Logging  `toml:"logging"`
}

// LoadOptions tweaks where Load looks for inputs.
type LoadOptions struct {
	// Path is an explicit config file. Empty searches the default locations.
	Path string
	// EnvFile is a dotenv file loaded before environment fallbacks. Empty
	// uses ./.env; missing files are ignored.
	EnvFile string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/trialscope/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and environment fallbacks applied.
func Load(opts LoadOptions) (*Config, string, bool, error) {
	cfg := Default()

	if err := loadDotEnv(opts.EnvFile); err != nil {
		return nil, "", false, err
	}

	resolvedPath, exists, err := resolveConfigPath(opts.Path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv loads environment variables from path. Existing variables win,
// and a missing file is not an error.
func loadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("resolve env file: %w", err)
	}
	err = godotenv.Load(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		if explicit {
			return fmt.Errorf("env file %s not found", expanded)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load env file %s: %w", expanded, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trialscope.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// PageDelay returns the pause between registry pages.
func (c *Config) PageDelay() time.Duration {
	return time.Duration(c.Registry.PageDelayMS) * time.Millisecond
}

// RegistryTimeout returns the HTTP timeout for registry calls.
func (c *Config) RegistryTimeout() time.Duration {
	return time.Duration(c.Registry.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the delay before the first LLM retry.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.LLM.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the cap applied to LLM retry delays.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.LLM.MaxBackoffMS) * time.Millisecond
}

// HasAPIKey reports whether the LLM pipeline can authenticate.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() Config {
	out := *c
	if key := strings.TrimSpace(out.LLM.APIKey); key != "" {
		if len(key) > 4 {
			out.LLM.APIKey = "****" + key[len(key)-4:]
		} else {
			out.LLM.APIKey = "****"
		}
	}
	return out
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
