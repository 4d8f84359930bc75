package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Auth    AuthConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type StorageConfig struct {
	DataDir   string
	ModelPath string
}

type AuthConfig struct {
	APIToken string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "deepseek/deepseek-chat",
		},
		Storage: StorageConfig{
			DataDir:   defaultDataDir(),
			ModelPath: "models/fault_classifier.json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file in the
// working directory, and WINDBOT_* environment variables. Environment
// variables win over .env values, which win over defaults.
//
// The returned Config is a plain value: callers construct it once at startup
// and pass it down. Nothing in this package retains global state.
func Load() (Config, error) {
	cfg, err := LoadOffline()
	if err != nil {
		return Config{}, err
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf(
			"missing required config: OpenRouter API key. Set it via WINDBOT_OPENROUTER_API_KEY or a .env file")
	}

	return cfg, nil
}

// LoadOffline is Load without the API-key requirement, for commands that
// never call the upstream model (data loading, local status checks).
func LoadOffline() (Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := defaults()
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
