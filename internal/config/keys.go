package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "WINDBOT_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "WINDBOT_OPENROUTER_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
	},
	{
		env: "WINDBOT_OPENROUTER_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
	},
	{
		env: "WINDBOT_LLM_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
	},
	{
		env: "WINDBOT_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "WINDBOT_MODEL_PATH", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.ModelPath = v.(string) },
	},
	{
		env: "WINDBOT_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Auth.APIToken = v.(string) },
	},
	{
		env: "WINDBOT_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) error {
	for _, spec := range specs {
		raw, ok := os.LookupEnv(spec.env)
		if !ok || raw == "" {
			continue
		}
		switch spec.typ {
		case kString:
			spec.apply(cfg, raw)
		case kInt:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %q", spec.env, raw)
			}
			spec.apply(cfg, n)
		}
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".windbot"
	}
	return filepath.Join(home, ".windbot")
}
