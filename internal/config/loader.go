package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".pyanalyze"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for pyanalyze settings.
const envPrefix = "PYANALYZE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Params mirrors the CLI flags `pyanalyze serve`/`pyanalyze analyze` accept,
// layered on top of file/env defaults before the rest of LoadConfig runs.
type Params struct {
	ConfigPath string
	Workers    int
	BufferSize string
	Host       string
	Port       int
}

// LoadConfig loads configuration from file, env vars, and defaults, then
// applies CLI-flag overrides from params, then validates the result.
// Missing config file is not an error; defaults are used.
func LoadConfig(params Params) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if params.ConfigPath != "" {
		viperCfg.SetConfigFile(params.ConfigPath)

		if err := ValidateSchema(params.ConfigPath); err != nil {
			return nil, fmt.Errorf("config schema: %w", err)
		}
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	applyParamOverrides(viperCfg, params)

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("scheduler.workers", 0)
	viperCfg.SetDefault("scheduler.buffer_size", "64MB")
	viperCfg.SetDefault("scheduler.session_queue_depth", 1)

	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.backend", "memory")
	viperCfg.SetDefault("cache.max_size", "256MB")
	viperCfg.SetDefault("cache.ttl", "24h")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("server.host", "127.0.0.1")
	viperCfg.SetDefault("server.port", 0)
	viperCfg.SetDefault("server.pprof_port", 0)
}

// applyParamOverrides layers non-zero CLI flags over whatever file/env
// produced, matching BuildConfigFromParams's "flags win" precedence.
func applyParamOverrides(viperCfg *viper.Viper, params Params) {
	if params.Workers > 0 {
		viperCfg.Set("scheduler.workers", params.Workers)
	}

	if params.BufferSize != "" {
		viperCfg.Set("scheduler.buffer_size", params.BufferSize)
	}

	if params.Host != "" {
		viperCfg.Set("server.host", params.Host)
	}

	if params.Port > 0 {
		viperCfg.Set("server.port", params.Port)
	}
}
