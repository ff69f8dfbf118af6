package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads and merges YAML configuration files in hierarchical
// order - later configs override earlier ones (base -> site -> run).
func LoadConfig(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no configuration files provided")
	}

	var result *Config
	for _, path := range paths {
		cfg, err := loadSingleConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		if result == nil {
			result = cfg
		} else {
			result.Merge(cfg)
		}
	}

	if err := interpolateConfigEnvVars(result); err != nil {
		return nil, fmt.Errorf("failed to interpolate environment variables: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return result, nil
}

// LoadConfigWithProfile loads a config file and applies a named profile.
func LoadConfigWithProfile(path string, profileName string) (*Config, error) {
	cfg, err := loadSingleConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.ApplyProfile(profileName); err != nil {
		return nil, fmt.Errorf("failed to apply profile %q: %w", profileName, err)
	}
	if err := interpolateConfigEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to interpolate environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadSingleConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return &cfg, nil
}

// interpolateConfigEnvVars interpolates ${VAR} references in string fields
// that commonly carry them (API keys, paths).
func interpolateConfigEnvVars(cfg *Config) error {
	getenv := func(key string) (string, bool) {
		val := os.Getenv(key)
		if val == "" {
			return "", false
		}
		return val, true
	}

	if cfg.Run.Timeout != "" {
		timeout, err := interpolateEnvVars(cfg.Run.Timeout, getenv)
		if err != nil {
			return err
		}
		cfg.Run.Timeout = timeout
	}

	for name, p := range cfg.Providers {
		if p.APIKey != "" {
			apiKey, err := interpolateEnvVars(p.APIKey, getenv)
			if err != nil {
				return err
			}
			p.APIKey = apiKey
		}
		if p.Model != "" {
			model, err := interpolateEnvVars(p.Model, getenv)
			if err != nil {
				return err
			}
			p.Model = model
		}
		cfg.Providers[name] = p
	}

	if cfg.Output.Path != "" {
		path, err := interpolateEnvVars(cfg.Output.Path, getenv)
		if err != nil {
			return err
		}
		cfg.Output.Path = path
	}

	return nil
}
