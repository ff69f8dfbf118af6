package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validYAML() string {
	return `
run:
  n: 6
  m: 2
  iterations: 3
  alpha: 0.7
  timeout: 30s

rate_limits:
  llm: 4
  image_gen: 2
  vision: 4

providers:
  text:
    model: gpt-4o
    temperature: 0.7
    api_key: test-key

output:
  format: jsonl
  path: ./results/attempts.jsonl
`
}

func TestLoadConfigKoanf_BasicYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(validYAML()), 0644))

	cfg, err := LoadConfigKoanf(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 6, cfg.Run.N)
	assert.Equal(t, 2, cfg.Run.M)
	assert.Equal(t, 3, cfg.Run.Iterations)
	assert.Equal(t, 0.7, cfg.Run.Alpha)
	assert.Equal(t, 4, cfg.RateLimits.LLM)
	assert.Equal(t, "gpt-4o", cfg.Providers["text"].Model)
	assert.Equal(t, "test-key", cfg.Providers["text"].APIKey)
	assert.Equal(t, "jsonl", cfg.Output.Format)
	assert.Equal(t, "./results/attempts.jsonl", cfg.Output.Path)
}

func TestLoadConfigKoanf_EmptyPath(t *testing.T) {
	cfg, err := LoadConfigKoanf("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 0, cfg.Run.N)
}

func TestLoadConfigKoanf_EnvironmentVariablesOverrideYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(validYAML()), 0644))

	os.Setenv("BEAMFORGE_RUN__N", "8")
	os.Setenv("BEAMFORGE_RUN__M", "4")
	os.Setenv("BEAMFORGE_OUTPUT__FORMAT", "none")
	defer func() {
		os.Unsetenv("BEAMFORGE_RUN__N")
		os.Unsetenv("BEAMFORGE_RUN__M")
		os.Unsetenv("BEAMFORGE_OUTPUT__FORMAT")
	}()

	cfg, err := LoadConfigKoanf(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8, cfg.Run.N)
	assert.Equal(t, 4, cfg.Run.M)
	assert.Equal(t, "none", cfg.Output.Format)
	// YAML value without env override remains.
	assert.Equal(t, 3, cfg.Run.Iterations)
}

func TestLoadConfigKoanf_NestedEnvVars(t *testing.T) {
	os.Setenv("BEAMFORGE_PROVIDERS__TEXT__MODEL", "gpt-4-turbo")
	os.Setenv("BEAMFORGE_PROVIDERS__TEXT__TEMPERATURE", "0.9")
	defer func() {
		os.Unsetenv("BEAMFORGE_PROVIDERS__TEXT__MODEL")
		os.Unsetenv("BEAMFORGE_PROVIDERS__TEXT__TEMPERATURE")
	}()

	cfg, err := LoadConfigKoanf("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "gpt-4-turbo", cfg.Providers["text"].Model)
	assert.Equal(t, 0.9, cfg.Providers["text"].Temperature)
}

func TestLoadConfigKoanf_Validation(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		expectError bool
		errorMsg    string
	}{
		{name: "valid config", yaml: validYAML(), expectError: false},
		{
			name: "invalid: n not a multiple of m",
			yaml: `
run:
  n: 5
  m: 2
`,
			expectError: true,
			errorMsg:    "whole multiple",
		},
		{
			name: "invalid: temperature too high",
			yaml: `
providers:
  text:
    temperature: 3.0
`,
			expectError: true,
			errorMsg:    "validation failed",
		},
		{
			name: "invalid: unrecognized provider key",
			yaml: `
providers:
  nonsense:
    model: x
`,
			expectError: true,
			errorMsg:    "unrecognized providers key",
		},
		{
			name: "invalid: output format",
			yaml: `
output:
  format: invalid-format
`,
			expectError: true,
			errorMsg:    "validation failed",
		},
		{
			name: "invalid: jsonl output with no path",
			yaml: `
output:
  format: jsonl
`,
			expectError: true,
			errorMsg:    "output.path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.yaml), 0644))

			cfg, err := LoadConfigKoanf(configPath)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, cfg)
			}
		})
	}
}

func TestLoadConfigKoanf_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("run:\n  n: 5\n  invalid indentation\nproviders:\n  broken yaml"), 0644))

	cfg, err := LoadConfigKoanf(configPath)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoadConfigKoanf_NonexistentFile(t *testing.T) {
	cfg, err := LoadConfigKoanf("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoadConfigKoanf_ProfilesLoadedButNotAppliedAutomatically(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	yamlContent := `
profiles:
  fast:
    run:
      n: 4
      m: 2
      iterations: 1

run:
  n: 6
  m: 2
  iterations: 3
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := LoadConfigKoanf(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Contains(t, cfg.Profiles, "fast")
	assert.Equal(t, 1, cfg.Profiles["fast"].Run.Iterations)
	assert.Equal(t, 3, cfg.Run.Iterations)
}

func TestLoadConfigKoanf_EmptyConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(""), 0644))

	cfg, err := LoadConfigKoanf(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 0, cfg.Run.N)
}
