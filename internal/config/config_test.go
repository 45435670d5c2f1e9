package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_ORGANIZATION", "org-test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "org-test", cfg.OpenAI.Organization)
	assert.Equal(t, "dev", cfg.Environment)
	assert.False(t, cfg.DebugMode)
	assert.Equal(t, 4, cfg.OpenAI.ImageN)
	assert.Equal(t, "1024x768", cfg.OpenAI.ImageSize)
	assert.Empty(t, cfg.OpenAI.BaseURL)
	assert.False(t, cfg.BatchRecords)
	assert.Empty(t, cfg.Metrics.PushgatewayURL)
	assert.Equal(t, "openai-lambda", cfg.Metrics.Job)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("OPENAI_API_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("OPENAI_IMAGE_N", "2")
	t.Setenv("OPENAI_IMAGE_SIZE", "512x512")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "openai-index")
	t.Setenv("BATCH_RECORDS", "true")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("METRICS_JOB", "openai-index")
	t.Setenv("AWS_LAMBDA_LOG_STREAM_NAME", "2026/10/18/[$LATEST]abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "http://localhost:8080/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, 2, cfg.OpenAI.ImageN)
	assert.Equal(t, "512x512", cfg.OpenAI.ImageSize)
	assert.Equal(t, "openai-index", cfg.FunctionName)
	assert.True(t, cfg.BatchRecords)
	assert.Equal(t, MetricsConfig{
		PushgatewayURL: "http://pushgateway:9091",
		Job:            "openai-index",
		Instance:       "2026/10/18/[$LATEST]abc",
	}, cfg.Metrics)
}

func TestLoad_DebugMode(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"True", true},
		{"1", true},
		{"t", true},
		{"false", false},
		{"0", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv("DEBUG_MODE", tt.value)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.DebugMode)
		})
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_ORGANIZATION", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY is required")
	assert.Contains(t, err.Error(), "OPENAI_API_ORGANIZATION is required")
}

func TestValidate(t *testing.T) {
	cfg := &Config{OpenAI: OpenAIConfig{APIKey: "k", Organization: "o", ImageN: 0, ImageSize: ""}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_IMAGE_N must be positive")
	assert.Contains(t, err.Error(), "OPENAI_IMAGE_SIZE must not be empty")
}

func TestValidate_MetricsJob(t *testing.T) {
	cfg := &Config{
		OpenAI:  OpenAIConfig{APIKey: "k", Organization: "o", ImageN: 1, ImageSize: "256x256"},
		Metrics: MetricsConfig{PushgatewayURL: "http://pushgateway:9091"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "METRICS_JOB is required")

	cfg.Metrics.Job = "openai-lambda"
	assert.NoError(t, cfg.Validate())
}
