// Package config loads process-wide configuration once at startup.
package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the function.
type Config struct {
	Environment  string
	DebugMode    bool
	FunctionName string
	Region       string
	BatchRecords bool
	OpenAI       OpenAIConfig
	Metrics      MetricsConfig
}

// OpenAIConfig holds the upstream API credentials and request defaults.
type OpenAIConfig struct {
	APIKey       string
	Organization string
	BaseURL      string
	ImageN       int
	ImageSize    string
}

// MetricsConfig selects where collected metrics go after each invocation.
// An empty PushgatewayURL means they are logged instead of pushed.
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
	Instance       string
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("DEBUG_MODE", false)
	v.SetDefault("OPENAI_IMAGE_N", 4)
	v.SetDefault("OPENAI_IMAGE_SIZE", "1024x768")
	v.SetDefault("BATCH_RECORDS", false)
	v.SetDefault("METRICS_JOB", "openai-lambda")

	cfg := &Config{
		Environment:  v.GetString("ENVIRONMENT"),
		DebugMode:    v.GetBool("DEBUG_MODE"),
		FunctionName: v.GetString("AWS_LAMBDA_FUNCTION_NAME"),
		Region:       v.GetString("AWS_REGION"),
		BatchRecords: v.GetBool("BATCH_RECORDS"),
		OpenAI: OpenAIConfig{
			APIKey:       v.GetString("OPENAI_API_KEY"),
			Organization: v.GetString("OPENAI_API_ORGANIZATION"),
			BaseURL:      v.GetString("OPENAI_API_BASE_URL"),
			ImageN:       v.GetInt("OPENAI_IMAGE_N"),
			ImageSize:    v.GetString("OPENAI_IMAGE_SIZE"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("PUSHGATEWAY_URL"),
			Job:            v.GetString("METRICS_JOB"),
			Instance:       v.GetString("AWS_LAMBDA_LOG_STREAM_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required values are present.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.OpenAI.Organization == "" {
		errs = append(errs, errors.New("OPENAI_API_ORGANIZATION is required"))
	}
	if c.OpenAI.ImageN < 1 {
		errs = append(errs, fmt.Errorf("OPENAI_IMAGE_N must be positive, got %d", c.OpenAI.ImageN))
	}
	if c.OpenAI.ImageSize == "" {
		errs = append(errs, errors.New("OPENAI_IMAGE_SIZE must not be empty"))
	}
	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		errs = append(errs, errors.New("METRICS_JOB is required when PUSHGATEWAY_URL is set"))
	}
	return errors.Join(errs...)
}
