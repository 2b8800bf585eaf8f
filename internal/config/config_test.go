package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "http://www.swisstargetprediction.ch/", cfg.Workflow.PageURL)
	assert.Equal(t, 60*time.Second, cfg.Workflow.PageLoadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Workflow.InputTimeout)
	assert.Equal(t, 10*time.Second, cfg.Workflow.OptionTimeout)
	assert.Equal(t, 10*time.Second, cfg.Workflow.SubmitTimeout)
	assert.Equal(t, 240*time.Second, cfg.Workflow.ResultsTimeout)
	assert.Equal(t, 60*time.Second, cfg.Workflow.ResultsFallbackTimeout)
	assert.Equal(t, 3, cfg.Workflow.MaxRetries)
	assert.Equal(t, time.Second, cfg.Workflow.RetryBaseDelay)
	assert.Equal(t, time.Second, cfg.Workflow.HandoffPollInterval)

	// The handoff stage requires a visible browser.
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 1080, cfg.Browser.WindowHeight)
	assert.NotEmpty(t, cfg.Browser.UserAgent)

	assert.Equal(t, 5*time.Second, cfg.Batch.CompoundDelay)
	assert.Equal(t, "swisstarget_results", cfg.Batch.OutputPrefix)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "EmptyPageURL",
			mutate:  func(c *Config) { c.Workflow.PageURL = "" },
			wantErr: "page_url",
		},
		{
			name:    "ZeroRetries",
			mutate:  func(c *Config) { c.Workflow.MaxRetries = 0 },
			wantErr: "max_retries",
		},
		{
			name:    "NegativePageLoadTimeout",
			mutate:  func(c *Config) { c.Workflow.PageLoadTimeout = -time.Second },
			wantErr: "page_load_timeout",
		},
		{
			name:    "ZeroPollInterval",
			mutate:  func(c *Config) { c.Workflow.HandoffPollInterval = 0 },
			wantErr: "handoff_poll_interval",
		},
		{
			name:    "EmptyInputFile",
			mutate:  func(c *Config) { c.Batch.InputFile = "" },
			wantErr: "input_file",
		},
		{
			name:    "ZeroViewport",
			mutate:  func(c *Config) { c.Browser.WindowWidth = 0 },
			wantErr: "window dimensions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvOverride(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("workflow.max_retries", 5)
	v.Set("browser.headless", true)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, 5, cfg.Workflow.MaxRetries)
	assert.True(t, cfg.Browser.Headless)
}
