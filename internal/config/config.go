// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Workflow WorkflowConfig `mapstructure:"workflow" yaml:"workflow"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`
}

// LoggerConfig controls the console and run-log output.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig configures how the Chrome instance is located and launched.
// The workflow hands the final stage to a human, so the browser runs headful
// by default.
type BrowserConfig struct {
	Headless           bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath           string        `mapstructure:"exec_path" yaml:"exec_path"`
	ManagedDir         string        `mapstructure:"managed_dir" yaml:"managed_dir"`
	WindowWidth        int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight       int           `mapstructure:"window_height" yaml:"window_height"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args               []string      `mapstructure:"args" yaml:"args"`
	LaunchProbeTimeout time.Duration `mapstructure:"launch_probe_timeout" yaml:"launch_probe_timeout"`
}

// WorkflowConfig carries the per-stage deadlines and the retry policy. The
// defaults are the reference behavior; they are not exposed as CLI flags.
type WorkflowConfig struct {
	PageURL                string        `mapstructure:"page_url" yaml:"page_url"`
	PageLoadTimeout        time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	InputTimeout           time.Duration `mapstructure:"input_timeout" yaml:"input_timeout"`
	OptionTimeout          time.Duration `mapstructure:"option_timeout" yaml:"option_timeout"`
	SubmitTimeout          time.Duration `mapstructure:"submit_timeout" yaml:"submit_timeout"`
	ResultsTimeout         time.Duration `mapstructure:"results_timeout" yaml:"results_timeout"`
	ResultsFallbackTimeout time.Duration `mapstructure:"results_fallback_timeout" yaml:"results_fallback_timeout"`
	MaxRetries             int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBaseDelay         time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	HandoffPollInterval    time.Duration `mapstructure:"handoff_poll_interval" yaml:"handoff_poll_interval"`
}

// BatchConfig configures the batch run itself.
type BatchConfig struct {
	InputFile     string        `mapstructure:"input_file" yaml:"input_file"`
	OutputPrefix  string        `mapstructure:"output_prefix" yaml:"output_prefix"`
	CompoundDelay time.Duration `mapstructure:"compound_delay" yaml:"compound_delay"`
}

// SetDefaults registers the reference configuration values on the given
// viper instance. Config file and environment values override them.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "swissbatch")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "./chrome")
	v.SetDefault("browser.managed_dir", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.launch_probe_timeout", "30s")

	// -- Workflow --
	v.SetDefault("workflow.page_url", "http://www.swisstargetprediction.ch/")
	v.SetDefault("workflow.page_load_timeout", "60s")
	v.SetDefault("workflow.input_timeout", "30s")
	v.SetDefault("workflow.option_timeout", "10s")
	v.SetDefault("workflow.submit_timeout", "10s")
	v.SetDefault("workflow.results_timeout", "240s")
	v.SetDefault("workflow.results_fallback_timeout", "60s")
	v.SetDefault("workflow.max_retries", 3)
	v.SetDefault("workflow.retry_base_delay", "1s")
	v.SetDefault("workflow.handoff_poll_interval", "1s")

	// -- Batch --
	v.SetDefault("batch.input_file", "data_compounds_final_full.csv")
	v.SetDefault("batch.output_prefix", "swisstarget_results")
	v.SetDefault("batch.compound_delay", "5s")
}

// Validate performs cross-field sanity checks on the loaded configuration.
func (c *Config) Validate() error {
	if c.Workflow.PageURL == "" {
		return fmt.Errorf("workflow.page_url must not be empty")
	}
	if c.Workflow.MaxRetries < 1 {
		return fmt.Errorf("workflow.max_retries must be at least 1, got %d", c.Workflow.MaxRetries)
	}
	if c.Workflow.PageLoadTimeout <= 0 {
		return fmt.Errorf("workflow.page_load_timeout must be positive")
	}
	if c.Workflow.HandoffPollInterval <= 0 {
		return fmt.Errorf("workflow.handoff_poll_interval must be positive")
	}
	if c.Batch.InputFile == "" {
		return fmt.Errorf("batch.input_file must not be empty")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window dimensions must be positive, got %dx%d",
			c.Browser.WindowWidth, c.Browser.WindowHeight)
	}
	return nil
}
