package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Download  DownloadConfig  `yaml:"download" envconfig:"DOWNLOAD"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// PathsConfig contains the data directory layout. Entries other than
// DataDir may be absolute or relative; relative entries are resolved
// against DataDir.
type PathsConfig struct {
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	RawDir        string `yaml:"raw_dir" envconfig:"RAW_DIR" validate:"required"`
	OutputDir     string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	DictionaryDir string `yaml:"dictionary_dir" envconfig:"DICTIONARY_DIR" validate:"required"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// PipelineConfig contains processing options shared by the pipeline
// binaries.
type PipelineConfig struct {
	Workers int `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
}

// DownloadConfig contains the remote endpoints and retry policy for the
// downloader.
type DownloadConfig struct {
	ChicagoBaseURL string        `yaml:"chicago_base_url" envconfig:"CHICAGO_BASE_URL" validate:"required,url"`
	MDRMURL        string        `yaml:"mdrm_url" envconfig:"MDRM_URL" validate:"required,url"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"required"`
	Retries        int           `yaml:"retries" envconfig:"RETRIES" validate:"min=0,max=10"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" envconfig:"RETRY_BACKOFF" validate:"min=0"`
	RequestsPerSec float64       `yaml:"requests_per_sec" envconfig:"REQUESTS_PER_SEC" validate:"gt=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig contains tracing and metrics configuration. Telemetry
// is off by default; when enabled, run metrics are pushed to the
// configured Pushgateway at the end of each run.
type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	JobName        string `yaml:"job_name" envconfig:"JOB_NAME" validate:"required"`
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL" validate:"omitempty,url"`
	TraceStdout    bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
}

// Load loads configuration from defaults, config file, and environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := getConfigFilePath(); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// Environment variables win over file values.
	if err := envconfig.Process("CALLRPT", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file onto cfg. Keys
// absent from the file keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration.
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Logging.Output != "stdout" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging file_path is required when output is %q", c.Logging.Output)
	}
	if c.Telemetry.Enabled && c.Telemetry.PushgatewayURL == "" && !c.Telemetry.TraceStdout {
		return fmt.Errorf("telemetry enabled but neither pushgateway_url nor trace_stdout is set")
	}
	return nil
}

// getConfigFilePath returns the path to the config file.
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use defaults and env vars only
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:       "data",
			RawDir:        "raw",
			OutputDir:     "processed",
			DictionaryDir: "dictionary",
			LogsDir:       "logs",
		},
		Pipeline: PipelineConfig{
			Workers: 4,
		},
		Download: DownloadConfig{
			ChicagoBaseURL: "https://www.chicagofed.org/-/media/others/banking/financial-institution-reports/commercial-bank-data/",
			MDRMURL:        "https://www.federalreserve.gov/apps/mdrm/pdf/MDRM.zip",
			Timeout:        30 * time.Second,
			Retries:        3,
			RetryBackoff:   2 * time.Second,
			RequestsPerSec: 2,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "pipeline.log",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "callreport-pipeline",
			JobName:     "callreport_pipeline",
		},
	}
}
