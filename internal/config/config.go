// Package config loads the application configuration from environment
// variables and an optional YAML file. Environment variables win over
// the file; envconfig defaults fill the rest. There is no package-level
// mutable state: callers receive a value and pass it into constructors.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Fetch    FetchConfig    `yaml:"fetch" envconfig:"FETCH"`
	Reports  ReportsConfig  `yaml:"reports" envconfig:"REPORTS"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Schedule ScheduleConfig `yaml:"schedule" envconfig:"SCHEDULE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/krxflow.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" default:"output"`
}

// FetchConfig contains the exchange download endpoints and pacing.
// The OTP and download URLs are deployment secrets and carry no default.
type FetchConfig struct {
	OTPURL         string        `yaml:"otp_url" envconfig:"OTP_URL" validate:"omitempty,url"`
	DownloadURL    string        `yaml:"download_url" envconfig:"DOWNLOAD_URL" validate:"omitempty,url"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
	RequestsPerSec float64       `yaml:"requests_per_sec" envconfig:"REQUESTS_PER_SEC" default:"1"`
}

// ReportsConfig controls report shapes and destinations.
type ReportsConfig struct {
	TopCount     int    `yaml:"top_count" envconfig:"TOP_COUNT" default:"20" validate:"min=1"`
	DisplayCount int    `yaml:"display_count" envconfig:"DISPLAY_COUNT" default:"20" validate:"min=1"`
	LedgerDir    string `yaml:"ledger_dir" envconfig:"LEDGER_DIR" default:"순매수도"`
	DailyDir     string `yaml:"daily_dir" envconfig:"DAILY_DIR" default:"순매수"`
	WatchlistDir string `yaml:"watchlist_dir" envconfig:"WATCHLIST_DIR" default:"watchlist"`
	SnapshotFile string `yaml:"snapshot_file" envconfig:"SNAPSHOT_FILE" default:"일별수급순위정리표.xlsx"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	Backend string      `yaml:"backend" envconfig:"BACKEND" default:"local" validate:"oneof=local drive fallback"`
	Drive   DriveConfig `yaml:"drive" envconfig:"DRIVE"`
}

// DriveConfig contains Google Drive credentials and layout.
type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	RootFolderID    string `yaml:"root_folder_id" envconfig:"ROOT_FOLDER_ID"`
	RootFolderName  string `yaml:"root_folder_name" envconfig:"ROOT_FOLDER_NAME" default:"KRX_Auto_Crawling_Data"`
}

// ScheduleConfig contains the cron expression for the schedule command.
type ScheduleConfig struct {
	Cron string `yaml:"cron" envconfig:"CRON" default:"0 30 16 * * MON-FRI"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration using the given YAML file path. A missing
// file is not an error; environment variables alone are enough.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("KRX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg)
		}
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// getConfigFilePath returns the config file path, honoring KRX_CONFIG_FILE.
func getConfigFilePath() string {
	if path := os.Getenv("KRX_CONFIG_FILE"); path != "" {
		return path
	}
	return "krxflow.yaml"
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config into env config. Environment values
// (and envconfig defaults) only yield to the file where the file sets
// something and the corresponding env var was not set explicitly.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := envConfig

	mergeString := func(envKey string, dst *string, fileVal string) {
		if fileVal != "" && os.Getenv(envKey) == "" {
			*dst = fileVal
		}
	}

	mergeString("KRX_LOGGING_LEVEL", &merged.Logging.Level, fileConfig.Logging.Level)
	mergeString("KRX_LOGGING_FORMAT", &merged.Logging.Format, fileConfig.Logging.Format)
	mergeString("KRX_LOGGING_OUTPUT", &merged.Logging.Output, fileConfig.Logging.Output)
	mergeString("KRX_LOGGING_FILE_PATH", &merged.Logging.FilePath, fileConfig.Logging.FilePath)
	mergeString("KRX_PATHS_DATA_DIR", &merged.Paths.DataDir, fileConfig.Paths.DataDir)
	mergeString("KRX_FETCH_OTP_URL", &merged.Fetch.OTPURL, fileConfig.Fetch.OTPURL)
	mergeString("KRX_FETCH_DOWNLOAD_URL", &merged.Fetch.DownloadURL, fileConfig.Fetch.DownloadURL)
	mergeString("KRX_REPORTS_LEDGER_DIR", &merged.Reports.LedgerDir, fileConfig.Reports.LedgerDir)
	mergeString("KRX_REPORTS_DAILY_DIR", &merged.Reports.DailyDir, fileConfig.Reports.DailyDir)
	mergeString("KRX_REPORTS_WATCHLIST_DIR", &merged.Reports.WatchlistDir, fileConfig.Reports.WatchlistDir)
	mergeString("KRX_REPORTS_SNAPSHOT_FILE", &merged.Reports.SnapshotFile, fileConfig.Reports.SnapshotFile)
	mergeString("KRX_STORAGE_BACKEND", &merged.Storage.Backend, fileConfig.Storage.Backend)
	mergeString("KRX_STORAGE_DRIVE_CREDENTIALS_FILE", &merged.Storage.Drive.CredentialsFile, fileConfig.Storage.Drive.CredentialsFile)
	mergeString("KRX_STORAGE_DRIVE_ROOT_FOLDER_ID", &merged.Storage.Drive.RootFolderID, fileConfig.Storage.Drive.RootFolderID)
	mergeString("KRX_STORAGE_DRIVE_ROOT_FOLDER_NAME", &merged.Storage.Drive.RootFolderName, fileConfig.Storage.Drive.RootFolderName)
	mergeString("KRX_SCHEDULE_CRON", &merged.Schedule.Cron, fileConfig.Schedule.Cron)

	if fileConfig.Reports.TopCount != 0 && os.Getenv("KRX_REPORTS_TOP_COUNT") == "" {
		merged.Reports.TopCount = fileConfig.Reports.TopCount
	}
	if fileConfig.Reports.DisplayCount != 0 && os.Getenv("KRX_REPORTS_DISPLAY_COUNT") == "" {
		merged.Reports.DisplayCount = fileConfig.Reports.DisplayCount
	}
	if fileConfig.Fetch.Timeout != 0 && os.Getenv("KRX_FETCH_TIMEOUT") == "" {
		merged.Fetch.Timeout = fileConfig.Fetch.Timeout
	}
	if fileConfig.Fetch.RequestsPerSec != 0 && os.Getenv("KRX_FETCH_REQUESTS_PER_SEC") == "" {
		merged.Fetch.RequestsPerSec = fileConfig.Fetch.RequestsPerSec
	}

	return merged
}

// validate checks the configuration against the struct validation tags.
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Storage.Backend != "local" && c.Storage.Drive.CredentialsFile == "" {
		return fmt.Errorf("storage backend %q requires drive credentials", c.Storage.Backend)
	}
	return nil
}
