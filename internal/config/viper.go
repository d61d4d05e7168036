// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"aquere/libros-iva/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (LIBROS_DRIVE_ROOT_FOLDER, ...).
const EnvPrefix = "LIBROS"

// Auth modes for the remote store.
const (
	AuthOAuth          = "oauth"
	AuthServiceAccount = "service_account"
	AuthNone           = "none"
)

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	CSV struct {
		// Delimiter of uploaded exports; empty sniffs it from the content.
		Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
		// DecimalSeparator of amounts in uploaded exports: "," or ".".
		DecimalSeparator string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
		// OutputDelimiter is used when previews are written as CSV.
		OutputDelimiter string `mapstructure:"output_delimiter" yaml:"output_delimiter"`
	} `mapstructure:"csv" yaml:"csv"`

	Drive struct {
		RootFolder         string `mapstructure:"root_folder" yaml:"root_folder"`
		Auth               string `mapstructure:"auth" yaml:"auth"`
		CredentialsFile    string `mapstructure:"credentials_file" yaml:"credentials_file"`
		TokenFile          string `mapstructure:"token_file" yaml:"token_file"`
		ServiceAccountFile string `mapstructure:"service_account_file" yaml:"service_account_file"`
		Endpoint           string `mapstructure:"endpoint" yaml:"endpoint"`
		Retry              struct {
			MaxAttempts    int `mapstructure:"max_attempts" yaml:"max_attempts"`
			InitialDelayMs int `mapstructure:"initial_delay_ms" yaml:"initial_delay_ms"`
			MaxDelayMs     int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
		} `mapstructure:"retry" yaml:"retry"`
	} `mapstructure:"drive" yaml:"drive"`

	Registry struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"registry" yaml:"registry"`

	Server struct {
		Addr                  string `mapstructure:"addr" yaml:"addr"`
		RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
		MaxUploadMB           int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	} `mapstructure:"server" yaml:"server"`

	Temp struct {
		Dir              string `mapstructure:"dir" yaml:"dir"`
		ReleaseAttempts  int    `mapstructure:"release_attempts" yaml:"release_attempts"`
		ReleaseBackoffMs int    `mapstructure:"release_backoff_ms" yaml:"release_backoff_ms"`
	} `mapstructure:"temp" yaml:"temp"`

	Ledger struct {
		MarkerColumn        string `mapstructure:"marker_column" yaml:"marker_column"`
		CreditNotePattern   string `mapstructure:"credit_note_pattern" yaml:"credit_note_pattern"`
		PlaceholderSheet    string `mapstructure:"placeholder_sheet" yaml:"placeholder_sheet"`
		ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds" yaml:"probe_timeout_seconds"`
	} `mapstructure:"ledger" yaml:"ledger"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	return InitializeConfigFromFile("")
}

// InitializeConfigFromFile is InitializeConfig with an explicit config file. An empty
// path searches the standard locations.
func InitializeConfigFromFile(path string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.libros-iva")
		v.AddConfigPath(".libros-iva")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if path != "" {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("csv.delimiter", "")
	v.SetDefault("csv.decimal_separator", ",")
	v.SetDefault("csv.output_delimiter", ";")

	v.SetDefault("drive.root_folder", models.DefaultWorkbookRootFolder)
	v.SetDefault("drive.auth", AuthOAuth)
	v.SetDefault("drive.credentials_file", "credentials.json")
	v.SetDefault("drive.token_file", "token.json")
	v.SetDefault("drive.service_account_file", "")
	v.SetDefault("drive.endpoint", "")
	v.SetDefault("drive.retry.max_attempts", 3)
	v.SetDefault("drive.retry.initial_delay_ms", 500)
	v.SetDefault("drive.retry.max_delay_ms", 10000)

	v.SetDefault("registry.file", "clients.yaml")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("temp.dir", "")
	v.SetDefault("temp.release_attempts", 3)
	v.SetDefault("temp.release_backoff_ms", 500)

	v.SetDefault("ledger.marker_column", models.DefaultMarkerColumn)
	v.SetDefault("ledger.credit_note_pattern", models.DefaultCreditNotePattern)
	v.SetDefault("ledger.placeholder_sheet", models.DefaultPlaceholderSheet)
	v.SetDefault("ledger.probe_timeout_seconds", 30)
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if d := config.CSV.Delimiter; d != "" && d != ";" && d != "," && d != "\t" {
		return fmt.Errorf("CSV delimiter must be ';', ',' or a tab, got: %q", d)
	}
	if s := config.CSV.DecimalSeparator; s != "," && s != "." {
		return fmt.Errorf("csv.decimal_separator must be ',' or '.', got: %q", s)
	}
	if len([]rune(config.CSV.OutputDelimiter)) != 1 {
		return fmt.Errorf("csv.output_delimiter must be a single character, got: %q", config.CSV.OutputDelimiter)
	}

	switch config.Drive.Auth {
	case AuthOAuth, AuthNone:
	case AuthServiceAccount:
		if config.Drive.ServiceAccountFile == "" {
			return fmt.Errorf("drive.service_account_file required when drive.auth is %s", AuthServiceAccount)
		}
	default:
		return fmt.Errorf("invalid drive.auth: %s (must be oauth, service_account or none)", config.Drive.Auth)
	}
	if strings.TrimSpace(config.Drive.RootFolder) == "" {
		return fmt.Errorf("drive.root_folder must not be empty")
	}
	if config.Drive.Retry.MaxAttempts < 1 || config.Drive.Retry.MaxAttempts > 10 {
		return fmt.Errorf("drive.retry.max_attempts must be between 1 and 10, got: %d", config.Drive.Retry.MaxAttempts)
	}

	if config.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive, got: %d", config.Server.MaxUploadMB)
	}
	if config.Temp.ReleaseAttempts < 1 {
		return fmt.Errorf("temp.release_attempts must be positive, got: %d", config.Temp.ReleaseAttempts)
	}
	if strings.TrimSpace(config.Ledger.MarkerColumn) == "" {
		return fmt.Errorf("ledger.marker_column must not be empty")
	}
	if config.Ledger.PlaceholderSheet == "" {
		return fmt.Errorf("ledger.placeholder_sheet must not be empty")
	}
	return nil
}

// Validate checks c again, typically after command-line overrides.
func (c *Config) Validate() error {
	return validateConfig(c)
}

// RetryDelays returns the configured backoff bounds.
func (c *Config) RetryDelays() (initial, max time.Duration) {
	return time.Duration(c.Drive.Retry.InitialDelayMs) * time.Millisecond,
		time.Duration(c.Drive.Retry.MaxDelayMs) * time.Millisecond
}

// ConfigureLoggingFromConfig configures logging based on the Config struct
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
