package config

import (
	"os"
	"path/filepath"
	"testing"

	"aquere/libros-iva/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(original) })
}

func TestInitializeConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, "", config.CSV.Delimiter)
	assert.Equal(t, ",", config.CSV.DecimalSeparator)
	assert.Equal(t, ";", config.CSV.OutputDelimiter)
	assert.Equal(t, models.DefaultWorkbookRootFolder, config.Drive.RootFolder)
	assert.Equal(t, AuthOAuth, config.Drive.Auth)
	assert.Equal(t, 3, config.Drive.Retry.MaxAttempts)
	assert.Equal(t, "clients.yaml", config.Registry.File)
	assert.Equal(t, ":8000", config.Server.Addr)
	assert.Equal(t, 3, config.Temp.ReleaseAttempts)
	assert.Equal(t, "Moneda", config.Ledger.MarkerColumn)
	assert.Equal(t, "_temp", config.Ledger.PlaceholderSheet)

	initial, max := config.RetryDelays()
	assert.Equal(t, int64(500), initial.Milliseconds())
	assert.Equal(t, int64(10000), max.Milliseconds())
}

func TestInitializeConfig_EnvironmentVariables(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	testEnvVars := map[string]string{
		"LIBROS_LOG_LEVEL":                "debug",
		"LIBROS_LOG_FORMAT":               "json",
		"LIBROS_CSV_DELIMITER":            ";",
		"LIBROS_DRIVE_ROOT_FOLDER":        "Libros Test",
		"LIBROS_DRIVE_RETRY_MAX_ATTEMPTS": "5",
		"LIBROS_SERVER_ADDR":              ":9000",
		"LIBROS_LEDGER_PLACEHOLDER_SHEET": "Hoja1",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, ";", config.CSV.Delimiter)
	assert.Equal(t, "Libros Test", config.Drive.RootFolder)
	assert.Equal(t, 5, config.Drive.Retry.MaxAttempts)
	assert.Equal(t, ":9000", config.Server.Addr)
	assert.Equal(t, "Hoja1", config.Ledger.PlaceholderSheet)
}

func TestInitializeConfig_ConfigFileAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	content := `
log:
  level: "warn"
drive:
  root_folder: "Clientes Test"
  retry:
    max_attempts: 2
registry:
  file: "/srv/libros/clients.yaml"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))
	t.Setenv("LIBROS_LOG_LEVEL", "error")

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "error", config.Log.Level, "env var wins")
	assert.Equal(t, "Clientes Test", config.Drive.RootFolder)
	assert.Equal(t, 2, config.Drive.Retry.MaxAttempts)
	assert.Equal(t, "/srv/libros/clients.yaml", config.Registry.File)
}

func TestInitializeConfigFromFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	file := filepath.Join(t.TempDir(), "libros.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  addr: \":7000\"\n"), 0600))

	config, err := InitializeConfigFromFile(file)
	require.NoError(t, err)
	assert.Equal(t, ":7000", config.Server.Addr)

	_, err = InitializeConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	config, err := InitializeConfig()
	require.NoError(t, err)
	return config
}

func TestValidateConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		expectError  string
	}{
		{"invalid log level", func(c *Config) { c.Log.Level = "invalid" }, "invalid log level"},
		{"invalid log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"invalid CSV delimiter", func(c *Config) { c.CSV.Delimiter = "|" }, "CSV delimiter"},
		{"invalid decimal separator", func(c *Config) { c.CSV.DecimalSeparator = "x" }, "decimal_separator"},
		{"invalid output delimiter", func(c *Config) { c.CSV.OutputDelimiter = ";;" }, "output_delimiter"},
		{"unknown auth", func(c *Config) { c.Drive.Auth = "basic" }, "invalid drive.auth"},
		{"service account without key", func(c *Config) { c.Drive.Auth = AuthServiceAccount }, "service_account_file"},
		{"empty root folder", func(c *Config) { c.Drive.RootFolder = " " }, "root_folder"},
		{"retry attempts", func(c *Config) { c.Drive.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"upload size", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max_upload_mb"},
		{"release attempts", func(c *Config) { c.Temp.ReleaseAttempts = 0 }, "release_attempts"},
		{"marker column", func(c *Config) { c.Ledger.MarkerColumn = "" }, "marker_column"},
		{"placeholder", func(c *Config) { c.Ledger.PlaceholderSheet = "" }, "placeholder_sheet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig(t)
			tt.modifyConfig(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestConfigureLoggingFromConfig(t *testing.T) {
	config := validConfig(t)
	config.Log.Level = "debug"
	config.Log.Format = "json"

	logger := ConfigureLoggingFromConfig(config)
	assert.Equal(t, logrus.DebugLevel, logger.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("LIBROS_TEST_VALUE", "x")
	assert.Equal(t, "x", GetEnv("LIBROS_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnv("LIBROS_TEST_MISSING", "fallback"))
}
