// Package root contains the root command for the application
package root

import (
	"fmt"

	"aquere/libros-iva/internal/config"
	"aquere/libros-iva/internal/container"
	"aquere/libros-iva/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input      string
	Output     string
	ConfigFile string
	LogLevel   string
	LogFormat  string
	DriveAuth  string
}

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewDiscardLogger()

	// AppContainer is built before any subcommand runs.
	AppContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "libros-iva",
		Short: "Consolidates AFIP 'Mis Comprobantes' exports into yearly IVA books.",
		Long: `libros-iva cleans the monthly sales and purchases exports downloaded from AFIP
and appends them, one sheet per month, to the client's yearly IVA workbook in Google Drive.`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if AppContainer != nil {
				_ = AppContainer.Close()
			}
		},
	}

	// SharedFlags holds the persistent flag values.
	SharedFlags = CommonFlags{}
)

// Init initializes the root command and all flags
func Init() {
	flags := Cmd.PersistentFlags()
	flags.StringVarP(&SharedFlags.Input, "input", "i", "", "Input export (.xlsx or .csv)")
	flags.StringVarP(&SharedFlags.Output, "output", "o", "", "Output file (stdout when empty)")
	flags.StringVar(&SharedFlags.ConfigFile, "config", "", "Config file (default searches $HOME/.libros-iva, .libros-iva and .)")
	flags.StringVar(&SharedFlags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&SharedFlags.LogFormat, "log-format", "", "Log format (text, json)")
	flags.StringVar(&SharedFlags.DriveAuth, "drive-auth", "", "Drive auth mode (oauth, service_account, none)")
}

func setup(cmd *cobra.Command, args []string) error {
	// .env must be loaded before viper reads LIBROS_* variables.
	config.LoadEnv(nil)
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	AppContainer = c
	Log = c.GetLogger()
	return nil
}

// LoadConfig reads the configuration and applies the flags set on cmd.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.InitializeConfigFromFile(SharedFlags.ConfigFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = SharedFlags.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = SharedFlags.LogFormat
	}
	if flags.Changed("drive-auth") {
		cfg.Drive.Auth = SharedFlags.DriveAuth
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetContainer returns the container built for the running command.
func GetContainer() *container.Container {
	return AppContainer
}

// GetLogger returns the configured logger.
func GetLogger() logging.Logger {
	return Log
}
