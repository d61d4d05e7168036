package config

import (
	"os"
	"path/filepath"
	"sync"

	"aquere/libros-iva/internal/logging"

	"github.com/joho/godotenv"
)

var once sync.Once

// LoadEnv loads environment variables from a .env file in the working directory or
// its parent, once per process. Variables already set win over the file.
func LoadEnv(logger logging.Logger) {
	once.Do(func() {
		if logger == nil {
			logger = logging.NewDiscardLogger()
		}
		envFile := ".env"
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			envFile = filepath.Join("..", ".env")
			if _, err := os.Stat(envFile); os.IsNotExist(err) {
				logger.Debug("No .env file found, using environment variables")
				return
			}
		}

		if err := godotenv.Load(envFile); err != nil {
			logger.WithError(err).Warn("Error loading .env file")
			return
		}
		logger.Info("Loaded environment variables", logging.F(logging.FieldFile, envFile))
	})
}

// GetEnv retrieves an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}
