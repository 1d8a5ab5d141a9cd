package config

// config.go loads the admin API's own small environment overlay, the same
// godotenv-plus-os.Getenv shape the upstream wallet server's config package
// uses, separate from pkg/config's viper-based engine configuration.

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ServerConfig describes the admin HTTP server's own settings.
type ServerConfig struct {
	Port       string
	ConfigEnv  string
}

// AppConfig holds the configuration loaded via Load.
var AppConfig ServerConfig

// Load reads apiserver/.env if present (a missing file is not an error,
// matching godotenv's typical deployment where env vars are set directly
// in production) and populates AppConfig from the environment.
func Load() error {
	if err := godotenv.Load("apiserver/.env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading env: %w", err)
	}
	port := os.Getenv("SWEEPER_API_PORT")
	if port == "" {
		port = "8082"
	}
	AppConfig = ServerConfig{
		Port:      port,
		ConfigEnv: os.Getenv("SWEEPER_ENV"),
	}
	return nil
}
