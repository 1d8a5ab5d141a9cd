package config

// Package config provides a reusable loader for the sweeper's configuration
// files and environment variables, kept in the same viper-plus-mapstructure
// shape the upstream config package uses.
//
// Version: v0.1.0

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/icplabs/subaccount-sweeper/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// TokenConfig describes a single ledger registered for polling/sweeping.
type TokenConfig struct {
	Token     string `mapstructure:"token" json:"token"`
	Principal string `mapstructure:"principal" json:"principal"`
}

// Config represents the unified configuration for a sweeper engine.
type Config struct {
	Network struct {
		Name string `mapstructure:"name" json:"name"` // "mainnet" or "local"
	} `mapstructure:"network" json:"network"`

	Ledger struct {
		CustodianPrincipal string        `mapstructure:"custodian_principal" json:"custodian_principal"`
		OwnerPrincipal     string        `mapstructure:"owner_principal" json:"owner_principal"`
		PollIntervalSec    int           `mapstructure:"poll_interval_seconds" json:"poll_interval_seconds"`
		StartingNonce      uint64        `mapstructure:"starting_nonce" json:"starting_nonce"`
		Tokens             []TokenConfig `mapstructure:"tokens" json:"tokens"`
	} `mapstructure:"ledger" json:"ledger"`

	Webhook struct {
		URL string `mapstructure:"url" json:"url"`
	} `mapstructure:"webhook" json:"webhook"`

	Storage struct {
		WALPath string `mapstructure:"wal_path" json:"wal_path"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("SWEEPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // picks up SWEEPER_* overrides

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SWEEPER_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SWEEPER_ENV", ""))
}
