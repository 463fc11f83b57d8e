package main

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the server.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Store struct {
		Backend  string `mapstructure:"backend"` // memory | dynamodb | postgres
		DynamoDB struct {
			TableName string `mapstructure:"table_name"`
			Region    string `mapstructure:"region"`
		} `mapstructure:"dynamodb"`
		Postgres struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"postgres"`
	} `mapstructure:"store"`
	Engine struct {
		MaxConcurrentSteps        int `mapstructure:"max_concurrent_steps"`
		DefaultStepTimeoutSeconds int `mapstructure:"default_step_timeout_seconds"`
		CancelGracePeriodSeconds  int `mapstructure:"cancel_grace_period_seconds"`
	} `mapstructure:"engine"`
}

// LoadConfig loads the configuration from config.yaml and the environment.
// Environment variables use the AUTOFLOW_ prefix, e.g. AUTOFLOW_SERVER_ADDR.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("autoflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.addr", ":3000")
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.dynamodb.table_name", "autoflow")
	viper.SetDefault("engine.max_concurrent_steps", 4)
	viper.SetDefault("engine.default_step_timeout_seconds", 30)
	viper.SetDefault("engine.cancel_grace_period_seconds", 10)

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
