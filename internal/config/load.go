package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional config
// file, applies defaults, and validates the result. Environment variables use
// the CASTPOST_ prefix with underscores separating nested keys, for example
// CASTPOST_SERVER_PORT maps to server.port.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CASTPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces keys viper already knows about, so every
	// key is bound explicitly; otherwise env-only secrets like the database
	// URL would never reach Unmarshal.
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvs(v *viper.Viper) error {
	keys := []string{
		"server.port",
		"server.log_level",
		"database.url",
		"auth.jwt_secret",
		"auth.token_lifetime_minutes",
		"auth.token_seal_key",
		"publisher.worker_count",
		"publisher.queue_size",
		"publisher.job_max_retries",
		"publisher.network_max_retries",
		"publisher.http_timeout_seconds",
		"publisher.media_poll_budget_seconds",
		"scheduler.cron_spec",
		"scheduler.batch_size",
	}

	for _, key := range keys {
		envVar := "CASTPOST_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envVar); err != nil {
			return fmt.Errorf("error binding environment variable %s: %w", envVar, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("publisher.worker_count", 2)
	v.SetDefault("publisher.queue_size", 100)
	v.SetDefault("publisher.job_max_retries", 3)
	v.SetDefault("publisher.network_max_retries", 3)
	v.SetDefault("publisher.http_timeout_seconds", 30)
	v.SetDefault("publisher.media_poll_budget_seconds", 600)

	v.SetDefault("scheduler.cron_spec", "* * * * *")
	v.SetDefault("scheduler.batch_size", 50)
}
