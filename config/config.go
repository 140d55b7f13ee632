// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	sweepPresence  = pflag.Bool("sweep-presence", true, "Periodically deletes long-stale kiosk connection rows")
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"sqlite", "postgres"}
)

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.domain", "host_domain")

	v.BindEnv("database.driver", "database_driver")
	v.BindEnv("database.dsn", "database_dsn")

	v.BindEnv("jwt.secret", "jwt_secret")

	v.BindEnv("upload.max_size", "upload_max_size")
	v.BindEnv("upload.max_dimension", "upload_max_dimension")
	v.BindEnv("upload.max_encoded_size", "upload_max_encoded_size")

	v.BindEnv("session.ttl_hours", "session_ttl_hours")
	v.BindEnv("session.code_length", "session_code_length")

	v.BindEnv("presence.timeout_seconds", "presence_timeout_seconds")
	v.BindEnv("presence.sweep_minutes", "presence_sweep_minutes")

	v.BindEnv("cloudflare.account_id", "cloudflare_account_id")
	v.BindEnv("cloudflare.access_key_id", "cloudflare_access_key_id")
	v.BindEnv("cloudflare.secret_access_key", "cloudflare_secret_access_key")
	v.BindEnv("cloudflare.bucket", "cloudflare_bucket")
	v.BindEnv("cloudflare.public_url", "cloudflare_public_url")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("upload.max_size", 25)
	v.SetDefault("upload.max_dimension", 2560)
	v.SetDefault("upload.max_encoded_size", 4)

	v.SetDefault("session.ttl_hours", 72)
	v.SetDefault("session.code_length", 4)

	v.SetDefault("presence.timeout_seconds", 30)
	v.SetDefault("presence.sweep_minutes", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDrivers, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("jwt.secret") == "" {
		return errors.New("jwt.secret must be set, the dashboard mints tokens with the same secret")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetInt("upload.max_dimension") <= 0 {
		return errors.New("upload.max_dimension must be bigger than 0")
	}

	if v.GetInt("session.code_length") < 4 {
		return errors.New("session.code_length must be at least 4")
	}

	if v.GetInt("presence.timeout_seconds") <= 0 {
		return errors.New("presence.timeout_seconds must be bigger than 0")
	}

	if v.GetString("cloudflare.account_id") == "" {
		return errors.New("account id can't be empty")
	}
	if v.GetString("cloudflare.access_key_id") == "" {
		return errors.New("account access id can't be empty")
	}
	if v.GetString("cloudflare.secret_access_key") == "" {
		return errors.New("secret access key can't be empty")
	}
	if v.GetString("cloudflare.bucket") == "" {
		return errors.New("bucket can't be empty")
	}

	v.Set("presence.sweep_enabled", *sweepPresence)

	// Sizes are configured in MiB
	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)
	v.Set("upload.max_encoded_size", v.GetInt64("upload.max_encoded_size")<<20)
	return nil
}
