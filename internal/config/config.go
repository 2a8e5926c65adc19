// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Device describes how to reach the attendance terminal.
type Device struct {
	Host     string
	Port     int
	Timezone string
}

// Log describes the transaction log file.
type Log struct {
	Filename string
	Split    bool
}

// Forwarder holds HTTP delivery settings. MaxAttempts of 1 means no
// retry; values above 1 enable bounded retry with backoff.
type Forwarder struct {
	Timeout     time.Duration
	MaxAttempts int
}

// Config is the full application configuration, loaded once at startup
// and immutable afterwards.
type Config struct {
	Device       Device
	Endpoint     string
	Transmission bool
	Log          Log
	Forwarder    Forwarder
}

// Load reads the YAML file at path and validates the required keys.
// device.host, device.port and endpoint must all be present and
// non-empty; everything else has a default.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("device.timezone", "UTC")
	v.SetDefault("transmission", true)
	v.SetDefault("log.filename", "transactions")
	v.SetDefault("log.split", false)
	v.SetDefault("forwarder.timeout", "10s")
	v.SetDefault("forwarder.max_attempts", 1)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := validate(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Device: Device{
			Host:     v.GetString("device.host"),
			Port:     v.GetInt("device.port"),
			Timezone: v.GetString("device.timezone"),
		},
		Endpoint:     v.GetString("endpoint"),
		Transmission: v.GetBool("transmission"),
		Log: Log{
			Filename: v.GetString("log.filename"),
			Split:    v.GetBool("log.split"),
		},
		Forwarder: Forwarder{
			Timeout:     v.GetDuration("forwarder.timeout"),
			MaxAttempts: v.GetInt("forwarder.max_attempts"),
		},
	}
	return cfg, nil
}

func validate(v *viper.Viper) error {
	if v.GetString("device.host") == "" {
		return fmt.Errorf("device.host is missing or empty")
	}
	if !v.IsSet("device.port") || v.GetInt("device.port") <= 0 {
		return fmt.Errorf("device.port is missing or not a positive integer")
	}
	if v.GetString("endpoint") == "" {
		return fmt.Errorf("endpoint is missing or empty")
	}
	if v.IsSet("transmission") {
		if _, ok := v.Get("transmission").(bool); !ok {
			return fmt.Errorf("transmission must be either true or false")
		}
	}
	if v.GetInt("forwarder.max_attempts") < 1 {
		return fmt.Errorf("forwarder.max_attempts must be at least 1")
	}
	return nil
}
