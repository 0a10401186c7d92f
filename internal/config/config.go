// Package config loads the process bootstrap configuration: listen
// address, upstream request timeout, and the path to the persisted
// profile/proxy document. This is deliberately separate from configstore's
// document: viper governs process flags, configstore governs routing data.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the bootstrap config for the process.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
}

// ServerConfig holds the listener and upstream-call settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     int           `mapstructure:"read_timeout"`
	WriteTimeout    int           `mapstructure:"write_timeout"`
	ConfigPath      string        `mapstructure:"config_path"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// Load reads config.yaml (optional) plus CCPROXY_-prefixed environment
// variables and returns a ready Config. A missing config file is not an
// error: defaults and env vars carry the process. Only a malformed file
// fails the load.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8787)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 0) // streaming responses are unbounded
	viper.SetDefault("server.config_path", "./proxy_config.json")
	viper.SetDefault("server.upstream_timeout", "10m")
	viper.SetDefault("server.log_level", "info")

	viper.SetEnvPrefix("CCPROXY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if d, err := time.ParseDuration(viper.GetString("server.upstream_timeout")); err == nil {
		cfg.Server.UpstreamTimeout = d
	} else {
		cfg.Server.UpstreamTimeout = 10 * time.Minute
	}

	return cfg, nil
}
