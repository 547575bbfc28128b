package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps process settings. The remote endpoint URL is not one of
// them: it is edited at runtime and stored with the data.
type Config struct {
	DatabaseURL    string        `mapstructure:"database_url"`
	LogFile        string        `mapstructure:"log_file"`
	RemoteTimeout  time.Duration `mapstructure:"remote_timeout"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// Load reads MEGATRACK_* environment variables and, when present, a
// megatrack.yaml file from the working directory or ~/.megatrack.
// An explicit path overrides the file search.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", "megatrack.db")
	v.SetDefault("log_file", "")
	v.SetDefault("remote_timeout", time.Duration(0))
	v.SetDefault("report_interval", time.Duration(0))

	v.SetEnvPrefix("MEGATRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("megatrack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.megatrack")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "megatrack.db"
	}
	if cfg.RemoteTimeout < 0 {
		return cfg, fmt.Errorf("remote_timeout must not be negative")
	}
	if cfg.ReportInterval < 0 {
		return cfg, fmt.Errorf("report_interval must not be negative")
	}
	return cfg, nil
}
