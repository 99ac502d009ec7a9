// Package conf loads and holds the dashboard server configuration.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the full server configuration tree.
type Settings struct {
	Server   ServerSettings   `mapstructure:"server"`
	Storage  StorageSettings  `mapstructure:"storage"`
	Engine   EngineSettings   `mapstructure:"engine"`
	Alerting AlertingSettings `mapstructure:"alerting"`
	Log      LogSettings      `mapstructure:"log"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ShutdownTimeout Duration `mapstructure:"shutdown_timeout"`
}

// StorageSettings configures the durable rule store.
type StorageSettings struct {
	// DataDir is the directory holding the badger rule database.
	DataDir string `mapstructure:"data_dir"`
}

// EngineSettings configures the embedded analytical query engine.
type EngineSettings struct {
	// DSN selects the SQLite database. The default in-memory DSN keeps
	// snapshots process-local, matching the replace-on-load model.
	DSN string `mapstructure:"dsn"`
	// ColumnCacheTTL bounds how long schema introspection results are cached
	// for the rule-builder field pickers.
	ColumnCacheTTL Duration `mapstructure:"column_cache_ttl"`
}

// AlertingSettings configures rule evaluation behavior.
type AlertingSettings struct {
	// MinRefreshInterval floors rule refresh intervals so a misconfigured
	// rule cannot drive the shared evaluation timer into a busy loop.
	MinRefreshInterval Duration `mapstructure:"min_refresh_interval"`
}

// LogSettings configures structured logging output.
type LogSettings struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads configuration from the given file (optional), environment
// variables prefixed DCDASH_, and built-in defaults, in ascending priority
// of defaults < file < environment.
func Load(configFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("engine.dsn", "file:dcdash?mode=memory&cache=shared")
	v.SetDefault("engine.column_cache_ttl", "5m")
	v.SetDefault("alerting.min_refresh_interval", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvPrefix("DCDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dcdashboard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default config file is fine; an explicit one must exist.
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", s.Server.Port)
	}
	if s.Storage.DataDir == "" {
		return errors.New("storage.data_dir must not be empty")
	}
	if s.Alerting.MinRefreshInterval.Std() < time.Second {
		return fmt.Errorf("alerting.min_refresh_interval %s is below 1s", s.Alerting.MinRefreshInterval.Std())
	}
	return nil
}
