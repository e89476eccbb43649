package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Winticket WinticketConfig `yaml:"winticket" mapstructure:"winticket"`
	Yenjoy    YenjoyConfig    `yaml:"yenjoy" mapstructure:"yenjoy"`
	Update    UpdateConfig    `yaml:"update" mapstructure:"update"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the partitioned SQLite store.
type StoreConfig struct {
	DataDir          string `yaml:"data_dir" mapstructure:"data_dir"`
	ConsolidatedPath string `yaml:"consolidated_path" mapstructure:"consolidated_path"`
	PostgresURL      string `yaml:"postgres_url" mapstructure:"postgres_url"`
}

// WinticketConfig configures the JSON API source.
type WinticketConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// YenjoyConfig configures the HTML result-page source.
type YenjoyConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	VenueAliasPath string  `yaml:"venue_alias_path" mapstructure:"venue_alias_path"`
}

// UpdateConfig configures pipeline run defaults.
type UpdateConfig struct {
	MaxWorkers   int    `yaml:"max_workers" mapstructure:"max_workers"`
	HistoryStart string `yaml:"history_start" mapstructure:"history_start"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KEIRIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("store.consolidated_path", "./data/keirin.db")
	v.SetDefault("winticket.base_url", "https://api.winticket.jp/v1")
	v.SetDefault("winticket.rate_per_sec", 1.0)
	v.SetDefault("winticket.burst", 1)
	v.SetDefault("winticket.timeout_secs", 30)
	v.SetDefault("winticket.max_retries", 3)
	v.SetDefault("yenjoy.base_url", "https://www.yen-joy.net")
	v.SetDefault("yenjoy.rate_per_sec", 0.5)
	v.SetDefault("yenjoy.timeout_secs", 30)
	v.SetDefault("yenjoy.max_retries", 3)
	v.SetDefault("yenjoy.user_agent", "keirin-cli/1.0")
	v.SetDefault("update.max_workers", 5)
	v.SetDefault("update.history_start", "2012-01-01")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
