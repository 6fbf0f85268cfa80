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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Publish  PublishConfig  `yaml:"publish" mapstructure:"publish"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ResolverConfig points at the reliability tuning file.
type ResolverConfig struct {
	ConfigPath string `yaml:"config_path" mapstructure:"config_path"`
}

// PublishConfig configures batch writes and snapshots.
type PublishConfig struct {
	BatchSize    int     `yaml:"batch_size" mapstructure:"batch_size"`
	BatchPauseMs int     `yaml:"batch_pause_ms" mapstructure:"batch_pause_ms"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	SnapshotsDir string  `yaml:"snapshots_dir" mapstructure:"snapshots_dir"`
}

// SourceConfig configures where observations come from.
type SourceConfig struct {
	ObservationsDir string `yaml:"observations_dir" mapstructure:"observations_dir"`
}

// NotifyConfig configures downstream cache invalidation.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
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
	v.SetEnvPrefix("DEPTHSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "depthsync.db")
	v.SetDefault("publish.batch_size", 100)
	v.SetDefault("publish.batch_pause_ms", 100)
	v.SetDefault("publish.snapshots_dir", "snapshots")
	v.SetDefault("source.observations_dir", "observations")
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
