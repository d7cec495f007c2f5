package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the settings that can come from a config file or the environment.
type Config struct {
	Budget           int    `mapstructure:"budget"`
	DB               string `mapstructure:"db"`
	LogLevel         string `mapstructure:"log_level"`
	LogFormat        string `mapstructure:"log_format"`
	CacheSize        int64  `mapstructure:"cache_size"`
	GeohashPrecision int    `mapstructure:"geohash_precision"`
}

// loadConfig reads parcelsplit.{yaml,toml,json} from the working directory or the user's config directory, if present, and PARCELSPLIT_* environment variables.
func loadConfig(v *viper.Viper) (Config, error) {
	v.SetDefault("budget", 256)
	v.SetDefault("db", "parcelsplit.db")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")
	v.SetDefault("cache_size", 1<<16)
	v.SetDefault("geohash_precision", 12)

	v.SetConfigName("parcelsplit")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "parcelsplit"))
	}
	v.SetEnvPrefix("parcelsplit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "reading config")
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	if cfg.Budget < 0 {
		return Config{}, errors.Errorf("negative budget %d", cfg.Budget)
	}
	return cfg, nil
}

// newLogger returns a logger writing to stderr at the configured level.
func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else if cfg.LogFormat != "json" {
		return nil, errors.Errorf("unknown log format %q", cfg.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = level != zapcore.DebugLevel
	return zc.Build()
}
