// Package config loads and validates the application configuration from a
// YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/quantforge/backcast/internal/core"
	"github.com/quantforge/backcast/internal/engine"
	"github.com/quantforge/backcast/internal/montecarlo"
	"github.com/quantforge/backcast/internal/walkforward"
)

type Config struct {
	Data        DataConfig         `mapstructure:"data"`
	Engine      engine.Config      `mapstructure:"engine"`
	Strategy    StrategyConfig     `mapstructure:"strategy"`
	WalkForward walkforward.Config `mapstructure:"walkforward"`
	MonteCarlo  montecarlo.Config  `mapstructure:"montecarlo"`
	Archive     ArchiveConfig      `mapstructure:"archive"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
}

type DataConfig struct {
	Path   string `mapstructure:"path"`
	Symbol string `mapstructure:"symbol"`
}

type StrategyConfig struct {
	Name   string             `mapstructure:"name"`
	Params map[string]float64 `mapstructure:"params"`
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Engine: engine.DefaultConfig(),
		Strategy: StrategyConfig{
			Name: "ma_crossover",
			Params: map[string]float64{
				"fast_period": 10,
				"slow_period": 30,
			},
		},
		MonteCarlo: montecarlo.DefaultConfig(),
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "results",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
	}
}

// Validate checks the configuration, collecting every violation rather than
// stopping at the first.
func (c *Config) Validate() error {
	verr := &core.ValidationError{}

	if c.Data.Path == "" {
		verr.Addf("data path is required")
	}
	if c.Data.Symbol == "" {
		verr.Addf("data symbol is required")
	}
	if c.Strategy.Name == "" {
		verr.Addf("strategy name is required")
	}

	if err := c.Engine.Validate(); err != nil {
		collect(verr, err, "engine")
	}

	switch c.Archive.Type {
	case "", "localfs":
		if c.Archive.Enabled && c.Archive.Path == "" {
			verr.Addf("archive path required for localfs")
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			verr.Addf("archive s3 bucket is required")
		}
	default:
		verr.Addf("unknown archive type %q", c.Archive.Type)
	}

	return verr.Err()
}

func collect(verr *core.ValidationError, err error, scope string) {
	var nested *core.ValidationError
	if errors.As(err, &nested) {
		for _, v := range nested.Violations {
			verr.Addf("%s: %s", scope, v)
		}
		return
	}
	verr.Addf("%s: %v", scope, err)
}
