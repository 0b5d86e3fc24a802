// Package config loads sweep configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/helios-labs/strategy-validator/pkg/types"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	DataPath    string `mapstructure:"data_path"`
	OutputPath  string `mapstructure:"output_path"`
	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"` // empty disables the endpoint

	Sweep types.SweepConfig `mapstructure:"sweep"`
}

// Load reads the config file at path, if any, layers environment variables
// over it (prefix SWEEP_, dots become underscores) and fills defaults. An
// empty path yields a pure defaults-plus-environment configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("output_path", "sweep_results.json")

	v.SetDefault("sweep.timeframe", string(types.Timeframe1h))
	v.SetDefault("sweep.seed", 1)
	v.SetDefault("sweep.min_trades", 20)
	v.SetDefault("sweep.min_survival", 0.5)
	v.SetDefault("sweep.win_rate_weight", 0.25)
	v.SetDefault("sweep.frequency_weight", 0.25)
	v.SetDefault("sweep.sharpe_weight", 0.25)
	v.SetDefault("sweep.survival_weight", 0.25)

	v.SetDefault("sweep.validation.runs", 1000)
	v.SetDefault("sweep.validation.block_size", 10)
	v.SetDefault("sweep.validation.min_trades", 20)
}

func validate(cfg *Config) error {
	switch cfg.Sweep.Timeframe {
	case types.Timeframe1m, types.Timeframe5m, types.Timeframe15m,
		types.Timeframe1h, types.Timeframe4h, types.Timeframe1d:
	default:
		return fmt.Errorf("unknown timeframe %q", cfg.Sweep.Timeframe)
	}
	if cfg.Sweep.MinSurvival < 0 || cfg.Sweep.MinSurvival > 1 {
		return fmt.Errorf("min_survival must be in [0,1], got %f", cfg.Sweep.MinSurvival)
	}
	return nil
}
