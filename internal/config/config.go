// Package config loads pedro settings from defaults, an optional config file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/pedro/internal/resolver"
)

// Setting keys. Flags use the same names with dashes.
const (
	KeyDB               = "db"
	KeyMaxTDDIterations = "max_tdd_iterations"
	KeyMaxRevisions     = "max_revisions"
	KeyQualityThreshold = "quality_threshold"
	KeySliceMaxDays     = "slice_max_days"
	KeyRetryMaxTries    = "retry_max_tries"
	KeyAgentCmd         = "agent_cmd"
	KeyRunnerCmd        = "runner_cmd"
	KeyScorerCmd        = "scorer_cmd"
	KeyVerbose          = "verbose"
)

// EnvPrefix prefixes every environment variable, e.g. PEDRO_DB.
const EnvPrefix = "PEDRO"

// Config holds the resolved settings.
type Config struct {
	DB               string `mapstructure:"db"`
	MaxTDDIterations int    `mapstructure:"max_tdd_iterations"`
	MaxRevisions     int    `mapstructure:"max_revisions"`
	QualityThreshold int64  `mapstructure:"quality_threshold"`
	SliceMaxDays     int64  `mapstructure:"slice_max_days"`
	RetryMaxTries    uint   `mapstructure:"retry_max_tries"`
	AgentCmd         string `mapstructure:"agent_cmd"`
	RunnerCmd        string `mapstructure:"runner_cmd"`
	ScorerCmd        string `mapstructure:"scorer_cmd"`
	Verbose          bool   `mapstructure:"verbose"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	th := resolver.DefaultThresholds()
	return Config{
		DB:               "pedro.db",
		MaxTDDIterations: 25,
		MaxRevisions:     3,
		QualityThreshold: th.Quality,
		SliceMaxDays:     th.SliceMaxDays,
		RetryMaxTries:    3,
	}
}

// New returns a viper instance with defaults and environment bindings.
//
// MAX_TDD_ITERATIONS is honoured without the prefix; PEDRO_MAX_TDD_ITERATIONS
// wins when both are set.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyDB, d.DB)
	v.SetDefault(KeyMaxTDDIterations, d.MaxTDDIterations)
	v.SetDefault(KeyMaxRevisions, d.MaxRevisions)
	v.SetDefault(KeyQualityThreshold, d.QualityThreshold)
	v.SetDefault(KeySliceMaxDays, d.SliceMaxDays)
	v.SetDefault(KeyRetryMaxTries, d.RetryMaxTries)
	v.SetDefault(KeyAgentCmd, "")
	v.SetDefault(KeyRunnerCmd, "")
	v.SetDefault(KeyScorerCmd, "")
	v.SetDefault(KeyVerbose, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyMaxTDDIterations, EnvPrefix+"_MAX_TDD_ITERATIONS", "MAX_TDD_ITERATIONS")
	return v
}

// BindFlags binds every flag in fs whose dashed name matches a setting key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !knownKey(key) {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

func knownKey(key string) bool {
	switch key {
	case KeyDB, KeyMaxTDDIterations, KeyMaxRevisions, KeyQualityThreshold, KeySliceMaxDays,
		KeyRetryMaxTries, KeyAgentCmd, KeyRunnerCmd, KeyScorerCmd, KeyVerbose:
		return true
	}
	return false
}

// Load reads file (when non-empty) into v and returns the validated Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings that would leave a loop unbounded or a
// threshold meaningless.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.MaxTDDIterations <= 0 {
		errs = append(errs, fmt.Errorf("max_tdd_iterations must be positive, got %d", c.MaxTDDIterations))
	}
	if c.MaxRevisions <= 0 {
		errs = append(errs, fmt.Errorf("max_revisions must be positive, got %d", c.MaxRevisions))
	}
	if c.RetryMaxTries == 0 {
		errs = append(errs, errors.New("retry_max_tries must be positive"))
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 100 {
		errs = append(errs, fmt.Errorf("quality_threshold must be within 0-100, got %d", c.QualityThreshold))
	}
	if c.SliceMaxDays <= 0 {
		errs = append(errs, fmt.Errorf("slice_max_days must be positive, got %d", c.SliceMaxDays))
	}
	return errors.Join(errs...)
}

// Thresholds returns the planning thresholds.
func (c *Config) Thresholds() resolver.Thresholds {
	return resolver.Thresholds{Quality: c.QualityThreshold, SliceMaxDays: c.SliceMaxDays}
}
