// Package config loads the debugger front-end's configuration from CLI
// flags, environment variables, and (optionally) a config file, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration for the debugger front-end.
type Config struct {
	// Listen is the address the DBGp listener binds to, e.g. "0.0.0.0:9003".
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required,hostname_port"`

	// LogPath, when non-empty, opens a trace log sink at this path instead
	// of writing logs to stderr.
	LogPath string `mapstructure:"log_path" yaml:"log_path"`

	// LogLevel controls the logger's minimum level (DEBUG, INFO, WARN, ERROR).
	LogLevel string `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`

	// SupervisedCmd, when non-empty, is launched once the session reaches
	// Connected; its stdout/stderr are routed into named channels.
	SupervisedCmd []string `mapstructure:"cmd" yaml:"cmd"`

	// MaxDepth is negotiated with the debuggee via feature_set("max_depth", ...).
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth" validate:"gte=1"`

	// StackMaxContextFetch bounds how many innermost stack levels are
	// eagerly fetched on break; deeper levels are lazily back-filled.
	StackMaxContextFetch int `mapstructure:"stack_max_context_fetch" yaml:"stack_max_context_fetch" validate:"gte=0"`

	// MotionPrefixMax saturates the numeric motion/plurality prefix (§4.J).
	MotionPrefixMax int `mapstructure:"motion_prefix_max" yaml:"motion_prefix_max" validate:"gte=1"`

	// ShutdownTimeout bounds graceful shutdown of background tasks.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

var validate = validator.New()

// Load builds a Config from (in ascending precedence) defaults, an optional
// config file, and DBGPFRONT_* environment variables. CLI flags are applied
// by the caller after Load returns (cmd/dbgpfront copies the flags it was
// given onto the returned struct), matching the teacher's layering.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	cfg := DefaultConfig()

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	// AutomaticEnv only affects keys viper already knows about via Get/Unmarshal
	// binding; explicitly pull DBGPFRONT_LISTEN, DBGPFRONT_LOG_PATH and
	// DBGPFRONT_LOG_LEVEL so they win even when no config file is present.
	// Other fields have no environment override.
	applyEnvOverrides(v, cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}

// Save writes cfg to path as YAML, grounded on the teacher's SaveConfig.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DBGPFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("dbgpfront")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if s := os.Getenv("DBGPFRONT_LISTEN"); s != "" {
		cfg.Listen = s
	}
	if s := os.Getenv("DBGPFRONT_LOG_PATH"); s != "" {
		cfg.LogPath = s
	}
	if s := os.Getenv("DBGPFRONT_LOG_LEVEL"); s != "" {
		cfg.LogLevel = s
	}
}

// durationDecodeHook lets the config file express durations as "30s", "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
