package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/cpc-project/nvm3/cpc"
	"github.com/cpc-project/nvm3/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NVM3"

// DefaultTimeout matches the timeout a freshly opened instance starts with.
const DefaultTimeout = 5 * time.Second

var (
	// ErrInvalidTimeout is returned for a negative call timeout.
	ErrInvalidTimeout = errors.New("timeout must not be negative")

	// ErrInvalidInstance is returned for an instance name containing a path separator.
	ErrInvalidInstance = errors.New("instance name is invalid")
)

// Config holds the client settings.
type Config struct {
	// Instance names the daemon instance to connect to.
	Instance string `mapstructure:"instance" yaml:"instance"`

	// Tracing asks the daemon to trace the endpoint traffic.
	Tracing bool `mapstructure:"tracing" yaml:"tracing"`

	// Timeout bounds every remote call. Zero waits forever.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// SocketDir holds the per-instance daemon directories.
	SocketDir string `mapstructure:"socket_dir" yaml:"socket_dir"`

	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig configures the process-wide logger.
type LogConfig struct {
	Level  logging.Level `mapstructure:"level" yaml:"level"`
	Path   string        `mapstructure:"path" yaml:"path"`
	Prefix string        `mapstructure:"prefix" yaml:"prefix"`
	Append bool          `mapstructure:"append" yaml:"append"`
}

// MetricsConfig configures operation metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Instance:  cpc.DefaultInstance,
		Timeout:   DefaultTimeout,
		SocketDir: "/dev/shm",
		Log: LogConfig{
			Level:  logging.LevelWarning,
			Prefix: "nvm3",
			Append: true,
		},
	}
}

// Load reads the settings. An empty path or a missing file leaves the
// defaults and environment in effect.
func Load(path string) (*Config, error) {
	v := viper.New()
	setup(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// FromViper decodes settings already gathered in v, such as command-line
// flags bound by a CLI.
func FromViper(v *viper.Viper) (*Config, error) {
	return decode(v)
}

// NewViper returns a viper instance carrying the defaults and environment
// bindings used by Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setup(v)
	return v
}

func setup(v *viper.Viper) {
	d := Default()
	v.SetDefault("instance", d.Instance)
	v.SetDefault("tracing", d.Tracing)
	v.SetDefault("timeout", d.Timeout.String())
	v.SetDefault("socket_dir", d.SocketDir)
	v.SetDefault("log.level", d.Log.Level.String())
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.prefix", d.Log.Prefix)
	v.SetDefault("log.append", d.Log.Append)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Timeout)
	}
	if strings.ContainsRune(c.Instance, os.PathSeparator) || c.Instance == "." || c.Instance == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidInstance, c.Instance)
	}
	if c.Log.Level < logging.LevelOff || c.Log.Level > logging.LevelTrace {
		return fmt.Errorf("%w: %d", logging.ErrInvalidLevel, c.Log.Level)
	}
	return nil
}

// TimeoutParts splits the timeout into the seconds and microseconds taken
// by nvm3.SetTimeout.
func (c *Config) TimeoutParts() (seconds, microseconds int) {
	return int(c.Timeout / time.Second), int(c.Timeout % time.Second / time.Microsecond)
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		levelDecodeHook(),
	)
}

// durationDecodeHook accepts "250ms" style strings and plain numbers of
// nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
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

// levelDecodeHook accepts level names as well as their numeric value.
func levelDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(logging.Level(0)) {
			return data, nil
		}
		if s, ok := data.(string); ok {
			return logging.ParseLevel(s)
		}
		return data, nil
	}
}
