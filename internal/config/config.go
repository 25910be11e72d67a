// Package config loads hostfs settings from flags, the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hostfs/internal/logging"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HOSTFS"

// Keys
const (
	KeyLogLevel                = "log.level"
	KeyLogFormat               = "log.format"
	KeyStatePath               = "state.path"
	KeyMountAllowOther         = "mount.allow_other"
	KeyMountDefaultPermissions = "mount.default_permissions"
	KeyMountReadOnly           = "mount.read_only"
	KeyMountAsyncRead          = "mount.async_read"
	KeyMountUID                = "mount.uid"
	KeyMountGID                = "mount.gid"
)

// ErrInvalidValue marks a setting that failed validation.
var ErrInvalidValue = errors.New("invalid value")

// Error reports a problem with one configuration key.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config is the resolved configuration.
type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	State StateConfig `mapstructure:"state"`
	Mount MountConfig `mapstructure:"mount"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StateConfig struct {
	Path string `mapstructure:"path"`
}

// MountConfig holds FUSE mount options. UID and GID of -1 keep host ownership.
type MountConfig struct {
	AllowOther         bool `mapstructure:"allow_other"`
	DefaultPermissions bool `mapstructure:"default_permissions"`
	ReadOnly           bool `mapstructure:"read_only"`
	AsyncRead          bool `mapstructure:"async_read"`
	UID                int  `mapstructure:"uid"`
	GID                int  `mapstructure:"gid"`
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() logging.LogLevel {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}

// flagKeys maps CLI flag names to the keys they override.
var flagKeys = map[string]string{
	"log-level":   KeyLogLevel,
	"log-format":  KeyLogFormat,
	"state":       KeyStatePath,
	"read-only":   KeyMountReadOnly,
	"allow-other": KeyMountAllowOther,
	"uid":         KeyMountUID,
	"gid":         KeyMountGID,
}

// Load resolves the configuration. Precedence, highest first: flags that
// were set, environment, the config file, defaults. An explicit configFile
// must exist; the default location is optional. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Legacy names kept for container deployments
	_ = v.BindEnv(KeyMountUID, EnvPrefix+"_MOUNT_UID", "PUID")
	_ = v.BindEnv(KeyMountGID, EnvPrefix+"_MOUNT_GID", "PGID")
	_ = v.BindEnv(KeyLogLevel, EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, &Error{Key: key, Err: err}
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyStatePath, DefaultStatePath())
	v.SetDefault(KeyMountAllowOther, false)
	v.SetDefault(KeyMountDefaultPermissions, true)
	v.SetDefault(KeyMountReadOnly, false)
	v.SetDefault(KeyMountAsyncRead, true)
	v.SetDefault(KeyMountUID, -1)
	v.SetDefault(KeyMountGID, -1)
}

// Validate checks every key that has a restricted range.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return &Error{Key: KeyLogLevel, Err: fmt.Errorf("%w: %q", ErrInvalidValue, c.Log.Level)}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return &Error{Key: KeyLogFormat, Err: fmt.Errorf("%w: %q (want console or json)", ErrInvalidValue, c.Log.Format)}
	}
	if strings.TrimSpace(c.State.Path) == "" {
		return &Error{Key: KeyStatePath, Err: fmt.Errorf("%w: empty path", ErrInvalidValue)}
	}
	if c.Mount.UID < -1 {
		return &Error{Key: KeyMountUID, Err: fmt.Errorf("%w: %d", ErrInvalidValue, c.Mount.UID)}
	}
	if c.Mount.GID < -1 {
		return &Error{Key: KeyMountGID, Err: fmt.Errorf("%w: %d", ErrInvalidValue, c.Mount.GID)}
	}
	return nil
}

// Dir returns the directory searched for config.yaml.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hostfs")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "hostfs")
	}
	return "."
}

// DefaultStatePath returns where the mount table lives when not configured.
func DefaultStatePath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "hostfs", "mounts.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "hostfs", "mounts.yaml")
	}
	return filepath.Join(os.TempDir(), "hostfs", "mounts.yaml")
}
