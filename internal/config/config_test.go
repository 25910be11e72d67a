package config

import (
	"os"
	"path/filepath"
	"testing"

	"hostfs/internal/logging"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config and state lookups at an empty temp home.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	for _, name := range []string{
		"PUID", "PGID", "LOG_LEVEL",
		"HOSTFS_LOG_LEVEL", "HOSTFS_LOG_FORMAT", "HOSTFS_STATE_PATH",
		"HOSTFS_MOUNT_UID", "HOSTFS_MOUNT_GID", "HOSTFS_MOUNT_READ_ONLY",
		"HOSTFS_MOUNT_ALLOW_OTHER",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return home
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, filepath.Join(home, "state", "hostfs", "mounts.yaml"), cfg.State.Path)
	assert.True(t, cfg.Mount.DefaultPermissions)
	assert.True(t, cfg.Mount.AsyncRead)
	assert.False(t, cfg.Mount.AllowOther)
	assert.False(t, cfg.Mount.ReadOnly)
	assert.Equal(t, -1, cfg.Mount.UID)
	assert.Equal(t, -1, cfg.Mount.GID)
	assert.Empty(t, cfg.File)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
}

func TestLoadDefaultConfigFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config", "hostfs", "config.yaml")
	writeConfig(t, path, `
log:
  level: debug
mount:
  read_only: true
  uid: 1000
`)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Mount.ReadOnly)
	assert.Equal(t, 1000, cfg.Mount.UID)
	assert.Equal(t, -1, cfg.Mount.GID)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	writeConfig(t, path, "log:\n  format: json\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)

	_, err = Load(filepath.Join(home, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, "config", "hostfs", "config.yaml"), "log:\n  level: debug\n")

	t.Setenv("HOSTFS_LOG_LEVEL", "warn")
	t.Setenv("HOSTFS_MOUNT_ALLOW_OTHER", "true")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Mount.AllowOther)
}

func TestLegacyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PUID", "1001")
	t.Setenv("PGID", "1002")
	t.Setenv("LOG_LEVEL", "trace")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 1001, cfg.Mount.UID)
	assert.Equal(t, 1002, cfg.Mount.GID)
	assert.Equal(t, logging.LevelTrace, cfg.LogLevel())
}

func TestFlagsOverrideEverything(t *testing.T) {
	home := isolate(t)
	t.Setenv("HOSTFS_LOG_FORMAT", "console")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-format", "console", "")
	flags.String("state", "", "")
	flags.Bool("read-only", false, "")
	require.NoError(t, flags.Parse([]string{"--log-format=json", "--state", filepath.Join(home, "s.yaml")}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, filepath.Join(home, "s.yaml"), cfg.State.Path)
	assert.False(t, cfg.Mount.ReadOnly, "unset flag must not override")
	assert.True(t, cfg.Mount.DefaultPermissions)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		key  string
	}{
		{name: "bad level", env: map[string]string{"HOSTFS_LOG_LEVEL": "loud"}, key: KeyLogLevel},
		{name: "bad format", env: map[string]string{"HOSTFS_LOG_FORMAT": "xml"}, key: KeyLogFormat},
		{name: "bad uid", env: map[string]string{"HOSTFS_MOUNT_UID": "-5"}, key: KeyMountUID},
		{name: "bad gid", env: map[string]string{"HOSTFS_MOUNT_GID": "-2"}, key: KeyMountGID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("", nil)
			require.Error(t, err)

			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Key: KeyLogFormat, Err: ErrInvalidValue}
	assert.Equal(t, "config log.format: invalid value", err.Error())
}
