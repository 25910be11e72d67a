package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir       string
	statePath string
}

// setupTestEnv isolates config, state and environment for one test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	for _, name := range []string{"PUID", "PGID", "LOG_LEVEL", "FUSE_DEBUG", "HOSTFS_LOG_LEVEL", "HOSTFS_LOG_FORMAT"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	dir := filepath.Join(home, "work")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return &testEnv{dir: dir, statePath: filepath.Join(home, "state", "mounts.yaml")}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// run executes one hostfs command line and returns its standard output.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCommand()
	root.SetArgs(append([]string{"--state", e.statePath}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	require.NoError(t, err, "hostfs %s", strings.Join(args, " "))
	return out
}

func TestCommandStructure(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "hostfs", root.Use)
	assert.False(t, root.Runnable(), "root command should only have subcommands")

	found := map[string]bool{}
	for _, cmd := range root.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range []string{
		"stat", "ls", "cat", "put", "mkdir", "rmdir", "rm", "mv", "ln",
		"chmod", "chown", "realpath", "mount", "unmount", "mounts", "version",
	} {
		assert.True(t, found[name], "expected command %q", name)
	}

	for _, name := range []string{"config", "verbose", "log-level", "log-format", "state"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "expected flag --%s", name)
	}
}

func TestVersion(t *testing.T) {
	env := setupTestEnv(t)
	SetVersionInfo("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	out := env.mustRun(t, "version")
	assert.Contains(t, out, "hostfs version 1.2.3")
	assert.Contains(t, out, "commit: abc")
}

func TestInvalidConfigFails(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.run(t, "", "--log-format", "xml", "version")
	assert.ErrorContains(t, err, "log.format")
}

func TestExplicitConfigFile(t *testing.T) {
	env := setupTestEnv(t)
	cfgPath := filepath.Join(env.dir, "hostfs.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: trace\n"), 0o600))

	env.mustRun(t, "--config", cfgPath, "version")

	_, err := env.run(t, "", "--config", filepath.Join(env.dir, "missing.yaml"), "version")
	assert.Error(t, err)
}
