package cli

import (
	"errors"
	"os"
	"testing"
	"time"

	"hostfs/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerMounts(t *testing.T, env *testEnv, entries ...state.MountEntry) {
	t.Helper()
	sm, err := state.NewManager(env.statePath)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, sm.Register(e))
	}
}

func listMounts(t *testing.T, env *testEnv) []state.MountEntry {
	t.Helper()
	sm, err := state.NewManager(env.statePath)
	require.NoError(t, err)
	mounts, err := sm.List()
	require.NoError(t, err)
	return mounts
}

// stubUnmount records unmount calls instead of invoking fusermount.
func stubUnmount(t *testing.T, fail map[string]bool) *[]string {
	t.Helper()
	var calls []string
	orig := unmountFunc
	unmountFunc = func(mountPoint string) error {
		calls = append(calls, mountPoint)
		if fail[mountPoint] {
			return errors.New("device busy")
		}
		return nil
	}
	t.Cleanup(func() { unmountFunc = orig })
	return &calls
}

func TestMountsEmpty(t *testing.T) {
	env := setupTestEnv(t)
	out := env.mustRun(t, "mounts")
	assert.Contains(t, out, "No hostfs mounts recorded.")
}

func TestMountsListAndPrune(t *testing.T) {
	env := setupTestEnv(t)
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	registerMounts(t, env,
		state.MountEntry{MountPoint: "/mnt/live", Source: "/srv/a", PID: os.Getpid(), MountedAt: since},
		state.MountEntry{MountPoint: "/mnt/dead", Source: "/srv/b", PID: 0, MountedAt: since, ReadOnly: true},
	)

	out := env.mustRun(t, "mounts")
	assert.Contains(t, out, "MOUNTPOINT")
	assert.Regexp(t, `/mnt/dead\s+/srv/b\s+0\s+stale\s+ro\s+2024-01-02T03:04:05Z`, out)
	assert.Regexp(t, `/mnt/live\s+/srv/a\s+\d+\s+running\s+rw`, out)

	out = env.mustRun(t, "mounts", "--prune")
	assert.NotContains(t, out, "/mnt/dead")
	assert.Contains(t, out, "/mnt/live")
	assert.Len(t, listMounts(t, env), 1)
}

func TestUnmountOne(t *testing.T) {
	env := setupTestEnv(t)
	calls := stubUnmount(t, nil)
	registerMounts(t, env, state.MountEntry{MountPoint: "/mnt/a", Source: "/srv/a", PID: os.Getpid()})

	out := env.mustRun(t, "unmount", "/mnt/a")
	assert.Contains(t, out, "Unmounted /mnt/a")
	assert.Equal(t, []string{"/mnt/a"}, *calls)
	assert.Empty(t, listMounts(t, env))

	// Unrecorded mount points are still unmounted.
	env.mustRun(t, "unmount", "/mnt/other")
	assert.Equal(t, []string{"/mnt/a", "/mnt/other"}, *calls)
}

func TestUnmountAll(t *testing.T) {
	env := setupTestEnv(t)
	calls := stubUnmount(t, map[string]bool{"/mnt/b": true})
	registerMounts(t, env,
		state.MountEntry{MountPoint: "/mnt/a", Source: "/srv/a", PID: os.Getpid()},
		state.MountEntry{MountPoint: "/mnt/b", Source: "/srv/b", PID: os.Getpid()},
	)

	_, err := env.run(t, "", "unmount", "--all")
	assert.ErrorContains(t, err, "device busy")
	assert.Equal(t, []string{"/mnt/a", "/mnt/b"}, *calls)

	mounts := listMounts(t, env)
	require.Len(t, mounts, 1)
	assert.Equal(t, "/mnt/b", mounts[0].MountPoint, "failed unmounts stay recorded")
}

func TestUnmountArgs(t *testing.T) {
	env := setupTestEnv(t)
	stubUnmount(t, nil)

	_, err := env.run(t, "", "unmount")
	assert.Error(t, err)

	_, err = env.run(t, "", "unmount", "--all", "/mnt/a")
	assert.Error(t, err)
}

func TestMountRejectsBadSource(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.run(t, "", "mount", env.path("missing"), env.path("mnt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, listMounts(t, env))
}
