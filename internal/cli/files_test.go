package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"hostfs/internal/driver"
	"hostfs/internal/host"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndCat(t *testing.T) {
	env := setupTestEnv(t)
	file := env.path("notes.txt")

	_, err := env.run(t, "hello", "put", file)
	require.NoError(t, err)
	assert.Equal(t, "hello", env.mustRun(t, "cat", file))

	_, err = env.run(t, " world", "put", "--append", file)
	require.NoError(t, err)
	assert.Equal(t, "hello world", env.mustRun(t, "cat", file))

	_, err = env.run(t, "x", "put", file)
	require.NoError(t, err)
	assert.Equal(t, "x", env.mustRun(t, "cat", file))
}

func TestCatLargeFile(t *testing.T) {
	env := setupTestEnv(t)
	file := env.path("big.bin")
	content := strings.Repeat("0123456789abcdef", 5000)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	assert.Equal(t, content, env.mustRun(t, "cat", file))
}

func TestCatErrors(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.run(t, "", "cat", env.path("missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = env.run(t, "", "cat")
	assert.Error(t, err)
}

func TestCloseDescriptorReportsFailure(t *testing.T) {
	env := setupTestEnv(t)
	file := env.path("f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	a := &app{host: host.New()}
	ctx := context.Background()
	fd, err := a.host.OpenFile(ctx, file, driver.ModeRead)
	require.NoError(t, err)

	var closeErr error
	a.closeDescriptor(ctx, fd, &closeErr)
	assert.NoError(t, closeErr)

	a.closeDescriptor(ctx, fd, &closeErr)
	assert.ErrorIs(t, closeErr, host.ErrInvalidDescriptor)

	earlier := errors.New("read failed")
	closeErr = earlier
	a.closeDescriptor(ctx, fd, &closeErr)
	assert.Same(t, earlier, closeErr)
}

func TestStat(t *testing.T) {
	env := setupTestEnv(t)
	file := env.path("a.txt")
	require.NoError(t, os.WriteFile(file, []byte("12345"), 0o640))
	require.NoError(t, os.Symlink(file, env.path("link")))

	out := env.mustRun(t, "stat", file)
	assert.Contains(t, out, "File: "+file)
	assert.Contains(t, out, "Type: file")
	assert.Contains(t, out, "Size: 5")
	assert.Contains(t, out, "(0640)")

	out = env.mustRun(t, "stat", env.path("link"))
	assert.Contains(t, out, "Type: symlink")

	out = env.mustRun(t, "stat", "-L", env.path("link"))
	assert.Contains(t, out, "Type: file")

	out, err := env.run(t, "", "stat", file, env.path("missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, out, "Size: 5", "existing paths are still reported")
}

func TestLs(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, os.WriteFile(env.path("a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Chmod(env.path("a.txt"), 0o644))
	require.NoError(t, os.Mkdir(env.path("sub"), 0o755))
	require.NoError(t, os.Symlink("a.txt", env.path("ln")))

	lines := strings.Fields(env.mustRun(t, "ls", env.dir))
	sort.Strings(lines)
	assert.Equal(t, []string{"a.txt", "ln@", "sub/"}, lines)

	long := env.mustRun(t, "ls", "-l", env.dir)
	assert.Contains(t, long, "-rw-r--r--        1 a.txt")

	_, err := env.run(t, "", "ls", env.path("a.txt"))
	assert.Error(t, err)
}

func TestMkdirRmdir(t *testing.T) {
	env := setupTestEnv(t)
	dir := env.path("made")

	env.mustRun(t, "mkdir", "--mode", "0700", dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	_, err = env.run(t, "", "mkdir", dir)
	assert.ErrorIs(t, err, fs.ErrExist)

	env.mustRun(t, "rmdir", dir)
	_, err = os.Stat(dir)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = env.run(t, "", "mkdir", "--mode", "999", dir)
	assert.ErrorContains(t, err, "invalid mode")
}

func TestRmAndMv(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, os.WriteFile(env.path("old"), []byte("data"), 0o644))

	env.mustRun(t, "mv", env.path("old"), env.path("new"))
	_, err := os.Stat(env.path("old"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	env.mustRun(t, "rm", env.path("new"))
	_, err = os.Stat(env.path("new"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = env.run(t, "", "rm", env.path("new"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLn(t *testing.T) {
	env := setupTestEnv(t)
	target := env.path("target")
	require.NoError(t, os.WriteFile(target, []byte("t"), 0o644))

	env.mustRun(t, "ln", target, env.path("hard"))
	a, err := os.Stat(target)
	require.NoError(t, err)
	b, err := os.Stat(env.path("hard"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(a, b))

	env.mustRun(t, "ln", "-s", "target", env.path("soft"))
	link, err := os.Readlink(env.path("soft"))
	require.NoError(t, err)
	assert.Equal(t, "target", link)
}

func TestChmodChown(t *testing.T) {
	env := setupTestEnv(t)
	file := env.path("f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	env.mustRun(t, "chmod", "600", file)
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	env.mustRun(t, "chown", ":", file)
	env.mustRun(t, "chown", strconv.Itoa(os.Getuid())+":"+strconv.Itoa(os.Getgid()), file)

	_, err = env.run(t, "", "chown", "root", file)
	assert.ErrorContains(t, err, "want UID:GID")
}

func TestRealpath(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, os.Mkdir(env.path("real"), 0o755))
	require.NoError(t, os.Symlink("real", env.path("alias")))

	want, err := filepath.EvalSymlinks(env.path("real"))
	require.NoError(t, err)

	out := env.mustRun(t, "realpath", env.path("alias"))
	assert.Equal(t, want+"\n", out)

	_, err = os.Stat(env.path("alias"))
	assert.NoError(t, err, "realpath must not remove its argument")
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{in: "644", want: 0o644, ok: true},
		{in: "0755", want: 0o755, ok: true},
		{in: "4755", want: 0o4755, ok: true},
		{in: "8", ok: false},
		{in: "17777", ok: false},
		{in: "rw", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMode(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, os.FileMode(0o755)|os.ModeSetuid, fileMode(0o4755))
	assert.Equal(t, os.FileMode(0o777)|os.ModeSticky, fileMode(0o1777))
}

func TestParseOwner(t *testing.T) {
	uid, gid, err := parseOwner("10:20")
	require.NoError(t, err)
	assert.Equal(t, 10, uid)
	assert.Equal(t, 20, gid)

	uid, gid, err = parseOwner(":20")
	require.NoError(t, err)
	assert.Equal(t, -1, uid)
	assert.Equal(t, 20, gid)

	_, _, err = parseOwner("a:b")
	assert.Error(t, err)
	_, _, err = parseOwner("-1:2")
	assert.Error(t, err)
}
