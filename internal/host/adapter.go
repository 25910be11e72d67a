// Package host adapts the host operating system's filesystem primitives to
// the descriptor-based driver contract.
//
// Every operation is one round trip to one host primitive. Results are
// returned as values, failures as the error the host produced; nothing is
// buffered, cached, retried or reordered. Each method checks its context
// before it starts the host call and runs to completion once started.
package host

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"hostfs/internal/driver"
	"hostfs/internal/logging"
)

var (
	hostLogger = logging.GetLogger().WithPrefix("host")
)

const (
	// defaultFilePerm and defaultDirPerm apply before the process umask.
	defaultFilePerm os.FileMode = 0o666
	defaultDirPerm  os.FileMode = 0o777
)

// Adapter exposes host filesystem primitives. It holds no state, so a
// single Adapter may be shared by any number of goroutines.
type Adapter struct{}

// New creates a new Adapter.
func New() *Adapter {
	return &Adapter{}
}

// Stat returns a metadata snapshot of path, following symbolic links.
func (a *Adapter) Stat(ctx context.Context, path string) (driver.Stats, error) {
	if err := ctx.Err(); err != nil {
		return driver.Stats{}, err
	}
	hostLogger.Trace("stat %q", path)

	var st unix.Stat_t
	if err := ignoringEINTR(func() error { return unix.Stat(path, &st) }); err != nil {
		return driver.Stats{}, &os.PathError{Op: OpStat, Path: path, Err: err}
	}
	return statsFromUnix(&st), nil
}

// Lstat returns a metadata snapshot of path without following a final
// symbolic link.
func (a *Adapter) Lstat(ctx context.Context, path string) (driver.Stats, error) {
	if err := ctx.Err(); err != nil {
		return driver.Stats{}, err
	}
	hostLogger.Trace("lstat %q", path)

	var st unix.Stat_t
	if err := ignoringEINTR(func() error { return unix.Lstat(path, &st) }); err != nil {
		return driver.Stats{}, &os.PathError{Op: OpLstat, Path: path, Err: err}
	}
	return statsFromUnix(&st), nil
}

// Chmod changes the permission bits of path.
func (a *Adapter) Chmod(ctx context.Context, path string, mode os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("chmod %q %v", path, mode)
	return os.Chmod(path, mode)
}

// Chown changes the owner and group of path. An id of -1 is left unchanged.
func (a *Adapter) Chown(ctx context.Context, path string, uid, gid int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("chown %q %d:%d", path, uid, gid)
	return os.Chown(path, uid, gid)
}

// Chtimes changes the access and modification times of path.
func (a *Adapter) Chtimes(ctx context.Context, path string, atime, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("chtimes %q", path)
	return os.Chtimes(path, atime, mtime)
}

// Truncate changes the size of the file at path.
func (a *Adapter) Truncate(ctx context.Context, path string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("truncate %q to %d", path, size)
	return os.Truncate(path, size)
}

// Mkdir creates a single directory.
func (a *Adapter) Mkdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("mkdir %q", path)
	return os.Mkdir(path, defaultDirPerm)
}

// Rmdir removes an empty directory. Unlike os.Remove it never falls back
// to unlinking a file.
func (a *Adapter) Rmdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("rmdir %q", path)
	if err := ignoringEINTR(func() error { return unix.Rmdir(path) }); err != nil {
		return &os.PathError{Op: OpRmdir, Path: path, Err: err}
	}
	return nil
}

// Rename moves oldPath to newPath.
func (a *Adapter) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("rename %q -> %q", oldPath, newPath)
	return os.Rename(oldPath, newPath)
}

// Link creates a hard link named path that refers to target.
func (a *Adapter) Link(ctx context.Context, target, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("link %q -> %q", path, target)
	return os.Link(target, path)
}

// Symlink creates a symbolic link named path whose content is target.
func (a *Adapter) Symlink(ctx context.Context, target, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hostLogger.Debug("symlink %q -> %q", path, target)
	return os.Symlink(target, path)
}

// Readlink returns the content of the symbolic link at path.
func (a *Adapter) Readlink(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hostLogger.Trace("readlink %q", path)
	return os.Readlink(path)
}

// Unlink removes a directory entry naming a file or symbolic link.
// Directories are refused by the host.
func (a *Adapter) Unlink(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.unlink(path)
}

func (a *Adapter) unlink(path string) error {
	hostLogger.Debug("unlink %q", path)
	if err := ignoringEINTR(func() error { return unix.Unlink(path) }); err != nil {
		return &os.PathError{Op: OpUnlink, Path: path, Err: err}
	}
	return nil
}

// Realpath returns the absolute form of path with every symbolic link
// resolved. The path must exist.
func (a *Adapter) Realpath(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hostLogger.Trace("realpath %q", path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// OpenFile opens path with the given mode. Created files get 0666 before
// the process umask.
func (a *Adapter) OpenFile(ctx context.Context, path string, mode driver.Mode) (*FileDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !mode.Readable() && !mode.Writable() {
		return nil, newError(OpOpen, path, ErrInvalidMode)
	}
	hostLogger.Debug("open %q mode=%v", path, mode)

	f, err := os.OpenFile(path, mode.Flags(), defaultFilePerm)
	if err != nil {
		return nil, err
	}
	fd := newFileDescriptor(f, path, mode)
	hostLogger.Trace("opened %q as fd %d", path, fd.ID())
	return fd, nil
}

// Close closes a file or directory descriptor. Any other value, including
// a nil Descriptor, fails with ErrUnrecognizedDescriptor; closing twice
// fails with ErrInvalidDescriptor.
//
// Close always reaches the host, even when ctx is done, so a cancelled
// caller does not leak the handle.
func (a *Adapter) Close(_ context.Context, d Descriptor) error {
	switch d := d.(type) {
	case *FileDescriptor:
		hostLogger.Debug("close file %q", d.Path())
		return d.release()
	case *DirectoryDescriptor:
		hostLogger.Debug("close directory %q", d.Path())
		return d.release()
	default:
		return newError(OpClose, "", ErrUnrecognizedDescriptor)
	}
}

// Remove closes d and then unlinks the path it was opened with. If the
// close fails, the unlink is not attempted. The context is only checked
// before the close; once d is closed the unlink always runs.
func (a *Adapter) Remove(ctx context.Context, d Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.Close(ctx, d); err != nil {
		return err
	}
	return a.unlink(d.Path())
}

func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}
