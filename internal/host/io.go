package host

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultReadSize is the buffer size ReadN uses when no positive length is given.
const DefaultReadSize = 16 * 1024

// Read returns the contents of the open file. It first takes the current
// size with Fstat, then issues a single positional read of that many bytes
// from offset 0. A short read is returned as-is; the size is taken afresh
// on every call, so a concurrent truncate or append shows up as a short
// or partial result. Read neither honors nor advances the descriptor's
// file offset; use ReadN to read from the current offset.
func (a *Adapter) Read(ctx context.Context, fd *FileDescriptor) ([]byte, error) {
	st, err := a.Fstat(ctx, fd)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, st.Size)
	if len(buf) == 0 {
		return buf, nil
	}
	n, err := a.ReadAt(ctx, fd, buf, 0)
	return buf[:n], err
}

// ReadN issues a single read of up to n bytes from the descriptor's current
// offset and advances it. A non-positive n reads up to DefaultReadSize bytes.
// Fewer bytes than requested, including none at end of file, are returned
// without retrying.
func (a *Adapter) ReadN(ctx context.Context, fd *FileDescriptor, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := fd.live(OpRead)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultReadSize
	}

	buf := make([]byte, n)
	var count int
	err = control(f, func(sysfd int) error {
		var rerr error
		count, rerr = ignoringEINTRIO(func() (int, error) { return unix.Read(sysfd, buf) })
		return rerr
	})
	hostLogger.Trace("read %d/%d bytes from %q", count, n, fd.path)
	if err != nil {
		return buf[:count], &os.PathError{Op: OpRead, Path: fd.path, Err: err}
	}
	return buf[:count], nil
}

// ReadAt issues a single positional read into p at off. The file offset
// is not changed.
func (a *Adapter) ReadAt(ctx context.Context, fd *FileDescriptor, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := fd.live(OpRead)
	if err != nil {
		return 0, err
	}

	var count int
	err = control(f, func(sysfd int) error {
		var rerr error
		count, rerr = ignoringEINTRIO(func() (int, error) { return unix.Pread(sysfd, p, off) })
		return rerr
	})
	hostLogger.Trace("pread %d/%d bytes from %q at %d", count, len(p), fd.path, off)
	if err != nil {
		return count, &os.PathError{Op: OpRead, Path: fd.path, Err: err}
	}
	return count, nil
}

// Write issues a single write of buf at the descriptor's current offset
// and reports how many bytes the host accepted. A short write is not
// retried.
func (a *Adapter) Write(ctx context.Context, fd *FileDescriptor, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := fd.live(OpWrite)
	if err != nil {
		return 0, err
	}

	var count int
	err = control(f, func(sysfd int) error {
		var werr error
		count, werr = ignoringEINTRIO(func() (int, error) { return unix.Write(sysfd, buf) })
		return werr
	})
	hostLogger.Trace("wrote %d/%d bytes to %q", count, len(buf), fd.path)
	if err != nil {
		return count, &os.PathError{Op: OpWrite, Path: fd.path, Err: err}
	}
	return count, nil
}

// WriteAt issues a single positional write of buf at off. The file offset
// is not changed.
func (a *Adapter) WriteAt(ctx context.Context, fd *FileDescriptor, buf []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := fd.live(OpWrite)
	if err != nil {
		return 0, err
	}

	var count int
	err = control(f, func(sysfd int) error {
		var werr error
		count, werr = ignoringEINTRIO(func() (int, error) { return unix.Pwrite(sysfd, buf, off) })
		return werr
	})
	hostLogger.Trace("pwrite %d/%d bytes to %q at %d", count, len(buf), fd.path, off)
	if err != nil {
		return count, &os.PathError{Op: OpWrite, Path: fd.path, Err: err}
	}
	return count, nil
}

// Fsync commits the file's contents to stable storage.
func (a *Adapter) Fsync(ctx context.Context, fd *FileDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := fd.live(OpFsync)
	if err != nil {
		return err
	}
	hostLogger.Debug("fsync %q", fd.path)
	return f.Sync()
}

// control runs fn with the host handle of f. The handle stays valid for the
// duration of fn even if f is closed concurrently.
func control(f *os.File, fn func(sysfd int) error) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(sysfd uintptr) {
		opErr = fn(int(sysfd))
	}); err != nil {
		return err
	}
	return opErr
}

func ignoringEINTRIO(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}
