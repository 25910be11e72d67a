package fs

import (
	"context"

	"hostfs/internal/driver"
	"hostfs/internal/host"
	"hostfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// openFlagMask keeps the open flags the adapter understands.
const openFlagMask = fuse.OpenAccessModeMask | fuse.OpenAppend | fuse.OpenCreate |
	fuse.OpenExclusive | fuse.OpenTruncate | fuse.OpenSync

func openMode(flags fuse.OpenFlags) driver.Mode {
	return driver.Mode(flags & openFlagMask)
}

// File represents a regular file of the source tree.
type File struct {
	node
}

// Open implements the NodeOpener interface, opening the underlying source file.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	mode := openMode(req.Flags)
	fileLogger.Debug("Opening file %q with mode %v", f.path.String(), mode)

	if mode.Writable() || mode&driver.ModeTruncate != 0 {
		if err := f.fs.writable(OpOpen, f.path); err != nil {
			return nil, ToFuseError(err)
		}
	}

	fd, err := f.fs.host.OpenFile(ctx, f.full(), mode)
	if err != nil {
		fileLogger.Error("Failed to open file: %v", err)
		return nil, ToFuseError(err)
	}

	// Host contents may change underneath us; skip the page cache.
	resp.Flags |= fuse.OpenDirectIO

	fileLogger.Debug("Successfully opened file %q", f.path.String())
	return newFileHandle(f.fs, f.path, fd), nil
}

// Fsync implements the NodeFsyncer interface by syncing through a
// short-lived descriptor.
func (f *File) Fsync(ctx context.Context, _ *fuse.FsyncRequest) error {
	fileLogger.Debug("Syncing file %q", f.path.String())
	fd, err := f.fs.host.OpenFile(ctx, f.full(), driver.ModeRead)
	if err != nil {
		return ToFuseError(err)
	}
	defer func() {
		if err := f.fs.host.Close(ctx, fd); err != nil {
			fileLogger.Warn("Failed to close %q after fsync: %v", f.path.String(), err)
		}
	}()
	if err := f.fs.host.Fsync(ctx, fd); err != nil {
		return ToFuseError(NewFSError(OpFsync, f.path.String(), err))
	}
	return nil
}

// FileHandle represents an open file handle.
// It wraps a host descriptor opened for the handle's lifetime.
type FileHandle struct {
	fs   *PassFS
	fd   *host.FileDescriptor
	path string // For logging purposes
}

func newFileHandle(pfs *PassFS, path *SourcePath, fd *host.FileDescriptor) *FileHandle {
	return &FileHandle{fs: pfs, fd: fd, path: path.String()}
}

// Read implements the HandleReader interface, reading data from the file.
func (fh *FileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fileLogger.Trace("Reading %d bytes from file %q at offset %d",
		req.Size, fh.path, req.Offset)

	buf := make([]byte, req.Size)
	n, err := fh.fs.host.ReadAt(ctx, fh.fd, buf, req.Offset)
	if err != nil {
		fileLogger.Error("Failed to read from file: %v", err)
		return ToFuseError(err)
	}

	resp.Data = buf[:n]
	fileLogger.Trace("Successfully read %d bytes", n)
	return nil
}

// Write implements the HandleWriter interface, writing data to the file.
func (fh *FileHandle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	fileLogger.Trace("Writing %d bytes to file %q at offset %d",
		len(req.Data), fh.path, req.Offset)

	n, err := fh.fs.host.WriteAt(ctx, fh.fd, req.Data, req.Offset)
	resp.Size = n
	if err != nil {
		fileLogger.Error("Failed to write to file: %v", err)
		return ToFuseError(err)
	}
	return nil
}

// Flush implements the HandleFlusher interface. Writes go straight to the
// host, so there is nothing buffered to flush.
func (fh *FileHandle) Flush(_ context.Context, _ *fuse.FlushRequest) error {
	return nil
}

// Release implements the HandleReleaser interface, closing the file handle.
func (fh *FileHandle) Release(ctx context.Context, _ *fuse.ReleaseRequest) error {
	fileLogger.Debug("Closing file %q", fh.path)
	return ToFuseError(fh.fs.host.Close(ctx, fh.fd))
}
