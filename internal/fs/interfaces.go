// internal/fs/interfaces.go

package fs

import (
	"context"
	"iter"
	"os"
	"time"

	"bazil.org/fuse/fs"

	"hostfs/internal/driver"
	"hostfs/internal/host"
)

// Host is the set of adapter operations the passthrough relies on.
// *host.Adapter satisfies it.
type Host interface {
	Lstat(ctx context.Context, path string) (driver.Stats, error)
	Chmod(ctx context.Context, path string, mode os.FileMode) error
	Chown(ctx context.Context, path string, uid, gid int) error
	Chtimes(ctx context.Context, path string, atime, mtime time.Time) error
	Truncate(ctx context.Context, path string, size int64) error
	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Link(ctx context.Context, target, path string) error
	Symlink(ctx context.Context, target, path string) error
	Readlink(ctx context.Context, path string) (string, error)
	Unlink(ctx context.Context, path string) error

	OpenFile(ctx context.Context, path string, mode driver.Mode) (*host.FileDescriptor, error)
	OpenDir(ctx context.Context, path string) (*host.DirectoryDescriptor, error)
	List(ctx context.Context, dd *host.DirectoryDescriptor) iter.Seq2[driver.DirectoryEntry, error]
	Close(ctx context.Context, d host.Descriptor) error
	ReadAt(ctx context.Context, fd *host.FileDescriptor, p []byte, off int64) (int, error)
	WriteAt(ctx context.Context, fd *host.FileDescriptor, buf []byte, off int64) (int, error)
	Fsync(ctx context.Context, fd *host.FileDescriptor) error
}

var _ Host = (*host.Adapter)(nil)

// Node represents a filesystem node (file, directory or symlink)
type Node interface {
	fs.Node
}

// Directory represents a passthrough directory
type Directory interface {
	Node
	fs.NodeSetattrer
	fs.NodeStringLookuper
	fs.HandleReadDirAller
	fs.NodeMkdirer
	fs.NodeCreater
	fs.NodeRemover
	fs.NodeRenamer
	fs.NodeSymlinker
	fs.NodeLinker
}

// FileInterface represents a passthrough regular file
type FileInterface interface {
	Node
	fs.NodeSetattrer
	fs.NodeOpener
	fs.NodeFsyncer
}

// SymlinkInterface represents a passthrough symbolic link
type SymlinkInterface interface {
	Node
	fs.NodeReadlinker
}

// FileHandleInterface represents an open file handle
type FileHandleInterface interface {
	fs.Handle
	fs.HandleReader
	fs.HandleWriter
	fs.HandleFlusher
	fs.HandleReleaser
}

var (
	_ Directory           = (*Dir)(nil)
	_ FileInterface       = (*File)(nil)
	_ SymlinkInterface    = (*Symlink)(nil)
	_ FileHandleInterface = (*FileHandle)(nil)
)
