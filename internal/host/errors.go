package host

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"hostfs/internal/driver"
)

var (
	// ErrUnrecognizedDescriptor is returned when a value passed as a
	// Descriptor is neither a *FileDescriptor nor a *DirectoryDescriptor.
	ErrUnrecognizedDescriptor = errors.New("unrecognized descriptor")

	// ErrInvalidDescriptor is returned when a descriptor is nil or has
	// already been closed.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrInvalidMode is returned when an open mode has no valid access mode.
	ErrInvalidMode = driver.ErrInvalidMode
)

// Error is an adapter-originated failure with the operation and path it
// concerns. Host errors are never wrapped in Error; they are returned as the
// host produced them.
type Error struct {
	Op   string // Operation that failed (e.g., "close", "read")
	Path string // Path the descriptor was opened with, if known
	Err  error  // One of the Err* sentinels
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, err error) *Error {
	e := &Error{Op: op, Path: path, Err: err}
	hostLogger.Debug("Adapter error: %v", e)
	return e
}

// Operation names used in errors and logs.
const (
	OpStat     = "stat"
	OpLstat    = "lstat"
	OpFstat    = "fstat"
	OpChmod    = "chmod"
	OpChown    = "chown"
	OpChtimes  = "chtimes"
	OpClose    = "close"
	OpMkdir    = "mkdir"
	OpRmdir    = "rmdir"
	OpOpen     = "open"
	OpOpendir  = "opendir"
	OpList     = "list"
	OpRead     = "read"
	OpWrite    = "write"
	OpFsync    = "fsync"
	OpTruncate = "truncate"
	OpRename   = "rename"
	OpLink     = "link"
	OpSymlink  = "symlink"
	OpReadlink = "readlink"
	OpUnlink   = "unlink"
	OpRealpath = "realpath"
	OpRemove   = "remove"
)

// Kind is a coarse classification of a filesystem failure.
type Kind int

const (
	KindNone Kind = iota
	KindIO
	KindNotFound
	KindPermission
	KindExists
	KindNotDirectory
	KindIsDirectory
	KindNotEmpty
	KindCrossDevice
	KindInvalid
	KindBadDescriptor
)

var kindNames = map[Kind]string{
	KindNone:          "none",
	KindIO:            "i/o error",
	KindNotFound:      "not found",
	KindPermission:    "permission denied",
	KindExists:        "already exists",
	KindNotDirectory:  "not a directory",
	KindIsDirectory:   "is a directory",
	KindNotEmpty:      "directory not empty",
	KindCrossDevice:   "cross-device link",
	KindInvalid:       "invalid argument",
	KindBadDescriptor: "bad descriptor",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindOf classifies err. It looks through wrapping, so both adapter errors
// and host errors (*os.PathError, *os.LinkError, raw errnos) are recognized.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, ErrInvalidDescriptor),
		errors.Is(err, ErrUnrecognizedDescriptor),
		errors.Is(err, os.ErrClosed):
		return KindBadDescriptor
	case errors.Is(err, ErrInvalidMode):
		return KindInvalid
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return kindOfErrno(errno)
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, fs.ErrExist):
		return KindExists
	case errors.Is(err, fs.ErrInvalid):
		return KindInvalid
	default:
		return KindIO
	}
}

func kindOfErrno(errno syscall.Errno) Kind {
	switch errno {
	case unix.ENOENT:
		return KindNotFound
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return KindPermission
	case unix.EEXIST:
		return KindExists
	case unix.ENOTDIR:
		return KindNotDirectory
	case unix.EISDIR:
		return KindIsDirectory
	case unix.ENOTEMPTY:
		return KindNotEmpty
	case unix.EXDEV:
		return KindCrossDevice
	case unix.EINVAL, unix.ENAMETOOLONG, unix.ELOOP:
		return KindInvalid
	case unix.EBADF:
		return KindBadDescriptor
	default:
		return KindIO
	}
}
