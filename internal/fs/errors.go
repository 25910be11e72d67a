// Package fs provides filesystem implementations.
//
// This file contains error types and error handling utilities.
package fs

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"hostfs/internal/host"
	"hostfs/internal/logging"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrInvalidName indicates a name that is empty, "." or "..", or contains a separator
	ErrInvalidName = errors.New("invalid entry name")

	// ErrEscapesRoot indicates a path that would leave the source directory
	ErrEscapesRoot = errors.New("path escapes source root")

	// ErrReadOnly indicates attempt to modify read-only filesystem
	ErrReadOnly = errors.New("filesystem is read-only")

	// ErrInvalidTarget indicates a rename or link across node types the
	// passthrough does not own
	ErrInvalidTarget = errors.New("invalid target node")
)

// Error wraps passthrough errors with context about the operation and
// affected path to provide more detailed error information.
type Error struct {
	Op   string // Operation that failed (e.g., "lookup", "readdir")
	Path string // Affected path, relative to the source root
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewFSError creates a new Error with the given operation, path, and underlying error
func NewFSError(op string, path string, err error) *Error {
	fsErr := &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
	errLogger.Debug("Created new FSError: %v", fsErr)
	return fsErr
}

// ToFuseError converts an error to the errno FUSE should report. Host
// errnos pass through unchanged; everything else is classified.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	var fsErr *Error
	if errors.As(err, &fsErr) {
		errLogger.Trace("Converting FSError to FUSE error: %v", fsErr)

		switch {
		case errors.Is(fsErr.Err, ErrInvalidName), errors.Is(fsErr.Err, ErrEscapesRoot):
			return syscall.EINVAL
		case errors.Is(fsErr.Err, ErrReadOnly):
			return syscall.EROFS
		case errors.Is(fsErr.Err, ErrInvalidTarget):
			return syscall.EXDEV
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return syscall.EINTR
	}

	errLogger.Trace("Classifying error for FUSE: %v", err)
	switch host.KindOf(err) {
	case host.KindNotFound:
		return syscall.ENOENT
	case host.KindPermission:
		return syscall.EACCES
	case host.KindExists:
		return syscall.EEXIST
	case host.KindNotDirectory:
		return syscall.ENOTDIR
	case host.KindIsDirectory:
		return syscall.EISDIR
	case host.KindNotEmpty:
		return syscall.ENOTEMPTY
	case host.KindCrossDevice:
		return syscall.EXDEV
	case host.KindInvalid:
		return syscall.EINVAL
	case host.KindBadDescriptor:
		return syscall.EBADF
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}

// Common operation names for consistent logging and error reporting
const (
	OpLookup  = "lookup"  // Looking up a path
	OpReadDir = "readdir" // Reading directory contents
	OpOpen    = "open"    // Opening a file
	OpCreate  = "create"  // Creating a new file
	OpMkdir   = "mkdir"   // Creating a new directory
	OpRemove  = "remove"  // Removing a file or directory
	OpRename  = "rename"  // Renaming/moving a file or directory
	OpSymlink = "symlink" // Creating a symbolic link
	OpLink    = "link"    // Creating a hard link
	OpSetattr = "setattr" // Setting file attributes
	OpWrite   = "write"   // Writing through a handle
	OpFsync   = "fsync"   // Flushing a file to storage
)
