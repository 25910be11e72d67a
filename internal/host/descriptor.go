package host

import (
	"os"
	"sync/atomic"

	"hostfs/internal/driver"
)

// Descriptor is an open file or directory. Only *FileDescriptor and
// *DirectoryDescriptor implement it.
type Descriptor interface {
	// Path returns the path the descriptor was opened with.
	Path() string
	descriptor()
}

// FileDescriptor is an open regular file. It is invalidated by Close and
// must not be used afterwards; operations on a closed descriptor fail with
// ErrInvalidDescriptor.
type FileDescriptor struct {
	id     int
	path   string
	mode   driver.Mode
	file   *os.File
	closed atomic.Bool
}

func newFileDescriptor(f *os.File, path string, mode driver.Mode) *FileDescriptor {
	return &FileDescriptor{
		id:   int(f.Fd()),
		path: path,
		mode: mode,
		file: f,
	}
}

// ID returns the host's numeric handle. The number may be reused by the host
// once the descriptor is closed.
func (fd *FileDescriptor) ID() int {
	if fd == nil {
		return -1
	}
	return fd.id
}

func (fd *FileDescriptor) Path() string {
	if fd == nil {
		return ""
	}
	return fd.path
}

// Mode returns the mode the file was opened with.
func (fd *FileDescriptor) Mode() driver.Mode {
	if fd == nil {
		return 0
	}
	return fd.mode
}

// Closed reports whether Close has been called on fd.
func (fd *FileDescriptor) Closed() bool {
	return fd == nil || fd.closed.Load()
}

func (fd *FileDescriptor) descriptor() {}

// live returns the open file, or ErrInvalidDescriptor if fd is nil or closed.
func (fd *FileDescriptor) live(op string) (*os.File, error) {
	if fd == nil || fd.file == nil {
		return nil, newError(op, "", ErrInvalidDescriptor)
	}
	if fd.closed.Load() {
		return nil, newError(op, fd.path, ErrInvalidDescriptor)
	}
	return fd.file, nil
}

// release marks fd closed and closes the host handle. Only the first caller
// reaches the host; the rest get ErrInvalidDescriptor.
func (fd *FileDescriptor) release() error {
	if fd == nil || fd.file == nil {
		return newError(OpClose, "", ErrInvalidDescriptor)
	}
	if !fd.closed.CompareAndSwap(false, true) {
		return newError(OpClose, fd.path, ErrInvalidDescriptor)
	}
	return fd.file.Close()
}

// DirectoryDescriptor is an open directory stream. Enumeration is forward
// only; once exhausted the stream stays exhausted.
type DirectoryDescriptor struct {
	path   string
	dir    *os.File
	closed atomic.Bool
}

func (dd *DirectoryDescriptor) Path() string {
	if dd == nil {
		return ""
	}
	return dd.path
}

// Closed reports whether Close has been called on dd.
func (dd *DirectoryDescriptor) Closed() bool {
	return dd == nil || dd.closed.Load()
}

func (dd *DirectoryDescriptor) descriptor() {}

func (dd *DirectoryDescriptor) live(op string) (*os.File, error) {
	if dd == nil || dd.dir == nil {
		return nil, newError(op, "", ErrInvalidDescriptor)
	}
	if dd.closed.Load() {
		return nil, newError(op, dd.path, ErrInvalidDescriptor)
	}
	return dd.dir, nil
}

func (dd *DirectoryDescriptor) release() error {
	if dd == nil || dd.dir == nil {
		return newError(OpClose, "", ErrInvalidDescriptor)
	}
	if !dd.closed.CompareAndSwap(false, true) {
		return newError(OpClose, dd.path, ErrInvalidDescriptor)
	}
	return dd.dir.Close()
}
