// Package driver defines the data shapes shared by every filesystem driver:
// metadata snapshots, directory entries and open modes.
package driver

import (
	"os"
	"time"
)

// Stats is a snapshot of a node's metadata taken at call time. It is a plain
// value; a later stat of the same node may differ.
type Stats struct {
	IsFile      bool
	IsDirectory bool
	IsSymlink   bool

	Size  int64
	Mode  os.FileMode
	Uid   uint32
	Gid   uint32
	Nlink uint64
	Ino   uint64

	// Ctime is the host's status change time.
	Ctime time.Time
	Atime time.Time
	Mtime time.Time
}

// DirectoryEntry is a single record produced by a directory listing.
// Symbolic links report neither IsFile nor IsDirectory.
type DirectoryEntry struct {
	Name        string
	IsFile      bool
	IsDirectory bool
	IsSymlink   bool
}

// EntryFromMode classifies a listing record by its type bits.
func EntryFromMode(name string, mode os.FileMode) DirectoryEntry {
	return DirectoryEntry{
		Name:        name,
		IsFile:      mode.IsRegular(),
		IsDirectory: mode.IsDir(),
		IsSymlink:   mode&os.ModeSymlink != 0,
	}
}
