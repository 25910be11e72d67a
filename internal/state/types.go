// Package state persists the table of active hostfs mounts.
package state

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// CurrentVersion is the mount table format written by this build.
const CurrentVersion = 1

// ErrMountNotFound is returned when no entry matches a mount point.
var ErrMountNotFound = errors.New("mount not found")

// MountEntry describes one active mount.
type MountEntry struct {
	MountPoint string    `yaml:"mount_point"`
	Source     string    `yaml:"source"`
	PID        int       `yaml:"pid"`
	MountedAt  time.Time `yaml:"mounted_at"`
	ReadOnly   bool      `yaml:"read_only,omitempty"`
}

// Alive reports whether the process serving the mount still exists.
func (e MountEntry) Alive() bool {
	if e.PID <= 0 {
		return false
	}
	err := unix.Kill(e.PID, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// MountTable is the on-disk document.
type MountTable struct {
	// Version for future compatibility
	Version int          `yaml:"version"`
	Mounts  []MountEntry `yaml:"mounts"`
}
