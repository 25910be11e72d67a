package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hostfs/internal/host"
	"hostfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

// OwnerFromHost leaves node ownership as reported by the host.
const OwnerFromHost = -1

// Options controls how the source directory is exposed.
type Options struct {
	UID                int // OwnerFromHost keeps host ownership
	GID                int // OwnerFromHost keeps host ownership
	ReadOnly           bool
	AllowOther         bool
	DefaultPermissions bool
	AsyncRead          bool
}

// PassFS exposes a host directory through FUSE. Every request is served
// by the host adapter against the matching path under sourceDir.
type PassFS struct {
	sourceDir  string     // Root directory of source files
	host       Host       // Adapter all node operations go through
	opts       Options    // Mount and ownership options
	conn       *fuse.Conn // FUSE connection
	mountPoint string
	served     chan error
	mu         sync.Mutex // Protects conn and mountPoint
}

// NewPassFS creates a passthrough filesystem rooted at sourceDir.
func NewPassFS(sourceDir string, h Host, opts Options) (*PassFS, error) {
	vfsLogger.Info("Creating new passthrough filesystem")
	vfsLogger.Debug("Source directory: %s", sourceDir)

	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", abs)
	}

	if h == nil {
		h = host.New()
	}

	pfs := &PassFS{
		sourceDir: abs,
		host:      h,
		opts:      opts,
	}

	vfsLogger.Info("Passthrough filesystem created successfully")
	return pfs, nil
}

// SourceDir returns the absolute directory being passed through.
func (pfs *PassFS) SourceDir() string {
	return pfs.sourceDir
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (pfs *PassFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{node{fs: pfs, path: NewSourcePath("")}}, nil
}

// owner applies the configured uid/gid override to host ownership.
func (pfs *PassFS) owner(uid, gid uint32) (uint32, uint32) {
	if pfs.opts.UID != OwnerFromHost {
		uid = safeIntToUint32(pfs.opts.UID)
	}
	if pfs.opts.GID != OwnerFromHost {
		gid = safeIntToUint32(pfs.opts.GID)
	}
	return uid, gid
}

func (pfs *PassFS) mountOptions() []fuse.MountOption {
	mountOpts := []fuse.MountOption{
		fuse.FSName("hostfs"),
		fuse.Subtype("hostfs"),
	}
	if pfs.opts.AllowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}
	if pfs.opts.DefaultPermissions {
		mountOpts = append(mountOpts, fuse.DefaultPermissions())
	}
	if pfs.opts.AsyncRead {
		mountOpts = append(mountOpts, fuse.AsyncRead())
	}
	if pfs.opts.ReadOnly {
		mountOpts = append(mountOpts, fuse.ReadOnly())
	}
	return mountOpts
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts the filesystem and serves it in the background until
// Unmount is called. Wait blocks until serving stops.
func (pfs *PassFS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting passthrough filesystem")
	vfsLogger.Debug("Mount point: %s", mountPoint)
	vfsLogger.Debug("Source directory: %s", pfs.sourceDir)
	vfsLogger.Debug("UID: %d, GID: %d, read-only: %v", pfs.opts.UID, pfs.opts.GID, pfs.opts.ReadOnly)

	pfs.mu.Lock()
	defer pfs.mu.Unlock()
	if pfs.conn != nil {
		return fmt.Errorf("already mounted at %s", pfs.mountPoint)
	}

	// Check if source directory is readable
	if _, err := os.ReadDir(pfs.sourceDir); err != nil {
		vfsLogger.Error("Cannot read source directory: %v", err)
		return fmt.Errorf("source directory not readable: %w", err)
	}

	c, err := fuse.Mount(mountPoint, pfs.mountOptions()...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	pfs.conn = c
	pfs.mountPoint = mountPoint
	pfs.served = make(chan error, 1)

	go func(c *fuse.Conn, served chan<- error) {
		err := fusefs.Serve(c, pfs)
		if err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
		}
		served <- err
		close(served)
	}(c, pfs.served)

	// Wait for mount to be ready
	if err := waitForMount(mountPoint); err != nil {
		_ = fuse.Unmount(mountPoint)
		c.Close()
		pfs.conn = nil
		vfsLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// Wait blocks until the FUSE server returns, which happens after the
// mount point is unmounted.
func (pfs *PassFS) Wait() error {
	pfs.mu.Lock()
	served := pfs.served
	pfs.mu.Unlock()
	if served == nil {
		return errors.New("filesystem not mounted")
	}
	return <-served
}

// Unmount cleanly unmounts the filesystem and closes the connection.
func (pfs *PassFS) Unmount() error {
	pfs.mu.Lock()
	defer pfs.mu.Unlock()
	if pfs.conn == nil {
		return nil
	}

	vfsLogger.Info("Unmounting filesystem from: %s", pfs.mountPoint)
	if err := fuse.Unmount(pfs.mountPoint); err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	err := pfs.conn.Close()
	pfs.conn = nil
	vfsLogger.Info("Unmount completed successfully")
	return err
}

// EnableDebug routes bazil.org/fuse protocol messages to the trace log.
func EnableDebug() {
	fuseLogger := logging.GetLogger().WithPrefix("fuse")
	fuse.Debug = func(msg interface{}) {
		fuseLogger.Trace("%v", msg)
	}
}

// Unmount detaches a hostfs mount owned by another process.
func Unmount(mountPoint string) error {
	vfsLogger.Info("Unmounting filesystem from: %s", mountPoint)
	return fuse.Unmount(mountPoint)
}
