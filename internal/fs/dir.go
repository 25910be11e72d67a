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
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// Dir represents a directory of the source tree.
type Dir struct {
	node
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
func (d *Dir) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q in directory %q", name, d.path.String())
	childPath, err := d.path.Child(name)
	if err != nil {
		return nil, ToFuseError(err)
	}

	st, err := d.fs.host.Lstat(ctx, childPath.FullPath(d.fs.sourceDir))
	if err != nil {
		dirLogger.Debug("Path not found: %q: %v", childPath.String(), err)
		return nil, ToFuseError(err)
	}
	return d.fs.child(childPath, st), nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	dirLogger.Debug("Reading directory contents: %q", d.path.String())

	dd, err := d.fs.host.OpenDir(ctx, d.full())
	if err != nil {
		dirLogger.Error("Failed to open directory %q: %v", d.path.String(), err)
		return nil, ToFuseError(err)
	}
	defer func() {
		if err := d.fs.host.Close(ctx, dd); err != nil {
			dirLogger.Warn("Failed to close directory %q: %v", d.path.String(), err)
		}
	}()

	// Add standard entries
	entries := []fuse.Dirent{
		{Name: ".", Type: fuse.DT_Dir},
		{Name: "..", Type: fuse.DT_Dir},
	}

	for entry, err := range d.fs.host.List(ctx, dd) {
		if err != nil {
			dirLogger.Error("Failed to list directory %q: %v", d.path.String(), err)
			return nil, ToFuseError(err)
		}
		dirLogger.Trace("Found entry: %q", entry.Name)
		entries = append(entries, fuse.Dirent{
			Name: entry.Name,
			Type: direntType(entry),
		})
	}

	dirLogger.Debug("Directory %q contains %d entries", d.path.String(), len(entries))
	return entries, nil
}

func direntType(entry driver.DirectoryEntry) fuse.DirentType {
	switch {
	case entry.IsDirectory:
		return fuse.DT_Dir
	case entry.IsSymlink:
		return fuse.DT_Link
	case entry.IsFile:
		return fuse.DT_File
	default:
		return fuse.DT_Unknown
	}
}

// Mkdir implements the NodeMkdirer interface, creating the directory on the host.
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	dirLogger.Info("Creating new directory %q in %q", req.Name, d.path.String())

	childPath, err := d.path.Child(req.Name)
	if err != nil {
		return nil, ToFuseError(err)
	}
	if err := d.fs.writable(OpMkdir, childPath); err != nil {
		return nil, ToFuseError(err)
	}

	full := childPath.FullPath(d.fs.sourceDir)
	if err := d.fs.host.Mkdir(ctx, full); err != nil {
		dirLogger.Warn("Failed to create directory %q: %v", childPath.String(), err)
		return nil, ToFuseError(err)
	}
	if err := d.fs.host.Chmod(ctx, full, req.Mode.Perm()&^req.Umask.Perm()); err != nil {
		dirLogger.Warn("Failed to set mode on %q: %v", childPath.String(), err)
		return nil, ToFuseError(err)
	}

	st, err := d.fs.host.Lstat(ctx, full)
	if err != nil {
		return nil, ToFuseError(err)
	}

	dirLogger.Info("Successfully created directory: %s", childPath.String())
	return d.fs.child(childPath, st), nil
}

// Create implements the NodeCreater interface, creating and opening a file.
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	dirLogger.Info("Creating file %q in %q (flags=%v)", req.Name, d.path.String(), req.Flags)

	childPath, err := d.path.Child(req.Name)
	if err != nil {
		return nil, nil, ToFuseError(err)
	}
	if err := d.fs.writable(OpCreate, childPath); err != nil {
		return nil, nil, ToFuseError(err)
	}

	full := childPath.FullPath(d.fs.sourceDir)
	mode := openMode(req.Flags) | driver.ModeCreate

	// Only a file this call created gets the requested permissions.
	created := true
	fd, err := d.fs.host.OpenFile(ctx, full, mode|driver.ModeExclusive)
	if err != nil && host.KindOf(err) == host.KindExists && req.Flags&fuse.OpenExclusive == 0 {
		created = false
		fd, err = d.fs.host.OpenFile(ctx, full, mode)
	}
	if err != nil {
		dirLogger.Warn("Failed to create file %q: %v", childPath.String(), err)
		return nil, nil, ToFuseError(err)
	}

	if created {
		if err := d.fs.host.Chmod(ctx, full, req.Mode.Perm()&^req.Umask.Perm()); err != nil {
			_ = d.fs.host.Close(ctx, fd)
			return nil, nil, ToFuseError(err)
		}
	}

	st, err := d.fs.host.Lstat(ctx, full)
	if err != nil {
		_ = d.fs.host.Close(ctx, fd)
		return nil, nil, ToFuseError(err)
	}
	d.fs.fillAttr(st, &resp.Attr)
	resp.Flags |= fuse.OpenDirectIO

	dirLogger.Info("Successfully created file: %s", childPath.String())
	return d.fs.child(childPath, st), newFileHandle(d.fs, childPath, fd), nil
}

// Remove implements the NodeRemover interface, removing a file or directory.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	dirLogger.Info("Removing %q from directory %q (isDir=%v)",
		req.Name, d.path.String(), req.Dir)

	childPath, err := d.path.Child(req.Name)
	if err != nil {
		return ToFuseError(err)
	}
	if err := d.fs.writable(OpRemove, childPath); err != nil {
		return ToFuseError(err)
	}

	full := childPath.FullPath(d.fs.sourceDir)
	if req.Dir {
		err = d.fs.host.Rmdir(ctx, full)
	} else {
		err = d.fs.host.Unlink(ctx, full)
	}
	if err != nil {
		dirLogger.Warn("Failed to remove %q: %v", childPath.String(), err)
		return ToFuseError(err)
	}

	dirLogger.Info("Successfully removed %q", childPath.String())
	return nil
}

// Rename implements the NodeRenamer interface, renaming/moving a file or directory.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	dirLogger.Info("Renaming %q to %q", req.OldName, req.NewName)

	target, ok := newDir.(*Dir)
	if !ok {
		dirLogger.Error("Target is not a valid directory type")
		return ToFuseError(NewFSError(OpRename, req.NewName, ErrInvalidTarget))
	}

	oldPath, err := d.path.Child(req.OldName)
	if err != nil {
		return ToFuseError(err)
	}
	newPath, err := target.path.Child(req.NewName)
	if err != nil {
		return ToFuseError(err)
	}
	if err := d.fs.writable(OpRename, oldPath); err != nil {
		return ToFuseError(err)
	}

	dirLogger.Debug("Rename operation: %q -> %q", oldPath.String(), newPath.String())
	if err := d.fs.host.Rename(ctx, oldPath.FullPath(d.fs.sourceDir), newPath.FullPath(d.fs.sourceDir)); err != nil {
		dirLogger.Warn("Rename failed: %v", err)
		return ToFuseError(err)
	}

	dirLogger.Info("Successfully completed rename operation")
	return nil
}

// Symlink implements the NodeSymlinker interface. The target is stored
// verbatim and may point anywhere.
func (d *Dir) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	dirLogger.Info("Creating symlink %q -> %q in %q", req.NewName, req.Target, d.path.String())

	linkPath, err := d.path.Child(req.NewName)
	if err != nil {
		return nil, ToFuseError(err)
	}
	if err := d.fs.writable(OpSymlink, linkPath); err != nil {
		return nil, ToFuseError(err)
	}

	full := linkPath.FullPath(d.fs.sourceDir)
	if err := d.fs.host.Symlink(ctx, req.Target, full); err != nil {
		return nil, ToFuseError(err)
	}
	st, err := d.fs.host.Lstat(ctx, full)
	if err != nil {
		return nil, ToFuseError(err)
	}
	return d.fs.child(linkPath, st), nil
}

// Link implements the NodeLinker interface, creating a hard link to old.
func (d *Dir) Link(ctx context.Context, req *fuse.LinkRequest, old fusefs.Node) (fusefs.Node, error) {
	dirLogger.Info("Creating hard link %q in %q", req.NewName, d.path.String())

	var oldPath *SourcePath
	switch n := old.(type) {
	case *File:
		oldPath = n.path
	case *Symlink:
		oldPath = n.path
	default:
		dirLogger.Warn("Cannot hard link node of type %T", old)
		return nil, ToFuseError(NewFSError(OpLink, req.NewName, ErrInvalidTarget))
	}

	linkPath, err := d.path.Child(req.NewName)
	if err != nil {
		return nil, ToFuseError(err)
	}
	if err := d.fs.writable(OpLink, linkPath); err != nil {
		return nil, ToFuseError(err)
	}

	full := linkPath.FullPath(d.fs.sourceDir)
	if err := d.fs.host.Link(ctx, oldPath.FullPath(d.fs.sourceDir), full); err != nil {
		return nil, ToFuseError(err)
	}
	st, err := d.fs.host.Lstat(ctx, full)
	if err != nil {
		return nil, ToFuseError(err)
	}
	return d.fs.child(linkPath, st), nil
}
