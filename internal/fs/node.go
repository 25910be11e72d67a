package fs

import (
	"context"
	"time"

	"hostfs/internal/driver"
	"hostfs/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	nodeLogger = logging.GetLogger().WithPrefix("node")
)

// node carries what every passthrough node needs: the filesystem and the
// node's path under the source root.
type node struct {
	fs   *PassFS
	path *SourcePath
}

func (n *node) full() string {
	return n.path.FullPath(n.fs.sourceDir)
}

// Attr implements the Node interface from a fresh lstat of the source.
func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	nodeLogger.Trace("Getting attributes for %q", n.path.String())
	st, err := n.fs.host.Lstat(ctx, n.full())
	if err != nil {
		nodeLogger.Debug("Failed to stat %q: %v", n.path.String(), err)
		return ToFuseError(err)
	}
	n.fs.fillAttr(st, a)
	return nil
}

func (pfs *PassFS) fillAttr(st driver.Stats, a *fuse.Attr) {
	a.Inode = st.Ino
	a.Mode = st.Mode
	a.Size = safeInt64ToUint64(st.Size)
	a.Blocks = blocks(st.Size)
	a.BlockSize = 4096
	a.Nlink = safeUint64ToUint32(st.Nlink)
	a.Atime = st.Atime
	a.Mtime = st.Mtime
	a.Ctime = st.Ctime
	a.Uid, a.Gid = pfs.owner(st.Uid, st.Gid)
}

// child builds the node for name inside dir from its lstat result.
func (pfs *PassFS) child(path *SourcePath, st driver.Stats) fusefs.Node {
	n := node{fs: pfs, path: path}
	switch {
	case st.IsDirectory:
		return &Dir{n}
	case st.IsSymlink:
		return &Symlink{n}
	default:
		return &File{n}
	}
}

func (pfs *PassFS) writable(op string, path *SourcePath) error {
	if pfs.opts.ReadOnly {
		nodeLogger.Warn("Rejecting %s on read-only mount: %q", op, path.String())
		return NewFSError(op, path.String(), ErrReadOnly)
	}
	return nil
}

// Setattr applies each valid attribute change to the source, then
// reports the resulting attributes.
func (n *node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	nodeLogger.Debug("Setting attributes on %q (valid=%v)", n.path.String(), req.Valid)
	if err := n.fs.writable(OpSetattr, n.path); err != nil {
		return ToFuseError(err)
	}
	full := n.full()

	if req.Valid.Mode() {
		if err := n.fs.host.Chmod(ctx, full, req.Mode); err != nil {
			return ToFuseError(err)
		}
	}

	if req.Valid.Uid() || req.Valid.Gid() {
		uid, gid := -1, -1
		if req.Valid.Uid() {
			uid = int(req.Uid)
		}
		if req.Valid.Gid() {
			gid = int(req.Gid)
		}
		if err := n.fs.host.Chown(ctx, full, uid, gid); err != nil {
			return ToFuseError(err)
		}
	}

	if req.Valid.Size() {
		if err := n.fs.host.Truncate(ctx, full, safeUint64ToInt64(req.Size)); err != nil {
			return ToFuseError(err)
		}
	}

	if req.Valid.Atime() || req.Valid.AtimeNow() || req.Valid.Mtime() || req.Valid.MtimeNow() {
		// A zero time leaves that timestamp untouched.
		var atime, mtime time.Time
		now := time.Now()
		switch {
		case req.Valid.AtimeNow():
			atime = now
		case req.Valid.Atime():
			atime = req.Atime
		}
		switch {
		case req.Valid.MtimeNow():
			mtime = now
		case req.Valid.Mtime():
			mtime = req.Mtime
		}
		if err := n.fs.host.Chtimes(ctx, full, atime, mtime); err != nil {
			return ToFuseError(err)
		}
	}

	return n.Attr(ctx, &resp.Attr)
}
