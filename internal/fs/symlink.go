package fs

import (
	"context"

	"bazil.org/fuse"
)

// Symlink represents a symbolic link of the source tree. Its target is
// returned as stored and never resolved by the filesystem.
type Symlink struct {
	node
}

// Readlink implements the NodeReadlinker interface.
func (s *Symlink) Readlink(ctx context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	nodeLogger.Trace("Reading link %q", s.path.String())
	target, err := s.fs.host.Readlink(ctx, s.full())
	if err != nil {
		return "", ToFuseError(err)
	}
	return target, nil
}
