package host

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"

	"golang.org/x/sys/unix"

	"hostfs/internal/driver"
)

// OpenDir opens a directory stream. Paths that are not directories fail
// with the host's not-a-directory error.
func (a *Adapter) OpenDir(ctx context.Context, path string) (*DirectoryDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hostLogger.Debug("opendir %q", path)

	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, err
	}
	return &DirectoryDescriptor{path: path, dir: f}, nil
}

// List enumerates the entries of dd lazily, one host entry at a time. The
// sequence ends silently at the end of the stream and cannot be restarted:
// listing the same descriptor again continues where the previous listing
// stopped. "." and ".." are never produced.
//
// If dd is nil or closed the sequence yields ErrInvalidDescriptor once. A
// host failure mid-stream is yielded once and ends the sequence.
func (a *Adapter) List(ctx context.Context, dd *DirectoryDescriptor) iter.Seq2[driver.DirectoryEntry, error] {
	return func(yield func(driver.DirectoryEntry, error) bool) {
		dir, err := dd.live(OpList)
		if err != nil {
			yield(driver.DirectoryEntry{}, err)
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(driver.DirectoryEntry{}, err)
				return
			}

			// One entry per call keeps the stream position exact when the
			// consumer stops early.
			entries, err := dir.ReadDir(1)
			for _, e := range entries {
				hostLogger.Trace("list %q: %q", dd.path, e.Name())
				if !yield(driver.EntryFromMode(e.Name(), e.Type()), nil) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(driver.DirectoryEntry{}, err)
				}
				return
			}
			if len(entries) == 0 {
				return
			}
		}
	}
}

// ReadDir drains dd and returns every remaining entry.
func (a *Adapter) ReadDir(ctx context.Context, dd *DirectoryDescriptor) ([]driver.DirectoryEntry, error) {
	var entries []driver.DirectoryEntry
	for entry, err := range a.List(ctx, dd) {
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
