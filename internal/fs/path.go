package fs

import (
	"path/filepath"
	"strings"

	"hostfs/internal/logging"
)

var (
	pathLogger = logging.GetLogger().WithPrefix("path")
)

// SourcePath represents a path in the source directory being passed through.
// All paths are stored relative to the source root directory.
type SourcePath struct {
	// relative path from source root, "." for the root itself
	path string
}

// NewSourcePath creates a new SourcePath instance.
// It cleans the path and ensures it's relative to the source root.
func NewSourcePath(path string) *SourcePath {
	cleaned := filepath.Clean("/" + path)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		cleaned = "."
	}
	pathLogger.Trace("Creating new source path: %q -> %q", path, cleaned)
	return &SourcePath{path: cleaned}
}

// String returns the string representation of the path
func (sp *SourcePath) String() string {
	return sp.path
}

// FullPath returns the absolute path by joining with the source root
func (sp *SourcePath) FullPath(sourceRoot string) string {
	full := filepath.Join(sourceRoot, sp.path)
	pathLogger.Trace("Getting full path: %q + %q -> %q", sourceRoot, sp.path, full)
	return full
}

// Child returns the path of the entry called name inside sp. The name must
// be a single path element; ".." would leave sp and is refused.
func (sp *SourcePath) Child(name string) (*SourcePath, error) {
	switch {
	case name == "..":
		pathLogger.Warn("Rejecting parent reference under %q", sp.path)
		return nil, NewFSError(OpLookup, sp.path, ErrEscapesRoot)
	case name == "" || name == "." || strings.ContainsRune(name, filepath.Separator):
		pathLogger.Debug("Rejecting entry name %q under %q", name, sp.path)
		return nil, NewFSError(OpLookup, sp.path, ErrInvalidName)
	}
	return &SourcePath{path: filepath.Join(sp.path, name)}, nil
}
