package host

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, KindNone},
		{"unrecognized", newError(OpClose, "", ErrUnrecognizedDescriptor), KindBadDescriptor},
		{"invalid descriptor", newError(OpRead, "/f", ErrInvalidDescriptor), KindBadDescriptor},
		{"os closed", os.ErrClosed, KindBadDescriptor},
		{"invalid mode", newError(OpOpen, "/f", ErrInvalidMode), KindInvalid},
		{"path error enoent", &os.PathError{Op: "stat", Path: "/x", Err: unix.ENOENT}, KindNotFound},
		{"link error exdev", &os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: unix.EXDEV}, KindCrossDevice},
		{"wrapped eacces", fmt.Errorf("ctx: %w", unix.EACCES), KindPermission},
		{"eexist", unix.EEXIST, KindExists},
		{"enotdir", unix.ENOTDIR, KindNotDirectory},
		{"eisdir", unix.EISDIR, KindIsDirectory},
		{"enotempty", unix.ENOTEMPTY, KindNotEmpty},
		{"ebadf", unix.EBADF, KindBadDescriptor},
		{"einval", unix.EINVAL, KindInvalid},
		{"eio", unix.EIO, KindIO},
		{"fs not exist", fs.ErrNotExist, KindNotFound},
		{"fs permission", fs.ErrPermission, KindPermission},
		{"generic", errors.New("boom"), KindIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	withPath := &Error{Op: OpRead, Path: "/tmp/f", Err: ErrInvalidDescriptor}
	assert.Equal(t, "operation read on /tmp/f failed: invalid descriptor", withPath.Error())

	withoutPath := &Error{Op: OpClose, Err: ErrUnrecognizedDescriptor}
	assert.Equal(t, "operation close failed: unrecognized descriptor", withoutPath.Error())
	assert.True(t, errors.Is(withoutPath, ErrUnrecognizedDescriptor))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not found", KindNotFound.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
