package driver

import (
	"errors"
	"fmt"
	"os"
)

// ErrInvalidMode is returned when an open mode string is not recognized.
var ErrInvalidMode = errors.New("invalid open mode")

// Mode selects the read/write/create/truncate semantics of an open call.
// Its value is a set of host open flags.
type Mode int

const (
	ModeRead      = Mode(os.O_RDONLY)
	ModeWrite     = Mode(os.O_WRONLY)
	ModeReadWrite = Mode(os.O_RDWR)
	ModeAppend    = Mode(os.O_APPEND)
	ModeCreate    = Mode(os.O_CREATE)
	ModeExclusive = Mode(os.O_EXCL)
	ModeTruncate  = Mode(os.O_TRUNC)
	ModeSync      = Mode(os.O_SYNC)

	accessMask = Mode(os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
)

var namedModes = map[string]Mode{
	"r":   ModeRead,
	"rs":  ModeRead | ModeSync,
	"r+":  ModeReadWrite,
	"rs+": ModeReadWrite | ModeSync,
	"w":   ModeWrite | ModeCreate | ModeTruncate,
	"wx":  ModeWrite | ModeCreate | ModeTruncate | ModeExclusive,
	"w+":  ModeReadWrite | ModeCreate | ModeTruncate,
	"wx+": ModeReadWrite | ModeCreate | ModeTruncate | ModeExclusive,
	"a":   ModeWrite | ModeAppend | ModeCreate,
	"ax":  ModeWrite | ModeAppend | ModeCreate | ModeExclusive,
	"a+":  ModeReadWrite | ModeAppend | ModeCreate,
	"ax+": ModeReadWrite | ModeAppend | ModeCreate | ModeExclusive,
}

// ParseMode converts a conventional mode string ("r", "w+", "ax" ...) into a Mode.
func ParseMode(s string) (Mode, error) {
	m, ok := namedModes[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Flags returns the host open flags.
func (m Mode) Flags() int {
	return int(m)
}

// Readable reports whether the mode permits reading.
func (m Mode) Readable() bool {
	acc := m & accessMask
	return acc == ModeRead || acc == ModeReadWrite
}

// Writable reports whether the mode permits writing.
func (m Mode) Writable() bool {
	acc := m & accessMask
	return acc == ModeWrite || acc == ModeReadWrite
}

// Creates reports whether opening with this mode may create the file.
func (m Mode) Creates() bool {
	return m&ModeCreate != 0
}

func (m Mode) String() string {
	for name, v := range namedModes {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("Mode(%#x)", int(m))
}
