package host

import (
	"context"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"hostfs/internal/driver"
)

// Fstat returns a metadata snapshot of the open file.
func (a *Adapter) Fstat(ctx context.Context, fd *FileDescriptor) (driver.Stats, error) {
	if err := ctx.Err(); err != nil {
		return driver.Stats{}, err
	}
	f, err := fd.live(OpFstat)
	if err != nil {
		return driver.Stats{}, err
	}
	hostLogger.Trace("fstat %q", fd.path)

	var st unix.Stat_t
	err = control(f, func(sysfd int) error {
		return ignoringEINTR(func() error { return unix.Fstat(sysfd, &st) })
	})
	if err != nil {
		return driver.Stats{}, &os.PathError{Op: OpFstat, Path: fd.path, Err: err}
	}
	return statsFromUnix(&st), nil
}

func statsFromUnix(st *unix.Stat_t) driver.Stats {
	mode := fileMode(uint32(st.Mode))
	return driver.Stats{
		IsFile:      mode.IsRegular(),
		IsDirectory: mode.IsDir(),
		IsSymlink:   mode&os.ModeSymlink != 0,
		Size:        st.Size,
		Mode:        mode,
		Uid:         st.Uid,
		Gid:         st.Gid,
		Nlink:       uint64(st.Nlink),
		Ino:         st.Ino,
		Ctime:       timespecToTime(st.Ctim),
		Atime:       timespecToTime(st.Atim),
		Mtime:       timespecToTime(st.Mtim),
	}
}

func timespecToTime(ts unix.Timespec) time.Time {
	sec, nsec := ts.Unix()
	return time.Unix(sec, nsec)
}

// fileMode converts host st_mode bits to an os.FileMode.
func fileMode(m uint32) os.FileMode {
	mode := os.FileMode(m & 0o777)
	switch m & unix.S_IFMT {
	case unix.S_IFBLK:
		mode |= os.ModeDevice
	case unix.S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFDIR:
		mode |= os.ModeDir
	case unix.S_IFIFO:
		mode |= os.ModeNamedPipe
	case unix.S_IFLNK:
		mode |= os.ModeSymlink
	case unix.S_IFSOCK:
		mode |= os.ModeSocket
	}
	if m&unix.S_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if m&unix.S_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if m&unix.S_ISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}
