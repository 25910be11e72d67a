package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hostfs/internal/driver"
	"hostfs/internal/host"

	"github.com/spf13/cobra"
)

func (a *app) newStatCommand() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "stat PATH...",
		Short: "Show file status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var errs []error
			for i, path := range args {
				stat := a.host.Lstat
				if follow {
					stat = a.host.Stat
				}
				st, err := stat(cmd.Context(), path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				printStats(out, path, st)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&follow, "dereference", "L", false, "follow symbolic links")
	return cmd
}

func entryType(isFile, isDir, isLink bool) string {
	switch {
	case isDir:
		return "directory"
	case isLink:
		return "symlink"
	case isFile:
		return "file"
	default:
		return "other"
	}
}

func printStats(out io.Writer, path string, st driver.Stats) {
	fmt.Fprintf(out, "  File: %s\n", path)
	fmt.Fprintf(out, "  Type: %s\n", entryType(st.IsFile, st.IsDirectory, st.IsSymlink))
	fmt.Fprintf(out, "  Size: %d\n", st.Size)
	fmt.Fprintf(out, "  Mode: %s (%04o)\n", st.Mode, st.Mode.Perm())
	fmt.Fprintf(out, " Owner: %d:%d\n", st.Uid, st.Gid)
	fmt.Fprintf(out, " Inode: %d  Links: %d\n", st.Ino, st.Nlink)
	fmt.Fprintf(out, "Access: %s\n", st.Atime.Format(time.RFC3339Nano))
	fmt.Fprintf(out, "Modify: %s\n", st.Mtime.Format(time.RFC3339Nano))
	fmt.Fprintf(out, "Change: %s\n", st.Ctime.Format(time.RFC3339Nano))
}

func (a *app) newLsCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls DIR",
		Short: "List directory entries in host order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			dd, err := a.host.OpenDir(ctx, args[0])
			if err != nil {
				return err
			}
			defer a.closeDescriptor(ctx, dd, &err)

			out := cmd.OutOrStdout()
			for entry, err := range a.host.List(ctx, dd) {
				if err != nil {
					return err
				}
				suffix := ""
				switch {
				case entry.IsDirectory:
					suffix = "/"
				case entry.IsSymlink:
					suffix = "@"
				}
				if !long {
					fmt.Fprintf(out, "%s%s\n", entry.Name, suffix)
					continue
				}
				st, err := a.host.Lstat(ctx, filepath.Join(dd.Path(), entry.Name))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %8d %s%s\n", st.Mode, st.Size, entry.Name, suffix)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show mode and size")
	return cmd
}

func (a *app) newCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat FILE",
		Short: "Write a file to standard output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			fd, err := a.host.OpenFile(ctx, args[0], driver.ModeRead)
			if err != nil {
				return err
			}
			defer a.closeDescriptor(ctx, fd, &err)

			out := cmd.OutOrStdout()
			for {
				chunk, err := a.host.ReadN(ctx, fd, host.DefaultReadSize)
				if err != nil {
					return err
				}
				if len(chunk) == 0 {
					return nil
				}
				if _, err := out.Write(chunk); err != nil {
					return err
				}
			}
		},
	}
}

func (a *app) newPutCommand() *cobra.Command {
	var appendMode bool
	cmd := &cobra.Command{
		Use:   "put FILE",
		Short: "Write standard input to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mode := driver.ModeWrite | driver.ModeCreate | driver.ModeTruncate
			if appendMode {
				mode = driver.ModeWrite | driver.ModeCreate | driver.ModeAppend
			}
			fd, err := a.host.OpenFile(ctx, args[0], mode)
			if err != nil {
				return err
			}

			buf := make([]byte, host.DefaultReadSize)
			in := cmd.InOrStdin()
			var total int64
			for {
				n, rerr := in.Read(buf)
				if n > 0 {
					if err := a.writeAll(cmd, fd, buf[:n]); err != nil {
						a.closeDescriptor(ctx, fd, &err)
						return err
					}
					total += int64(n)
				}
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					err := fmt.Errorf("failed to read input: %w", rerr)
					a.closeDescriptor(ctx, fd, &err)
					return err
				}
			}
			cliLogger.Debug("Wrote %d bytes to %s", total, args[0])
			return a.host.Close(ctx, fd)
		},
	}
	cmd.Flags().BoolVarP(&appendMode, "append", "a", false, "append instead of truncating")
	return cmd
}

// closeDescriptor closes d. A close failure is stored in *errp when no
// earlier error is set there, and logged otherwise.
func (a *app) closeDescriptor(ctx context.Context, d host.Descriptor, errp *error) {
	cerr := a.host.Close(ctx, d)
	if cerr == nil {
		return
	}
	if *errp == nil {
		*errp = cerr
		return
	}
	cliLogger.Warn("Failed to close %q: %v", d.Path(), cerr)
}

// writeAll repeats short writes until buf is consumed.
func (a *app) writeAll(cmd *cobra.Command, fd *host.FileDescriptor, buf []byte) error {
	for len(buf) > 0 {
		n, err := a.host.Write(cmd.Context(), fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

func (a *app) newMkdirCommand() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "mkdir DIR...",
		Short: "Create directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var perm uint32
			if mode != "" {
				p, err := parseMode(mode)
				if err != nil {
					return err
				}
				perm = p
			}
			for _, dir := range args {
				if err := a.host.Mkdir(cmd.Context(), dir); err != nil {
					return err
				}
				if mode != "" {
					if err := a.host.Chmod(cmd.Context(), dir, fileMode(perm)); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "octal permissions for the new directories")
	return cmd
}

func (a *app) newRmdirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir DIR...",
		Short: "Remove empty directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, dir := range args {
				if err := a.host.Rmdir(cmd.Context(), dir); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) newRmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm FILE...",
		Short: "Unlink files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := a.host.Unlink(cmd.Context(), path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) newMvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mv OLD NEW",
		Short: "Rename a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.host.Rename(cmd.Context(), args[0], args[1])
		},
	}
}

func (a *app) newLnCommand() *cobra.Command {
	var symbolic bool
	cmd := &cobra.Command{
		Use:   "ln TARGET PATH",
		Short: "Create a hard or symbolic link at PATH pointing to TARGET",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if symbolic {
				return a.host.Symlink(cmd.Context(), args[0], args[1])
			}
			return a.host.Link(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().BoolVarP(&symbolic, "symbolic", "s", false, "create a symbolic link")
	return cmd
}

func (a *app) newChmodCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chmod MODE PATH",
		Short: "Change permission bits (octal MODE)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			perm, err := parseMode(args[0])
			if err != nil {
				return err
			}
			return a.host.Chmod(cmd.Context(), args[1], fileMode(perm))
		},
	}
}

func (a *app) newChownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chown UID:GID PATH",
		Short: "Change owner and group; an empty side is left unchanged",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, gid, err := parseOwner(args[0])
			if err != nil {
				return err
			}
			return a.host.Chown(cmd.Context(), args[1], uid, gid)
		},
	}
}

func (a *app) newRealpathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "realpath PATH...",
		Short: "Print the resolved absolute path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				resolved, err := a.host.Realpath(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resolved)
			}
			return nil
		},
	}
}

func parseMode(s string) (uint32, error) {
	perm, err := strconv.ParseUint(s, 8, 32)
	if err != nil || perm > 0o7777 {
		return 0, fmt.Errorf("invalid mode %q: want octal such as 0644", s)
	}
	return uint32(perm), nil
}

// fileMode converts octal permission bits, including setuid, setgid and
// sticky, to an os.FileMode.
func fileMode(perm uint32) os.FileMode {
	mode := os.FileMode(perm & 0o777)
	if perm&0o4000 != 0 {
		mode |= os.ModeSetuid
	}
	if perm&0o2000 != 0 {
		mode |= os.ModeSetgid
	}
	if perm&0o1000 != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

func parseOwner(s string) (int, int, error) {
	uidStr, gidStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid owner %q: want UID:GID", s)
	}
	parse := func(part string) (int, error) {
		if part == "" {
			return -1, nil
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid owner %q: %w", s, err)
		}
		return int(id), nil
	}
	uid, err := parse(uidStr)
	if err != nil {
		return 0, 0, err
	}
	gid, err := parse(gidStr)
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}
