package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"hostfs/internal/fs"
	"hostfs/internal/state"

	"github.com/spf13/cobra"
)

func (a *app) newMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount SOURCE MOUNTPOINT",
		Short: "Serve SOURCE at MOUNTPOINT through FUSE until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMount(cmd, args[0], args[1])
		},
	}
	flags := cmd.Flags()
	flags.Bool("read-only", false, "mount read-only")
	flags.Bool("allow-other", false, "allow other users to access the mount")
	flags.Int("uid", -1, "report this owner uid for every node (-1 keeps host ownership)")
	flags.Int("gid", -1, "report this owner gid for every node (-1 keeps host ownership)")
	return cmd
}

func (a *app) mountOptions() fs.Options {
	m := a.cfg.Mount
	return fs.Options{
		UID:                m.UID,
		GID:                m.GID,
		ReadOnly:           m.ReadOnly,
		AllowOther:         m.AllowOther,
		DefaultPermissions: m.DefaultPermissions,
		AsyncRead:          m.AsyncRead,
	}
}

func (a *app) runMount(cmd *cobra.Command, source, mountPoint string) error {
	mountPoint, err := filepath.Abs(mountPoint)
	if err != nil {
		return fmt.Errorf("failed to resolve mount point: %w", err)
	}

	opts := a.mountOptions()
	pfs, err := fs.NewPassFS(source, a.host, opts)
	if err != nil {
		return err
	}
	sm, err := a.stateManager()
	if err != nil {
		return err
	}

	if err := pfs.Mount(mountPoint); err != nil {
		return err
	}

	entry := state.MountEntry{
		MountPoint: mountPoint,
		Source:     pfs.SourceDir(),
		PID:        os.Getpid(),
		MountedAt:  time.Now().UTC(),
		ReadOnly:   opts.ReadOnly,
	}
	if err := sm.Register(entry); err != nil {
		cliLogger.Warn("Failed to record mount: %v", err)
	}
	defer func() {
		if _, err := sm.Deregister(mountPoint); err != nil && !errors.Is(err, state.ErrMountNotFound) {
			cliLogger.Warn("Failed to remove mount record: %v", err)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n", pfs.SourceDir(), mountPoint)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- pfs.Wait() }()

	select {
	case <-ctx.Done():
		cliLogger.Info("Shutting down")
		if err := pfs.Unmount(); err != nil {
			return fmt.Errorf("failed to unmount %s: %w", mountPoint, err)
		}
		return <-served
	case err := <-served:
		// Unmounted from outside, e.g. by "hostfs unmount" or fusermount -u.
		cliLogger.Info("Mount point %s was unmounted", mountPoint)
		return err
	}
}

func (a *app) newUnmountCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "unmount MOUNTPOINT | --all",
		Short: "Unmount a hostfs mount",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sm, err := a.stateManager()
			if err != nil {
				return err
			}
			if !all {
				return a.unmount(cmd, sm, args[0])
			}

			mounts, err := sm.List()
			if err != nil {
				return err
			}
			var errs []error
			for _, m := range mounts {
				errs = append(errs, a.unmount(cmd, sm, m.MountPoint))
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "unmount every recorded mount")
	return cmd
}

func (a *app) unmount(cmd *cobra.Command, sm *state.Manager, mountPoint string) error {
	mountPoint, err := filepath.Abs(mountPoint)
	if err != nil {
		return err
	}
	if err := unmountFunc(mountPoint); err != nil {
		return fmt.Errorf("failed to unmount %s: %w", mountPoint, err)
	}
	if _, err := sm.Deregister(mountPoint); err != nil && !errors.Is(err, state.ErrMountNotFound) {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unmounted %s\n", mountPoint)
	return nil
}

// unmountFunc is replaced in tests.
var unmountFunc = fs.Unmount

func (a *app) newMountsCommand() *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "mounts",
		Short: "List recorded mounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sm, err := a.stateManager()
			if err != nil {
				return err
			}
			if prune {
				stale, err := sm.Prune()
				if err != nil {
					return err
				}
				for _, m := range stale {
					cliLogger.Info("Dropped stale mount %s (pid %d)", m.MountPoint, m.PID)
				}
			}

			mounts, err := sm.List()
			if err != nil {
				return err
			}
			if len(mounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hostfs mounts recorded.")
				return nil
			}
			return printMounts(cmd, mounts)
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "drop entries whose serving process has exited")
	return cmd
}

func printMounts(cmd *cobra.Command, mounts []state.MountEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MOUNTPOINT\tSOURCE\tPID\tSTATUS\tMODE\tSINCE")
	for _, m := range mounts {
		status := "running"
		if !m.Alive() {
			status = "stale"
		}
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			m.MountPoint, m.Source, m.PID, status, mode, m.MountedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
