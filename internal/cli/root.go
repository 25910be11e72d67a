// Package cli implements the hostfs command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"hostfs/internal/config"
	"hostfs/internal/fs"
	"hostfs/internal/host"
	"hostfs/internal/logging"
	"hostfs/internal/state"

	"github.com/spf13/cobra"
)

var cliLogger = logging.GetLogger().WithPrefix("cli")

// Build information
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo updates the build information variables
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// app is shared by the commands of one command tree.
type app struct {
	configFile string
	verbose    bool

	cfg   *config.Config
	host  *host.Adapter
	state *state.Manager
}

// NewRootCommand builds a fresh hostfs command tree.
func NewRootCommand() *cobra.Command {
	a := &app{host: host.New()}

	root := &cobra.Command{
		Use:   "hostfs",
		Short: "Host filesystem adapter and FUSE passthrough",
		Long: `hostfs exposes the host filesystem through a small descriptor-based
adapter. Its subcommands run single adapter operations, and mount serves
a source directory at a mount point through FUSE.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/hostfs/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.String("log-level", "info", "log level (error, warn, info, debug, trace)")
	flags.String("log-format", "console", "log format (console or json)")
	flags.String("state", "", "mount table file (default is $XDG_STATE_HOME/hostfs/mounts.yaml)")

	root.AddCommand(
		a.newStatCommand(),
		a.newLsCommand(),
		a.newCatCommand(),
		a.newPutCommand(),
		a.newMkdirCommand(),
		a.newRmdirCommand(),
		a.newRmCommand(),
		a.newMvCommand(),
		a.newLnCommand(),
		a.newChmodCommand(),
		a.newChownCommand(),
		a.newRealpathCommand(),
		a.newMountCommand(),
		a.newUnmountCommand(),
		a.newMountsCommand(),
		newVersionCommand(),
	)
	return root
}

// setup loads configuration and applies logging settings before any
// subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel()
	if (a.verbose || os.Getenv("FUSE_DEBUG") != "") && level < logging.LevelDebug {
		level = logging.LevelDebug
	}
	logging.Configure(logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if os.Getenv("FUSE_DEBUG") != "" {
		fs.EnableDebug()
	}

	if cfg.File != "" {
		cliLogger.Debug("Using config file: %s", cfg.File)
	}
	return nil
}

// stateManager opens the mount table on first use.
func (a *app) stateManager() (*state.Manager, error) {
	if a.state != nil {
		return a.state, nil
	}
	sm, err := state.NewManager(a.cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mount table: %w", err)
	}
	a.state = sm
	return sm, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hostfs version %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built: %s\n", date)
		},
	}
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	_ = logging.GetLogger().Sync()
	return err
}
