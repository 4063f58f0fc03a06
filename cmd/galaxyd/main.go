// Command galaxyd is the filesystem-activity monitoring daemon: it crawls
// the given directories, installs inotify watches, and serves client
// sessions over a Unix domain control socket until it receives a
// termination signal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gmunoz/galaxy/pkg/galaxy"
	"github.com/gmunoz/galaxy/pkg/galaxy/config"
	"github.com/gmunoz/galaxy/pkg/galaxy/daemon"
	"github.com/gmunoz/galaxy/pkg/galaxy/logging"
	"github.com/gmunoz/galaxy/pkg/galaxy/paths"
)

var flags struct {
	prune     string
	recursive bool
	version   bool
}

var rootCommand = &cobra.Command{
	Use:   "galaxyd [directory ...]",
	Short: "galaxyd watches directory trees and reports filesystem activity to connected clients",
	RunE:  run,
	// Positional arguments are directories to watch; unknown flags should
	// fail rather than being swallowed as directory names.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flagSet := rootCommand.Flags()
	flagSet.StringVarP(&flags.prune, "prune", "p", "", "colon-separated list of directories to never watch")
	flagSet.BoolVarP(&flags.recursive, "recursive", "r", false, "watch each directory's subtree, not just the directory itself")
	flagSet.BoolVarP(&flags.version, "version", "v", false, "print version information and exit")
	flagSet.SortFlags = false
}

func run(command *cobra.Command, args []string) error {
	if flags.version {
		fmt.Printf("%d.%d.%d\n", galaxy.VersionMajor, galaxy.VersionMinor, galaxy.VersionPatch)
		return nil
	}

	if err := paths.EnsureRoot(); err != nil {
		return fmt.Errorf("unable to create galaxy root directory: %w", err)
	}

	cfg := config.Resolve(args, flags.prune, flags.recursive)
	if len(cfg.Roots) == 0 {
		return fmt.Errorf("no directories to watch")
	}

	logger := logging.RootLogger.Sublogger("daemon")
	d, err := daemon.New(daemon.Config{
		Roots:         cfg.Roots,
		Prune:         cfg.Prune,
		Recursive:     cfg.Recursive,
		LockPath:      paths.LockPath(),
		SocketPath:    paths.DaemonSocketPath(),
		ControlPrefix: paths.ClientControlPrefix(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	return d.Run()
}

func main() {
	pflag.CommandLine.SortFlags = false
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "galaxyd:", err)
		os.Exit(1)
	}
}
