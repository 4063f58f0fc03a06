// Command galaxyctl is a minimal client for galaxyd: it connects, installs
// a single watch rule matching a regular expression, and prints every
// delivered event until interrupted. It is the Go equivalent of the
// original tool's galaxy.c command-line client.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gmunoz/galaxy/pkg/galaxy/client"
	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/paths"
)

var flags struct {
	mask   uint32
	ignore string
}

var rootCommand = &cobra.Command{
	Use:           "galaxyctl <regexp>",
	Short:         "galaxyctl watches for filesystem events matching a regular expression",
	Args:          cobra.ExactArgs(1),
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flagSet := rootCommand.Flags()
	flagSet.Uint32VarP(&flags.mask, "mask", "m", uint32(event.All), "inotify event mask to watch for")
	flagSet.StringVarP(&flags.ignore, "ignore", "i", "", "regular expression of paths to ignore")
}

func run(command *cobra.Command, args []string) error {
	pattern := args[0]

	c, err := client.Connect(paths.DaemonSocketPath())
	if err != nil {
		return fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer c.Close()

	if err := c.Watch(event.Mask(flags.mask), pattern); err != nil {
		return fmt.Errorf("unable to install watch: %w", err)
	}
	if flags.ignore != "" {
		if err := c.IgnoreWatch(event.Mask(flags.mask), flags.ignore); err != nil {
			return fmt.Errorf("unable to install ignore rule: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	events := make(chan event.Delivered)
	errs := make(chan error, 1)

	go func() {
		for {
			delivered, err := c.Receive()
			if err != nil {
				errs <- err
				return
			}
			events <- delivered
		}
	}()

	for {
		select {
		case <-sigCh:
			return nil
		case err := <-errs:
			return fmt.Errorf("receive failed: %w", err)
		case delivered := <-events:
			fmt.Printf("%s %s %s\n", delivered.Timestamp.Format("15:04:05.000"), delivered.Mask, delivered.Path)
		}
	}
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "galaxyctl:", err)
		os.Exit(1)
	}
}
