// Package config resolves daemon startup configuration: which
// directories to watch, which to prune, and whether to watch
// recursively. It is the Go equivalent of the option parsing at the top
// of the original tool's main() in galaxyd.c, with cmd/galaxyd supplying
// flags and positional arguments via github.com/spf13/cobra/pflag instead
// of getopt_long.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config is fully resolved daemon configuration, ready to hand to
// daemon.New.
type Config struct {
	// Roots are the directories to watch.
	Roots []string
	// Prune lists directories (and their subtrees) to never watch.
	Prune []string
	// Recursive selects depth-first watch installation under each root.
	Recursive bool
}

// Resolve builds a Config from explicit positional directory arguments and
// a prune flag value, folding in GALAXY_SEARCH_PATH and GALAXY_PRUNE_PATH
// (colon-separated, matching the original tool), and falling back to the
// current working directory when no root is named anywhere.
func Resolve(args []string, pruneFlag string, recursive bool) Config {
	roots := append([]string{}, args...)
	roots = append(roots, splitPathList(os.Getenv("GALAXY_SEARCH_PATH"))...)

	prune := splitPathList(pruneFlag)
	prune = append(prune, splitPathList(os.Getenv("GALAXY_PRUNE_PATH"))...)

	if len(roots) == 0 {
		if cwd, err := os.Getwd(); err == nil {
			roots = append(roots, cwd)
		}
	}

	return Config{
		Roots:     cleanAll(roots),
		Prune:     cleanAll(prune),
		Recursive: recursive,
	}
}

func splitPathList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ":")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cleanAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Clean(p)
	}
	return out
}
