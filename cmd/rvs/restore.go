package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runRestore(repo *gitcore.Repository, args []string) int {
	var source string
	staged := false
	var paths []string

	for i := 0; i < len(args); i++ {
		switch {
		case strings.HasPrefix(args[i], "--source="):
			source = strings.TrimPrefix(args[i], "--source=")
		case args[i] == "--source" && i+1 < len(args):
			i++
			source = args[i]
		case args[i] == "--staged":
			staged = true
		default:
			paths = append(paths, args[i])
		}
	}

	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rvs restore [--source=<rev>] [--staged] <paths>")
		return 1
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if err := gitcore.Restore(repo, idx, source, staged, paths); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	return 0
}
