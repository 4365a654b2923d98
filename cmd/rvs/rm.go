package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runRm(repo *gitcore.Repository, args []string) int {
	cached := false
	force := false
	var paths []string

	for _, a := range args {
		switch a {
		case "--cached":
			cached = true
		case "-f", "--force":
			force = true
		default:
			paths = append(paths, a)
		}
	}

	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rvs rm [--cached] [-f] <paths>")
		return 1
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if err := gitcore.RemovePaths(repo, idx, paths, cached, force); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	return 0
}
