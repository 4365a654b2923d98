package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runReset(repo *gitcore.Repository, args []string) int {
	mode := gitcore.ResetMixed
	rev := "HEAD"

	for _, a := range args {
		switch a {
		case "--soft":
			mode = gitcore.ResetSoft
		case "--mixed":
			mode = gitcore.ResetMixed
		case "--hard":
			mode = gitcore.ResetHard
		default:
			rev = a
		}
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if err := gitcore.Reset(repo, idx, mode, rev); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	return 0
}
