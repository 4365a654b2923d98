package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runRebase(repo *gitcore.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rvs rebase <upstream>")
		return 1
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	result, err := gitcore.Rebase(repo, idx, args[0], committerSignature())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		if result != nil && result.Conflicted {
			for _, p := range result.ConflictPaths {
				fmt.Printf("CONFLICT: %s\n", p)
			}
		}
		return rvserr.ExitCode(err)
	}

	if result.UpToDate {
		fmt.Println("Current branch is up to date.")
		return 0
	}
	fmt.Printf("Successfully rebased %d commit(s).\n", len(result.Rebased))
	return 0
}
