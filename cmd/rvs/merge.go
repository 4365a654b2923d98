package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runMerge(repo *gitcore.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rvs merge <rev>")
		return 1
	}
	rev := args[0]

	theirs, err := resolveHash(repo, rev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "merge: %s - not something we can merge\n", rev)
		return 128
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	oursLabel := "HEAD"
	if ref := repo.HeadRef(); ref != "" {
		oursLabel = ref[len("refs/heads/"):]
	}

	message := fmt.Sprintf("Merge %s into %s", rev, oursLabel)
	result, err := gitcore.Merge(repo, idx, theirs, "ours", "theirs", message, committerSignature())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	switch {
	case result.AlreadyUpToDate:
		fmt.Println("Already up to date.")
		return 0
	case result.FastForward:
		fmt.Printf("Fast-forward\nHEAD is now at %s\n", result.CommitHash.Short())
		return 0
	case result.Conflicted:
		fmt.Println("Automatic merge failed; fix conflicts and then commit the result.")
		for _, p := range result.ConflictPaths {
			fmt.Printf("CONFLICT: %s\n", p)
		}
		return 1
	default:
		fmt.Printf("Merge made by the 'recursive' strategy.\n")
		return 0
	}
}
