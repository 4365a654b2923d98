package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/rvs-vcs/rvs/internal/termcolor"
)

func runStash(repo *gitcore.Repository, args []string, _ *termcolor.Writer) int {
	sub := "list"
	rest := args
	if len(args) > 0 {
		sub, rest = args[0], args[1:]
	}

	switch sub {
	case "list":
		stashes := repo.Stashes()
		for i, s := range stashes {
			fmt.Printf("stash@{%d}: %s\n", i, s.Message)
		}
		return 0

	case "push":
		return runStashPush(repo, rest)

	case "pop":
		idx, err := gitcore.ReadIndex(repo.IndexDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		if err := gitcore.StashPop(repo, idx, committerSignature()); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return rvserr.ExitCode(err)
		}
		return 0

	case "apply":
		idx, err := gitcore.ReadIndex(repo.IndexDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		if err := gitcore.StashApply(repo, idx, committerSignature()); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return rvserr.ExitCode(err)
		}
		return 0

	default:
		fmt.Fprintln(os.Stderr, "usage: rvs stash push [-m <msg>] | pop | apply | list")
		return 1
	}
}

func runStashPush(repo *gitcore.Repository, args []string) int {
	message := ""
	includeUntracked := false
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-m" && i+1 < len(args):
			i++
			message = args[i]
		case args[i] == "-u" || args[i] == "--include-untracked":
			includeUntracked = true
		}
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	hash, err := gitcore.StashPush(repo, idx, message, committerSignature(), includeUntracked)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	fmt.Printf("Saved working directory and index state: %s\n", hash.Short())
	return 0
}
