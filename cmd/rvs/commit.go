package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runCommit(repo *gitcore.Repository, args []string) int {
	var message string
	allowEmpty := false

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-m" && i+1 < len(args):
			i++
			message = args[i]
		case args[i] == "--allow-empty":
			allowEmpty = true
		default:
			fmt.Fprintf(os.Stderr, "error: unknown option: %q\n", args[i])
			return 1
		}
	}

	if message == "" {
		fmt.Fprintln(os.Stderr, "error: commit message required; use -m <msg>")
		return 1
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	hash, err := gitcore.Commit(repo, idx, message, authorSignature(), committerSignature(), allowEmpty)
	if err != nil {
		if rvserr.KindOf(err) == rvserr.KindNothingToCommit {
			fmt.Fprintln(os.Stdout, "nothing to commit, working tree clean")
			return 1
		}
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	fmt.Printf("[%s] %s\n", hash.Short(), firstLine(message))
	return 0
}
