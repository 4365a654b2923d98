package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runCheckout(repo *gitcore.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rvs checkout <branch>|<rev> | -b <branch> [<start>] | --detach <rev> | <rev> -- <paths>")
		return 1
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	var doErr error
	switch {
	case args[0] == "-b" || args[0] == "-B":
		force := args[0] == "-B"
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: rvs checkout -b <branch> [<start>]")
			return 1
		}
		name := args[1]
		start := ""
		if len(args) >= 3 {
			start = args[2]
		}
		doErr = gitcore.CheckoutNewBranch(repo, idx, name, start, force)

	case args[0] == "--detach":
		rev := "HEAD"
		if len(args) >= 2 {
			rev = args[1]
		}
		doErr = gitcore.CheckoutDetach(repo, idx, rev)

	default:
		if dashIdx := indexOf(args, "--"); dashIdx >= 0 {
			rev := "HEAD"
			if dashIdx > 0 {
				rev = args[0]
			}
			paths := args[dashIdx+1:]
			if len(paths) == 0 {
				fmt.Fprintln(os.Stderr, "usage: rvs checkout <rev> -- <paths>")
				return 1
			}
			doErr = gitcore.CheckoutPaths(repo, idx, rev, paths)
			break
		}

		name := args[0]
		if _, ok := repo.Branches()[name]; ok {
			doErr = gitcore.CheckoutBranch(repo, idx, name)
		} else {
			doErr = gitcore.CheckoutDetach(repo, idx, name)
		}
	}

	if doErr != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", doErr)
		return rvserr.ExitCode(doErr)
	}
	return 0
}

// indexOf returns the index of the first occurrence of sep in args, or -1.
func indexOf(args []string, sep string) int {
	for i, a := range args {
		if a == sep {
			return i
		}
	}
	return -1
}
