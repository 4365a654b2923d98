package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runWorktree(repo *gitcore.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rvs worktree add <path> [<rev>] | list | remove <path> | lock <path> | unlock <path>")
		return 1
	}

	sub, rest := args[0], args[1:]
	var err error

	switch sub {
	case "add":
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "usage: rvs worktree add <path> [<rev>]")
			return 1
		}
		startPoint := "HEAD"
		if len(rest) >= 2 {
			startPoint = rest[1]
		}
		err = gitcore.AddWorktree(repo, rest[0], startPoint)

	case "list":
		return printWorktreeList(repo)

	case "remove":
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "usage: rvs worktree remove <path>")
			return 1
		}
		err = gitcore.RemoveWorktree(rest[0])

	case "lock":
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "usage: rvs worktree lock <path>")
			return 1
		}
		err = gitcore.LockWorktree(rest[0], "")

	case "unlock":
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "usage: rvs worktree unlock <path>")
			return 1
		}
		err = gitcore.UnlockWorktree(rest[0])

	default:
		fmt.Fprintf(os.Stderr, "rvs worktree: unknown subcommand %q\n", sub)
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}
	return 0
}

func printWorktreeList(repo *gitcore.Repository) int {
	list, err := gitcore.ListWorktrees(repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}
	for _, wt := range list {
		state := wt.Branch
		if wt.Detached {
			state = "detached"
		}
		lock := ""
		if wt.Locked {
			lock = " locked"
		}
		fmt.Printf("%s\t%s [%s]%s\n", wt.Path, wt.Head.Short(), state, lock)
	}
	return 0
}
