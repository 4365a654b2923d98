package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/rvs-vcs/rvs/internal/termcolor"
)

func runBranch(repo *gitcore.Repository, args []string, cw *termcolor.Writer) int {
	del, force := false, false
	var rest []string
	for _, a := range args {
		switch a {
		case "-d":
			del = true
		case "-D":
			del, force = true, true
		default:
			rest = append(rest, a)
		}
	}

	switch {
	case del:
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "usage: rvs branch (-d|-D) <name>")
			return 1
		}
		if err := gitcore.DeleteBranchSafe(repo, rest[0], force); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return rvserr.ExitCode(err)
		}
		return 0

	case len(rest) > 0:
		name := rest[0]
		start := ""
		if len(rest) >= 2 {
			start = rest[1]
		}
		if err := gitcore.CreateBranchFrom(repo, name, start, false); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return rvserr.ExitCode(err)
		}
		return 0

	default:
		return listBranches(repo, cw)
	}
}

func listBranches(repo *gitcore.Repository, cw *termcolor.Writer) int {
	branches := repo.Branches()

	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)

	current := ""
	if ref := repo.HeadRef(); ref != "" {
		current = strings.TrimPrefix(ref, "refs/heads/")
	}

	for _, name := range names {
		if name == current {
			fmt.Printf("* %s\n", cw.Green(name))
		} else {
			fmt.Printf("  %s\n", name)
		}
	}

	return 0
}
