package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
)

func runLsTree(repo *gitcore.Repository, args []string) int {
	recursive := false
	rev := ""

	for _, a := range args {
		switch a {
		case "-r":
			recursive = true
		default:
			rev = a
		}
	}
	if rev == "" {
		rev = "HEAD"
	}

	hash, err := resolveHash(repo, rev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	commit, err := repo.GetCommit(hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	entries, err := gitcore.LsTree(repo, commit.Tree, recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	for _, e := range entries {
		fmt.Printf("%s %s %s\t%s\n", normalizeMode(e.Mode), e.Type, e.ID, e.Path)
	}
	return 0
}
