package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
)

func runLsFiles(repo *gitcore.Repository, _ []string) int {
	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	for _, p := range gitcore.LsFiles(idx) {
		fmt.Println(p)
	}
	return 0
}
