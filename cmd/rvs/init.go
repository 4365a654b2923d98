package main

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
)

func runInit(args []string, path string) int {
	dir := path
	if len(args) > 0 {
		dir = args[0]
	}

	repo, err := gitcore.Init(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	fmt.Printf("Initialized empty RVS repository in %s\n", repo.GitDir())
	return 0
}
