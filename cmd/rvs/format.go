package main

import (
	"time"

	"github.com/rvs-vcs/rvs/internal/gitcore"
)

// gitDateFormat formats a time.Time the same way git log does.
// Layout: "Mon Jan 2 15:04:05 2006 -0700".
func gitDateFormat(t time.Time) string {
	return t.Format("Mon Jan 2 15:04:05 2006 -0700")
}

// resolveHash resolves a revision string to a full hash.
// Supports: full 40-char hash, short prefix (>=4 chars), HEAD, HEAD~N /
// <branch>~N ancestor syntax, and branch names.
func resolveHash(repo *gitcore.Repository, rev string) (gitcore.Hash, error) {
	return gitcore.ResolveRevision(repo, rev)
}
