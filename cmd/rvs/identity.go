package main

import (
	"os"
	"time"

	"github.com/rvs-vcs/rvs/internal/gitcore"
)

// authorSignature builds the author signature for a new commit from
// RVS_AUTHOR_NAME / RVS_AUTHOR_EMAIL, falling back to a generic identity
// when unset, as a local commit always needs one.
func authorSignature() gitcore.Signature {
	return envSignature("RVS_AUTHOR_NAME", "RVS_AUTHOR_EMAIL")
}

// committerSignature builds the committer signature from
// RVS_COMMITTER_NAME / RVS_COMMITTER_EMAIL, falling back to the author
// identity when unset (matching Git's default of committer == author).
func committerSignature() gitcore.Signature {
	if os.Getenv("RVS_COMMITTER_NAME") == "" && os.Getenv("RVS_COMMITTER_EMAIL") == "" {
		return authorSignature()
	}
	return envSignature("RVS_COMMITTER_NAME", "RVS_COMMITTER_EMAIL")
}

func envSignature(nameVar, emailVar string) gitcore.Signature {
	name := os.Getenv(nameVar)
	if name == "" {
		name = "rvs user"
	}
	email := os.Getenv(emailVar)
	if email == "" {
		email = "rvs@localhost"
	}
	return gitcore.Signature{Name: name, Email: email, When: time.Now()}
}
