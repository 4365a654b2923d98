package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/rvs-vcs/rvs/internal/termcolor"
)

// runDiff implements "rvs diff [--cached] [<rev>] [-- <paths>...]".
//
// With no rev, the unstaged form compares the working tree against the
// index and the --cached form compares the index against HEAD. Naming a rev
// compares the working tree (or, with --cached, the index) against that
// rev's tree instead.
func runDiff(repo *gitcore.Repository, args []string, cw *termcolor.Writer) int {
	cached := false
	rev := ""
	var pathspecs []string

	sepIdx := indexOf(args, "--")
	head := args
	if sepIdx >= 0 {
		head = args[:sepIdx]
		pathspecs = args[sepIdx+1:]
	}

	for _, arg := range head {
		switch arg {
		case "--cached", "--staged":
			cached = true
		default:
			if rev == "" {
				rev = arg
			}
		}
	}

	idx, err := gitcore.ReadIndex(repo.IndexDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	var treeHash gitcore.Hash
	if rev != "" {
		h, err := resolveHash(repo, rev)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		commit, err := repo.GetCommit(h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		treeHash = commit.Tree
	} else if headHash := repo.Head(); headHash != "" {
		commit, err := repo.GetCommit(headHash)
		if err == nil {
			treeHash = commit.Tree
		}
	}

	var changes []diffChange
	switch {
	case rev != "" && cached:
		changes, err = diffCandidateIndexPathsAgainstTree(repo, idx, treeHash, pathspecs)
	case rev != "" && !cached:
		changes, err = diffCandidatePathsAgainstTree(repo, idx, treeHash, pathspecs)
	default:
		changes, err = diffCandidatePaths(repo, cached, pathspecs)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return rvserr.ExitCode(err)
	}

	for _, change := range changes {
		var fileDiff *gitcore.FileDiff
		var diffErr error

		if cached {
			fileDiff, diffErr = gitcore.ComputeStagedFileDiff(repo, idx, treeHash, change.path, gitcore.DefaultContextLines)
		} else if rev != "" {
			fileDiff, diffErr = gitcore.ComputeWorktreeDiffAgainstTree(repo, treeHash, change.path, gitcore.DefaultContextLines)
		} else {
			fileDiff, diffErr = gitcore.ComputeWorktreeDiffAgainstIndex(repo, idx, change.path, gitcore.DefaultContextLines)
		}
		if diffErr != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", diffErr)
			continue
		}
		printFileDiff(fileDiff, change.status, cw)
	}

	return 0
}

type diffChange struct {
	path   string
	status string // "added", "modified", or "deleted"
}

// diffCandidatePaths determines which tracked paths have a pending change of
// the kind runDiff is being asked to show, filtered to pathspecs when given.
func diffCandidatePaths(repo *gitcore.Repository, cached bool, pathspecs []string) ([]diffChange, error) {
	status, err := gitcore.ComputeWorkingTreeStatus(repo)
	if err != nil {
		return nil, err
	}

	var changes []diffChange
	for _, f := range status.Files {
		if f.IsUntracked {
			continue
		}
		st := f.WorkStatus
		if cached {
			st = f.IndexStatus
		}
		if st == "" {
			continue
		}
		if len(pathspecs) == 0 || matchesAnyPathspec(f.Path, pathspecs) {
			changes = append(changes, diffChange{path: f.Path, status: st})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].path < changes[j].path })
	return changes, nil
}

// diffCandidatePathsAgainstTree determines which tracked paths differ between
// the working tree and an arbitrary named revision's tree, rather than HEAD —
// needed because a path can be unchanged versus HEAD but changed versus rev,
// or vice versa, which diffCandidatePaths's HEAD/index-based status pass
// cannot see.
func diffCandidatePathsAgainstTree(repo *gitcore.Repository, idx *gitcore.Index, treeHash gitcore.Hash, pathspecs []string) ([]diffChange, error) {
	files, err := gitcore.DiffPathsAgainstTree(repo, idx, treeHash)
	if err != nil {
		return nil, err
	}

	var changes []diffChange
	for _, f := range files {
		if len(pathspecs) == 0 || matchesAnyPathspec(f.Path, pathspecs) {
			changes = append(changes, diffChange{path: f.Path, status: f.WorkStatus})
		}
	}
	return changes, nil
}

// diffCandidateIndexPathsAgainstTree determines which staged paths differ
// between the index and an arbitrary named revision's tree, for
// `rvs diff --cached <rev>` — the cached-mode analogue of
// diffCandidatePathsAgainstTree.
func diffCandidateIndexPathsAgainstTree(repo *gitcore.Repository, idx *gitcore.Index, treeHash gitcore.Hash, pathspecs []string) ([]diffChange, error) {
	files, err := gitcore.DiffIndexAgainstTree(repo, idx, treeHash)
	if err != nil {
		return nil, err
	}

	var changes []diffChange
	for _, f := range files {
		if len(pathspecs) == 0 || matchesAnyPathspec(f.Path, pathspecs) {
			changes = append(changes, diffChange{path: f.Path, status: f.IndexStatus})
		}
	}
	return changes, nil
}

func matchesAnyPathspec(path string, pathspecs []string) bool {
	for _, spec := range pathspecs {
		if path == spec || (len(path) > len(spec) && path[:len(spec)] == spec && path[len(spec)] == '/') {
			return true
		}
	}
	return false
}

func printFileDiff(fd *gitcore.FileDiff, status string, cw *termcolor.Writer) {
	oldHash := fd.OldHash.Short()
	newHash := fd.NewHash.Short()
	if oldHash == "" {
		oldHash = "0000000"
	}
	if newHash == "" {
		newHash = "0000000"
	}

	fmt.Println(cw.Bold(fmt.Sprintf("diff --git a/%s b/%s", fd.Path, fd.Path)))
	fmt.Println(cw.Bold(fmt.Sprintf("index %s..%s", oldHash, newHash)))

	if fd.IsBinary {
		fmt.Println("Binary files differ")
		return
	}
	if fd.Truncated {
		fmt.Println("(diff omitted: file too large)")
		return
	}

	if status == statusAdded {
		fmt.Println(cw.Bold("--- /dev/null"))
	} else {
		fmt.Println(cw.Bold(fmt.Sprintf("--- a/%s", fd.Path)))
	}
	if status == statusDeleted {
		fmt.Println(cw.Bold("+++ /dev/null"))
	} else {
		fmt.Println(cw.Bold(fmt.Sprintf("+++ b/%s", fd.Path)))
	}

	printHunks(fd, cw)
}
