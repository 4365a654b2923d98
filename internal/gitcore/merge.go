package gitcore

import (
	"container/heap"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rvs-vcs/rvs/internal/rvserr"
)

// MergeResult reports the outcome of Merge: which strategy was used, the
// resulting commit (if any), and any paths left unresolved.
type MergeResult struct {
	// AlreadyUpToDate is true when theirs is already an ancestor of ours —
	// nothing to do.
	AlreadyUpToDate bool
	// FastForward is true when ours was simply advanced to theirs.
	FastForward bool
	// CommitHash is the new HEAD commit: theirs for a fast-forward, or the
	// new two-parent merge commit. Empty when AlreadyUpToDate or Conflicted.
	CommitHash Hash
	// Conflicted is true when one or more paths could not be merged
	// automatically; the working tree and index hold conflict markers and
	// higher-stage entries for ConflictPaths, and no merge commit is made.
	Conflicted    bool
	ConflictPaths []string
}

// MergeBase finds the best common ancestor of two commits using a
// bidirectional BFS with date-ordered priority queues.
// Returns an error if no common ancestor exists.
func MergeBase(repo *Repository, ours, theirs Hash) (Hash, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	cm := repo.commitsMap()

	oursCommit, ok := cm[ours]
	if !ok {
		return "", fmt.Errorf("commit not found: %s", ours)
	}
	theirsCommit, ok := cm[theirs]
	if !ok {
		return "", fmt.Errorf("commit not found: %s", theirs)
	}

	// Track which sides have visited each commit.
	// Bit 1 = ours, bit 2 = theirs.
	const sideOurs = 1
	const sideTheirs = 2

	visited := make(map[Hash]int)

	h := &commitHeap{}
	heap.Init(h)

	visited[ours] = sideOurs
	visited[theirs] |= sideTheirs

	heap.Push(h, oursCommit)
	if ours != theirs {
		heap.Push(h, theirsCommit)
	} else {
		return ours, nil
	}

	for h.Len() > 0 {
		c := heap.Pop(h).(*Commit) //nolint:errcheck

		side := visited[c.ID]
		if side == sideOurs|sideTheirs {
			return c.ID, nil
		}

		for _, parentHash := range c.Parents {
			prevSide := visited[parentHash]
			newSide := prevSide | side

			if newSide == sideOurs|sideTheirs {
				return parentHash, nil
			}

			if newSide != prevSide {
				visited[parentHash] = newSide
				if parent, found := cm[parentHash]; found {
					heap.Push(h, parent)
				}
			}
		}
	}

	return "", fmt.Errorf("no common ancestor between %s and %s", ours.Short(), theirs.Short())
}

// MergePreview computes a preview of merging theirs into ours without
// modifying the repository. It finds the merge base, diffs both sides
// against it, and classifies each changed file.
func MergePreview(repo *Repository, oursHash, theirsHash Hash) (*MergePreviewResult, error) {
	baseHash, err := MergeBase(repo, oursHash, theirsHash)
	if err != nil {
		return nil, err
	}

	// Look up commits to get tree hashes.
	oursCommit, err := repo.GetCommit(oursHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get ours commit: %w", err)
	}
	theirsCommit, err := repo.GetCommit(theirsHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get theirs commit: %w", err)
	}

	var baseTree Hash
	if baseHash != "" {
		baseCommit, err := repo.GetCommit(baseHash)
		if err != nil {
			return nil, fmt.Errorf("failed to get base commit: %w", err)
		}
		baseTree = baseCommit.Tree
	}

	oursDiff, err := TreeDiff(repo, baseTree, oursCommit.Tree, "")
	if err != nil {
		return nil, fmt.Errorf("failed to diff ours against base: %w", err)
	}

	theirsDiff, err := TreeDiff(repo, baseTree, theirsCommit.Tree, "")
	if err != nil {
		return nil, fmt.Errorf("failed to diff theirs against base: %w", err)
	}

	// Index diffs by path.
	oursMap := make(map[string]DiffEntry, len(oursDiff))
	for _, e := range oursDiff {
		oursMap[e.Path] = e
	}
	theirsMap := make(map[string]DiffEntry, len(theirsDiff))
	for _, e := range theirsDiff {
		theirsMap[e.Path] = e
	}

	// Union of all changed paths.
	allPaths := make(map[string]struct{})
	for p := range oursMap {
		allPaths[p] = struct{}{}
	}
	for p := range theirsMap {
		allPaths[p] = struct{}{}
	}

	entries := make([]MergePreviewEntry, 0, len(allPaths))
	conflicts := 0

	for path := range allPaths {
		oursEntry, inOurs := oursMap[path]
		theirsEntry, inTheirs := theirsMap[path]

		entry := MergePreviewEntry{
			Path:     path,
			IsBinary: (inOurs && oursEntry.IsBinary) || (inTheirs && theirsEntry.IsBinary),
		}

		if inOurs {
			entry.OursStatus = oursEntry.Status.String()
			entry.OursHash = oursEntry.NewHash
			entry.BaseHash = oursEntry.OldHash
		}
		if inTheirs {
			entry.TheirsStatus = theirsEntry.Status.String()
			entry.TheirsHash = theirsEntry.NewHash
			if entry.BaseHash == "" {
				entry.BaseHash = theirsEntry.OldHash
			}
		}

		switch {
		case inOurs && !inTheirs:
			// Only ours changed — clean merge.
			entry.ConflictType = ConflictNone

		case !inOurs && inTheirs:
			// Only theirs changed — clean merge.
			entry.ConflictType = ConflictNone

		case inOurs && inTheirs:
			entry.ConflictType = classifyConflict(oursEntry, theirsEntry)
		}

		if entry.ConflictType != ConflictNone {
			conflicts++
		}

		entries = append(entries, entry)
	}

	return &MergePreviewResult{
		MergeBaseHash: baseHash,
		OursHash:      oursHash,
		TheirsHash:    theirsHash,
		Entries:       entries,
		Stats: MergePreviewStats{
			TotalFiles: len(entries),
			Conflicts:  conflicts,
			CleanMerge: len(entries) - conflicts,
		},
	}, nil
}

// classifyConflict determines the conflict type when both sides changed the same file.
func classifyConflict(ours, theirs DiffEntry) ConflictType {
	// Both sides made the same change (same resulting hash) — trivial merge.
	if ours.NewHash != "" && ours.NewHash == theirs.NewHash {
		return ConflictNone
	}

	// Both added the same path.
	if ours.Status == DiffStatusAdded && theirs.Status == DiffStatusAdded {
		return ConflictBothAdded
	}

	// One deleted, other modified.
	if (ours.Status == DiffStatusDeleted && theirs.Status != DiffStatusDeleted) ||
		(ours.Status != DiffStatusDeleted && theirs.Status == DiffStatusDeleted) {
		return ConflictDeleteModify
	}

	// Both deleted — no conflict.
	if ours.Status == DiffStatusDeleted && theirs.Status == DiffStatusDeleted {
		return ConflictNone
	}

	// Both modified to different hashes — content conflict.
	return ConflictConflicting
}

// Merge merges theirsHash into the current HEAD, advancing HEAD and
// rewriting the working tree and idx in place. oursLabel/theirsLabel name
// the two sides in any conflict markers written to disk (e.g. branch
// names). committer is used as both author and committer of any resulting
// merge commit.
func Merge(repo *Repository, idx *Index, theirsHash Hash, oursLabel, theirsLabel, message string, committer Signature) (*MergeResult, error) {
	oursHash := repo.Head()
	if oursHash == "" {
		return nil, rvserr.New(rvserr.KindUnknownRev, "HEAD is unborn; nothing to merge into")
	}
	if oursHash == theirsHash {
		return &MergeResult{AlreadyUpToDate: true}, nil
	}

	baseHash, err := MergeBase(repo, oursHash, theirsHash)
	if err != nil {
		return nil, err
	}
	if baseHash == theirsHash {
		return &MergeResult{AlreadyUpToDate: true}, nil
	}

	oursCommit, err := repo.GetCommit(oursHash)
	if err != nil {
		return nil, err
	}
	theirsCommit, err := repo.GetCommit(theirsHash)
	if err != nil {
		return nil, err
	}

	if baseHash == oursHash {
		if err := MaterializeCheckout(repo, idx, oursCommit.Tree, theirsCommit.Tree); err != nil {
			return nil, err
		}
		if err := idx.Save(repo.IndexDir()); err != nil {
			return nil, err
		}
		if err := repo.AdvanceCurrentBranch(theirsHash); err != nil {
			return nil, err
		}
		return &MergeResult{FastForward: true, CommitHash: theirsHash}, nil
	}

	baseCommit, err := repo.GetCommit(baseHash)
	if err != nil {
		return nil, err
	}

	merged, conflictPaths, err := mergeTrees(repo, idx, baseCommit.Tree, oursCommit.Tree, theirsCommit.Tree, oursLabel, theirsLabel)
	if err != nil {
		return nil, err
	}

	if len(conflictPaths) > 0 {
		if err := writeMergeState(repo, theirsHash, message); err != nil {
			return nil, err
		}
		if err := idx.Save(repo.IndexDir()); err != nil {
			return nil, err
		}
		return &MergeResult{Conflicted: true, ConflictPaths: conflictPaths},
			rvserr.New(rvserr.KindMergeConflict, "Automatic merge failed; fix conflicts and then commit the result.")
	}

	mergedTree, err := BuildTreeFromEntries(repo, merged)
	if err != nil {
		return nil, err
	}

	commit := &Commit{
		Tree:      mergedTree,
		Parents:   []Hash{oursHash, theirsHash},
		Author:    committer,
		Committer: committer,
		Message:   message,
	}
	commitHash, err := repo.WriteCommit(commit)
	if err != nil {
		return nil, err
	}
	commit.ID = commitHash

	if err := MaterializeCheckout(repo, idx, oursCommit.Tree, mergedTree); err != nil {
		return nil, err
	}
	if err := idx.Save(repo.IndexDir()); err != nil {
		return nil, err
	}
	if err := repo.AdvanceCurrentBranch(commitHash); err != nil {
		return nil, err
	}
	repo.RegisterCommit(commit)

	return &MergeResult{CommitHash: commitHash}, nil
}

// mergeTrees walks every path touched across baseTree/oursTree/theirsTree
// and classifies it per the standard three-way merge-file rule: a side that
// didn't change from base defers to the other; when both changed, an
// auto-mergeable text diff is combined, and a genuine overlap is written to
// the working tree as literal conflict markers with base/ours/theirs staged
// into idx at stages 1/2/3. It returns the flat path->entry map for every
// cleanly resolved path (the conflicted ones are handled as a side effect,
// not included) plus the sorted list of conflicted paths.
func mergeTrees(repo *Repository, idx *Index, baseTree, oursTree, theirsTree Hash, oursLabel, theirsLabel string) (map[string]flatTreeEntry, []string, error) {
	baseFlat, err := flattenTreeWithMode(repo, baseTree, "")
	if err != nil {
		return nil, nil, err
	}
	oursFlat, err := flattenTreeWithMode(repo, oursTree, "")
	if err != nil {
		return nil, nil, err
	}
	theirsFlat, err := flattenTreeWithMode(repo, theirsTree, "")
	if err != nil {
		return nil, nil, err
	}

	allPaths := make(map[string]struct{}, len(baseFlat)+len(oursFlat)+len(theirsFlat))
	for p := range baseFlat {
		allPaths[p] = struct{}{}
	}
	for p := range oursFlat {
		allPaths[p] = struct{}{}
	}
	for p := range theirsFlat {
		allPaths[p] = struct{}{}
	}

	merged := make(map[string]flatTreeEntry)
	var conflicts []string

	for path := range allPaths {
		base, inBase := baseFlat[path]
		ours, inOurs := oursFlat[path]
		theirs, inTheirs := theirsFlat[path]

		baseID, oursID, theirsID := Hash(""), Hash(""), Hash("")
		if inBase {
			baseID = base.ID
		}
		if inOurs {
			oursID = ours.ID
		}
		if inTheirs {
			theirsID = theirs.ID
		}

		switch {
		case oursID == theirsID:
			if inOurs {
				merged[path] = ours
			}
			// Deleted on both sides — absent from merged, nothing to write.

		case oursID == baseID:
			if inTheirs {
				merged[path] = theirs
			}
			// Unchanged by us, deleted by theirs — drop it.

		case theirsID == baseID:
			if inOurs {
				merged[path] = ours
			}
			// Unchanged by theirs, deleted by us — drop it.

		default:
			mode := "100644"
			switch {
			case inOurs:
				mode = ours.Mode
			case inTheirs:
				mode = theirs.Mode
			}
			resolved, conflicted, err := mergeFileContent(repo, idx, path, baseID, oursID, theirsID, mode, oursLabel, theirsLabel)
			if err != nil {
				return nil, nil, err
			}
			if conflicted {
				conflicts = append(conflicts, path)
			} else if resolved != nil {
				merged[path] = *resolved
			}
		}
	}

	sort.Strings(conflicts)
	return merged, conflicts, nil
}

// mergeFileContent resolves a single path whose base/ours/theirs blob hashes
// all disagree. It returns the merged entry when auto-mergeable, or writes
// conflict markers to the working tree and stages base/ours/theirs into idx
// when they are not.
func mergeFileContent(repo *Repository, idx *Index, path string, baseID, oursID, theirsID Hash, mode, oursLabel, theirsLabel string) (*flatTreeEntry, bool, error) {
	diff, err := ComputeThreeWayDiff(repo, baseID, oursID, theirsID, path)
	if err != nil {
		return nil, false, err
	}

	diskPath := filepath.Join(repo.WorkDir(), filepath.FromSlash(path))

	if diff.IsBinary || diff.Truncated || diff.Stats.ConflictRegions > 0 {
		stageConflict(idx, path, baseID, oursID, theirsID, mode)
		if !diff.IsBinary && !diff.Truncated {
			content := RenderConflictMarkers(diff, oursLabel, theirsLabel)
			if err := writeWorkingFile(repo.WorkDir(), path, mode, []byte(content)); err != nil {
				return nil, false, err
			}
		} else if oursID != "" {
			content, err := repo.GetBlob(oursID)
			if err != nil {
				return nil, false, err
			}
			if err := writeWorkingFile(repo.WorkDir(), path, mode, content); err != nil {
				return nil, false, err
			}
		} else if err := os.Remove(diskPath); err != nil && !os.IsNotExist(err) {
			return nil, false, rvserr.WithPath(rvserr.KindIOError, diskPath, err)
		}
		return nil, true, nil
	}

	// Both sides changed the file in non-overlapping ways; diff3 merged them
	// cleanly with no conflict regions remaining.
	merged := RenderConflictMarkers(diff, oursLabel, theirsLabel)
	oid, err := repo.WriteBlob([]byte(merged))
	if err != nil {
		return nil, false, err
	}
	return &flatTreeEntry{ID: oid, Mode: mode}, false, nil
}

// stageConflict records an unresolved conflict at path in idx: any side
// that has content gets staged at its conflict stage (1=base, 2=ours,
// 3=theirs), and the stage-0 entry is cleared.
func stageConflict(idx *Index, path string, baseID, oursID, theirsID Hash, mode string) {
	idx.Remove(path)
	if baseID != "" {
		idx.AddStaged(path, 1, parseTreeMode(mode), baseID)
	}
	if oursID != "" {
		idx.AddStaged(path, 2, parseTreeMode(mode), oursID)
	}
	if theirsID != "" {
		idx.AddStaged(path, 3, parseTreeMode(mode), theirsID)
	}
}

// writeMergeState records an in-progress conflicted merge so a later commit
// can find the second parent and default message, mirroring Git's
// MERGE_HEAD/MERGE_MSG files.
func writeMergeState(repo *Repository, theirsHash Hash, message string) error {
	dir := repo.IndexDir()
	if err := os.WriteFile(filepath.Join(dir, "MERGE_HEAD"), []byte(string(theirsHash)+"\n"), 0o644); err != nil { //nolint:gosec // G306: merge state is non-sensitive metadata
		return rvserr.WithPath(rvserr.KindIOError, dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "MERGE_MSG"), []byte(message+"\n"), 0o644); err != nil { //nolint:gosec // G306
		return rvserr.WithPath(rvserr.KindIOError, dir, err)
	}
	return nil
}

// ReadMergeState reports whether a conflicted merge is in progress in this
// worktree, returning the pending second parent and default message.
func ReadMergeState(repo *Repository) (theirsHash Hash, message string, inProgress bool) {
	dir := repo.IndexDir()
	//nolint:gosec // G304: merge state path is controlled by repository structure
	headContent, err := os.ReadFile(filepath.Join(dir, "MERGE_HEAD"))
	if err != nil {
		return "", "", false
	}
	//nolint:gosec // G304: merge state path is controlled by repository structure
	msgContent, _ := os.ReadFile(filepath.Join(dir, "MERGE_MSG"))
	return Hash(trimNewline(string(headContent))), trimNewline(string(msgContent)), true
}

// ClearMergeState removes MERGE_HEAD/MERGE_MSG once a conflicted merge has
// been committed or aborted.
func ClearMergeState(repo *Repository) error {
	dir := repo.IndexDir()
	for _, name := range []string{"MERGE_HEAD", "MERGE_MSG"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return rvserr.WithPath(rvserr.KindIOError, dir, err)
		}
	}
	return nil
}

func trimNewline(s string) string {
	return strings.TrimRight(s, "\n")
}
