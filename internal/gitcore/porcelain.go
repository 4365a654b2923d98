package gitcore

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rvs-vcs/rvs/internal/rvserr"
)

// ResetMode selects how far Reset rewinds: just HEAD, HEAD plus the index, or
// HEAD plus the index plus the working tree.
type ResetMode int

const (
	ResetSoft ResetMode = iota
	ResetMixed
	ResetHard
)

// Init creates a fresh repository rooted at path: .rvs/ with objects/,
// refs/heads/, and HEAD pointing symbolically at refs/heads/main. No commit
// is made and no branch ref exists yet until the first commit advances it.
func Init(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, rvserr.WithPath(rvserr.KindIOError, path, err)
	}
	gitDir := filepath.Join(absPath, ".rvs")

	if _, err := os.Stat(gitDir); err == nil {
		return nil, rvserr.Newf(rvserr.KindUsageError, "%s: already an rvs repository", gitDir)
	}

	for _, dir := range []string{"objects", filepath.Join("refs", "heads"), filepath.Join("refs", "tags")} {
		if err := os.MkdirAll(filepath.Join(gitDir, dir), 0o755); err != nil {
			return nil, rvserr.WithPath(rvserr.KindIOError, gitDir, err)
		}
	}

	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil { //nolint:gosec // G306: ref metadata is non-sensitive
		return nil, rvserr.WithPath(rvserr.KindIOError, gitDir, err)
	}
	desc := "Unnamed repository; edit this file 'description' to name the repository.\n"
	if err := os.WriteFile(filepath.Join(gitDir, "description"), []byte(desc), 0o644); err != nil { //nolint:gosec // G306
		return nil, rvserr.WithPath(rvserr.KindIOError, gitDir, err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, rvserr.WithPath(rvserr.KindIOError, absPath, err)
	}

	return NewRepository(absPath)
}

// AddPaths expands each pathspec relative to repo.WorkDir() and stages every
// matching regular file into idx. A bare "." expands to the whole working
// tree. Expanding a directory skips paths an ignore matcher excludes;
// a file named explicitly is staged even if ignored, matching Git's
// "explicit pathspec overrides .gitignore" behavior.
func AddPaths(repo *Repository, idx *Index, pathspecs []string) error {
	workDir := repo.WorkDir()
	ignores := loadIgnoreMatcher(workDir, repo.GitDir())

	var files []string
	for _, spec := range pathspecs {
		rel, err := NormalizePath(workDir, spec)
		if err != nil && filepath.Clean(spec) != "." {
			return err
		}
		diskPath := filepath.Join(workDir, filepath.FromSlash(rel))

		info, err := os.Stat(diskPath)
		if err != nil {
			return rvserr.Newf(rvserr.KindUsageError, "pathspec %q did not match any files", spec)
		}

		if !info.IsDir() {
			files = append(files, rel)
			continue
		}

		walkErr := filepath.WalkDir(diskPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".rvs" {
					return filepath.SkipDir
				}
				relDir, err := filepath.Rel(workDir, p)
				if err != nil {
					return err
				}
				relDir = filepath.ToSlash(relDir)
				if relDir == "." {
					return nil
				}
				if p != diskPath && ignores.isIgnored(relDir, true) {
					return filepath.SkipDir
				}
				ignores.loadFile(workDir, relDir+"/")
				return nil
			}
			relPath, err := filepath.Rel(workDir, p)
			if err != nil {
				return err
			}
			relPath = filepath.ToSlash(relPath)
			if ignores.isIgnored(relPath, false) {
				return nil
			}
			files = append(files, relPath)
			return nil
		})
		if walkErr != nil {
			return rvserr.WithPath(rvserr.KindIOError, diskPath, walkErr)
		}
	}

	sort.Strings(files)
	for _, f := range files {
		if err := StageFile(repo, idx, f); err != nil {
			return err
		}
	}
	return nil
}

// modeToTreeString is the inverse of parseTreeMode.
func modeToTreeString(mode uint32) string {
	switch mode {
	case 0o100755:
		return "100755"
	case 0o40000:
		return "40000"
	default:
		return "100644"
	}
}

// buildTreeFromIndex constructs the tree that idx's stage-0 entries
// represent and writes it (and every subtree) to the object store.
func buildTreeFromIndex(repo *Repository, idx *Index) (Hash, error) {
	entries := make(map[string]flatTreeEntry, len(idx.ByPath))
	for _, e := range idx.Iter() {
		entries[e.Path] = flatTreeEntry{ID: e.Hash, Mode: modeToTreeString(e.Mode)}
	}
	if len(entries) == 0 {
		return repo.WriteTree(nil)
	}
	return BuildTreeFromEntries(repo, entries)
}

// Commit builds a tree from idx, writes a commit object with HEAD's current
// commit as parent (no parents if HEAD is unborn; two parents if a
// conflicted merge is in progress and has just been resolved), and advances
// HEAD. It refuses when idx still carries unresolved conflict stages, or
// when the resulting tree is unchanged from HEAD's tree and neither
// allowEmpty nor an in-progress merge applies.
func Commit(repo *Repository, idx *Index, message string, author, committer Signature, allowEmpty bool) (Hash, error) {
	if idx.HasConflicts() {
		return "", rvserr.New(rvserr.KindMergeConflict, "cannot commit: unresolved conflicts remain in the index")
	}

	tree, err := buildTreeFromIndex(repo, idx)
	if err != nil {
		return "", err
	}

	var parents []Hash
	parentHash := repo.Head()
	if parentHash != "" {
		parents = append(parents, parentHash)
	}

	mergeTheirs, mergeMsg, mergeInProgress := ReadMergeState(repo)
	if mergeInProgress {
		parents = append(parents, mergeTheirs)
		if message == "" {
			message = mergeMsg
		}
	}

	if !allowEmpty && !mergeInProgress && parentHash != "" {
		parentCommit, err := repo.GetCommit(parentHash)
		if err != nil {
			return "", err
		}
		if parentCommit.Tree == tree {
			return "", rvserr.New(rvserr.KindNothingToCommit, "nothing to commit, working tree clean")
		}
	}

	commit := &Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    author,
		Committer: committer,
		Message:   message,
	}
	hash, err := repo.WriteCommit(commit)
	if err != nil {
		return "", err
	}
	commit.ID = hash

	if repo.HeadDetached() {
		if err := repo.SetHeadDetached(hash); err != nil {
			return "", err
		}
	} else {
		if err := repo.AdvanceCurrentBranch(hash); err != nil {
			return "", err
		}
	}
	repo.RegisterCommit(commit)

	if mergeInProgress {
		if err := ClearMergeState(repo); err != nil {
			return "", err
		}
	}

	return hash, nil
}

// currentTree returns the tree hash of HEAD's commit, or "" if HEAD is unborn.
func currentTree(repo *Repository) (Hash, error) {
	head := repo.Head()
	if head == "" {
		return "", nil
	}
	commit, err := repo.GetCommit(head)
	if err != nil {
		return "", err
	}
	return commit.Tree, nil
}

// CheckoutBranch switches to branch name: materializes its tip's tree over
// the current HEAD tree, rebuilds idx to match, and points HEAD at the
// branch. Refuses if doing so would discard local modifications.
func CheckoutBranch(repo *Repository, idx *Index, name string) error {
	target, ok := repo.Branches()[name]
	if !ok {
		return rvserr.Newf(rvserr.KindInvalidRef, "branch %q not found", name)
	}
	commit, err := repo.GetCommit(target)
	if err != nil {
		return err
	}
	oldTree, err := currentTree(repo)
	if err != nil {
		return err
	}
	if err := MaterializeCheckout(repo, idx, oldTree, commit.Tree); err != nil {
		return err
	}
	if err := idx.Save(repo.IndexDir()); err != nil {
		return err
	}
	return repo.SetHeadToBranch(name)
}

// CheckoutNewBranch creates branch name at startPoint (or HEAD, if empty),
// then switches to it, exactly as `checkout -b`/`-B`.
func CheckoutNewBranch(repo *Repository, idx *Index, name, startPoint string, force bool) error {
	rev := startPoint
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := ResolveRevision(repo, rev)
	if err != nil {
		return err
	}
	if err := repo.CreateBranch(name, hash, force); err != nil {
		return err
	}
	return CheckoutBranch(repo, idx, name)
}

// CheckoutDetach points HEAD directly at rev's commit and materializes its
// tree, entering detached HEAD state.
func CheckoutDetach(repo *Repository, idx *Index, rev string) error {
	hash, err := ResolveRevision(repo, rev)
	if err != nil {
		return err
	}
	commit, err := repo.GetCommit(hash)
	if err != nil {
		return err
	}
	oldTree, err := currentTree(repo)
	if err != nil {
		return err
	}
	if err := MaterializeCheckout(repo, idx, oldTree, commit.Tree); err != nil {
		return err
	}
	if err := idx.Save(repo.IndexDir()); err != nil {
		return err
	}
	return repo.SetHeadDetached(hash)
}

// CheckoutPaths restores the listed paths from rev's tree into the working
// tree and the index, without moving HEAD.
func CheckoutPaths(repo *Repository, idx *Index, rev string, paths []string) error {
	hash, err := ResolveRevision(repo, rev)
	if err != nil {
		return err
	}
	commit, err := repo.GetCommit(hash)
	if err != nil {
		return err
	}
	if err := Materialize(repo, commit.Tree, repo.WorkDir(), paths); err != nil {
		return err
	}
	flat, err := flattenTreeWithMode(repo, commit.Tree, "")
	if err != nil {
		return err
	}
	for _, p := range paths {
		entry, ok := flat[p]
		if !ok {
			return rvserr.Newf(rvserr.KindUsageError, "pathspec %q did not match any file known to rvs", p)
		}
		diskPath := filepath.Join(repo.WorkDir(), filepath.FromSlash(p))
		info, statErr := os.Lstat(diskPath)
		if statErr == nil {
			idx.Add(p, parseTreeMode(entry.Mode), entry.ID, info)
		} else {
			idx.Add(p, parseTreeMode(entry.Mode), entry.ID, nil)
		}
	}
	return idx.Save(repo.IndexDir())
}

// Restore resolves source (defaulting to "HEAD") and either updates idx's
// stage-0 entries for paths (staged==true) or rewrites the paths on disk
// (staged==false), mirroring CheckoutPaths' per-path restoration.
func Restore(repo *Repository, idx *Index, source string, staged bool, paths []string) error {
	rev := source
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := ResolveRevision(repo, rev)
	if err != nil {
		return err
	}
	commit, err := repo.GetCommit(hash)
	if err != nil {
		return err
	}
	flat, err := flattenTreeWithMode(repo, commit.Tree, "")
	if err != nil {
		return err
	}

	for _, p := range paths {
		entry, ok := flat[p]
		if !ok {
			return rvserr.Newf(rvserr.KindUsageError, "pathspec %q did not match any file known to rvs", p)
		}
		if staged {
			diskPath := filepath.Join(repo.WorkDir(), filepath.FromSlash(p))
			info, statErr := os.Lstat(diskPath)
			if statErr == nil {
				idx.Add(p, parseTreeMode(entry.Mode), entry.ID, info)
			} else {
				idx.Add(p, parseTreeMode(entry.Mode), entry.ID, nil)
			}
			continue
		}
		content, err := repo.GetBlob(entry.ID)
		if err != nil {
			return err
		}
		if err := writeWorkingFile(repo.WorkDir(), p, entry.Mode, content); err != nil {
			return err
		}
	}

	if staged {
		return idx.Save(repo.IndexDir())
	}
	return nil
}

// Reset moves HEAD's current branch (or detached HEAD) to rev, and per mode
// also rewrites the index (ResetMixed, ResetHard) and the working tree
// (ResetHard only).
func Reset(repo *Repository, idx *Index, mode ResetMode, rev string) error {
	hash, err := ResolveRevision(repo, rev)
	if err != nil {
		return err
	}
	commit, err := repo.GetCommit(hash)
	if err != nil {
		return err
	}

	oldTree, err := currentTree(repo)
	if err != nil {
		return err
	}

	if repo.HeadDetached() {
		if err := repo.SetHeadDetached(hash); err != nil {
			return err
		}
	} else {
		if err := repo.AdvanceCurrentBranch(hash); err != nil {
			return err
		}
	}

	switch mode {
	case ResetSoft:
		return nil
	case ResetHard:
		if err := MaterializeCheckout(repo, idx, oldTree, commit.Tree); err != nil {
			return err
		}
		return idx.Save(repo.IndexDir())
	default: // ResetMixed
		return resetIndexToTree(repo, idx, commit.Tree)
	}
}

// resetIndexToTree rewrites idx's stage-0 entries to exactly match treeHash,
// without touching the working tree.
func resetIndexToTree(repo *Repository, idx *Index, treeHash Hash) error {
	flat, err := flattenTreeWithMode(repo, treeHash, "")
	if err != nil {
		return err
	}
	for _, p := range idx.ConflictPaths() {
		idx.Remove(p)
	}
	for _, e := range idx.Iter() {
		if _, ok := flat[e.Path]; !ok {
			idx.Remove(e.Path)
		}
	}
	workDir := repo.WorkDir()
	for p, entry := range flat {
		diskPath := filepath.Join(workDir, filepath.FromSlash(p))
		info, statErr := os.Lstat(diskPath)
		if statErr == nil {
			idx.Add(p, parseTreeMode(entry.Mode), entry.ID, info)
		} else {
			idx.Add(p, parseTreeMode(entry.Mode), entry.ID, nil)
		}
	}
	return idx.Save(repo.IndexDir())
}

// RemovePaths removes paths from idx and, unless cached is true, from the
// working tree. Refuses (unless force) when the on-disk content no longer
// matches what the index recorded, since that content would be lost.
func RemovePaths(repo *Repository, idx *Index, paths []string, cached, force bool) error {
	workDir := repo.WorkDir()
	for _, p := range paths {
		entry := idx.Get(p)
		if entry == nil {
			return rvserr.Newf(rvserr.KindUsageError, "pathspec %q did not match any tracked file", p)
		}
		if !cached && !force {
			diskHash, err := HashWorkingFile(repo, p)
			if err == nil && diskHash != entry.Hash {
				return rvserr.Newf(rvserr.KindDirtyWorkingTree, "%q has local modifications; use --force to remove anyway", p)
			}
		}
	}

	for _, p := range paths {
		idx.Remove(p)
		if !cached {
			diskPath := filepath.Join(workDir, filepath.FromSlash(p))
			if err := os.Remove(diskPath); err != nil && !os.IsNotExist(err) {
				return rvserr.WithPath(rvserr.KindIOError, diskPath, err)
			}
			pruneEmptyParents(workDir, filepath.Dir(diskPath))
		}
	}

	return idx.Save(repo.IndexDir())
}

// LsFiles returns every stage-0 index path, sorted.
func LsFiles(idx *Index) []string {
	entries := idx.Iter()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

// LsTreeEntry is one line of ls-tree output: a tree entry plus its full
// slash-separated path from the tree root.
type LsTreeEntry struct {
	Path string
	Mode string
	Type string
	ID   Hash
}

// LsTree lists treeHash's entries: one level deep, or every blob/tree
// recursively when recursive is true.
func LsTree(repo *Repository, treeHash Hash, recursive bool) ([]LsTreeEntry, error) {
	tree, err := repo.GetTree(treeHash)
	if err != nil {
		return nil, err
	}

	var out []LsTreeEntry
	for _, e := range tree.Entries {
		out = append(out, LsTreeEntry{Path: e.Name, Mode: e.Mode, Type: e.Type, ID: e.ID})
		if recursive && isTreeEntry(e) {
			sub, err := LsTree(repo, e.ID, true)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				out = append(out, LsTreeEntry{Path: e.Name + "/" + s.Path, Mode: s.Mode, Type: s.Type, ID: s.ID})
			}
		}
	}
	return out, nil
}

// CreateBranchFrom creates branch name at startPoint (HEAD if empty).
func CreateBranchFrom(repo *Repository, name, startPoint string, force bool) error {
	rev := startPoint
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := ResolveRevision(repo, rev)
	if err != nil {
		return err
	}
	return repo.CreateBranch(name, hash, force)
}

// DeleteBranchSafe deletes branch name, refusing (unless force) when its tip
// is not an ancestor of HEAD (i.e. it carries commits no other ref has).
func DeleteBranchSafe(repo *Repository, name string, force bool) error {
	tip, ok := repo.Branches()[name]
	if !ok {
		return rvserr.Newf(rvserr.KindInvalidRef, "branch not found: %s", name)
	}

	if !force {
		head := repo.Head()
		if head != "" {
			base, err := MergeBase(repo, head, tip)
			if err != nil || base != tip {
				return rvserr.Newf(rvserr.KindBranchNotFullyMerged,
					"branch %q is not fully merged; use -D to force deletion", name)
			}
		}
	}

	return repo.DeleteBranch(name)
}

// StashPush captures the current index and working tree as two auxiliary
// commits (parents: HEAD and the index commit) and pushes the result onto
// refs/stash, then hard-resets the working tree and index back to HEAD.
// When includeUntracked is true, untracked files are captured into the
// stash and removed from the working tree as well.
func StashPush(repo *Repository, idx *Index, message string, committer Signature, includeUntracked bool) (Hash, error) {
	head := repo.Head()
	if head == "" {
		return "", rvserr.New(rvserr.KindUnknownRev, "HEAD is unborn; nothing to stash")
	}
	headCommit, err := repo.GetCommit(head)
	if err != nil {
		return "", err
	}

	indexTree, err := buildTreeFromIndex(repo, idx)
	if err != nil {
		return "", err
	}
	if indexTree == headCommit.Tree && !includeUntracked {
		hasUntracked, err := workingTreeHasChanges(repo, idx)
		if err != nil {
			return "", err
		}
		if !hasUntracked {
			return "", rvserr.New(rvserr.KindNothingToCommit, "no local changes to save")
		}
	}

	indexCommit := &Commit{
		Tree: indexTree, Parents: []Hash{head},
		Author: committer, Committer: committer,
		Message: "index on " + stashBranchLabel(repo) + ": " + firstMessageLine(headCommit.Message),
	}
	indexCommitHash, err := repo.WriteCommit(indexCommit)
	if err != nil {
		return "", err
	}

	wtEntries := make(map[string]flatTreeEntry, len(idx.ByPath))
	for _, e := range idx.Iter() {
		oid := e.Hash
		mode := modeToTreeString(e.Mode)
		if diskOID, err := HashWorkingFile(repo, e.Path); err == nil && diskOID != e.Hash {
			content, rerr := os.ReadFile(filepath.Join(repo.WorkDir(), filepath.FromSlash(e.Path))) //nolint:gosec // G304: path is a tracked repository file
			if rerr == nil {
				written, werr := repo.WriteBlob(content)
				if werr == nil {
					oid = written
				}
			}
		}
		wtEntries[e.Path] = flatTreeEntry{ID: oid, Mode: mode}
	}

	parents := []Hash{head, indexCommitHash}
	if includeUntracked {
		untrackedPaths, err := collectUntrackedFiles(repo, idx)
		if err != nil {
			return "", err
		}
		for _, p := range untrackedPaths {
			content, err := os.ReadFile(filepath.Join(repo.WorkDir(), filepath.FromSlash(p))) //nolint:gosec // G304: path from a bounded working-tree walk
			if err != nil {
				continue
			}
			oid, err := repo.WriteBlob(content)
			if err != nil {
				return "", err
			}
			wtEntries[p] = flatTreeEntry{ID: oid, Mode: "100644"}
		}
	}

	wtTree, err := BuildTreeFromEntries(repo, wtEntries)
	if err != nil {
		return "", err
	}
	wtCommit := &Commit{
		Tree: wtTree, Parents: parents,
		Author: committer, Committer: committer,
		Message: message,
	}
	if wtCommit.Message == "" {
		wtCommit.Message = "WIP on " + stashBranchLabel(repo) + ": " + head.Short() + " " + firstMessageLine(headCommit.Message)
	}
	wtHash, err := repo.WriteCommit(wtCommit)
	if err != nil {
		return "", err
	}
	wtCommit.ID = wtHash
	repo.RegisterCommit(wtCommit)

	if err := repo.WriteStashRef(wtHash, wtCommit.Message); err != nil {
		return "", err
	}

	if err := MaterializeCheckout(repo, idx, indexTree, headCommit.Tree); err != nil {
		return "", err
	}
	if err := idx.Save(repo.IndexDir()); err != nil {
		return "", err
	}
	if includeUntracked {
		for p := range wtEntries {
			if _, tracked := idx.ByPath[p]; tracked {
				continue
			}
			diskPath := filepath.Join(repo.WorkDir(), filepath.FromSlash(p))
			_ = os.Remove(diskPath)
		}
	}

	return wtHash, nil
}

// StashApply re-applies the newest stash as a three-way merge of
// (base=the commit HEAD pointed at when stashed, ours=current HEAD, theirs=
// the stash's working-tree commit), leaving conflict markers and elevated
// index stages if it doesn't apply cleanly.
func StashApply(repo *Repository, idx *Index, committer Signature) error {
	stashes := repo.Stashes()
	if len(stashes) == 0 {
		return rvserr.New(rvserr.KindInvalidRef, "no stash entries found")
	}
	top := stashes[0]
	stashCommit, err := repo.GetCommit(top.Hash)
	if err != nil {
		return err
	}
	if len(stashCommit.Parents) < 1 {
		return rvserr.New(rvserr.KindRepositoryCorrupt, "malformed stash commit")
	}
	baseHash := stashCommit.Parents[0]
	baseCommit, err := repo.GetCommit(baseHash)
	if err != nil {
		return err
	}

	head := repo.Head()
	if head == "" {
		return rvserr.New(rvserr.KindUnknownRev, "HEAD is unborn; nothing to apply the stash onto")
	}
	oursCommit, err := repo.GetCommit(head)
	if err != nil {
		return err
	}

	merged, conflicts, err := mergeTrees(repo, idx, baseCommit.Tree, oursCommit.Tree, stashCommit.Tree, "Updated upstream", "Stashed changes")
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		if err := idx.Save(repo.IndexDir()); err != nil {
			return err
		}
		return rvserr.New(rvserr.KindMergeConflict, "conflicts applying the stash; fix conflicts and then commit or stash drop")
	}

	mergedTree, err := BuildTreeFromEntries(repo, merged)
	if err != nil {
		return err
	}
	if err := MaterializeCheckout(repo, idx, oursCommit.Tree, mergedTree); err != nil {
		return err
	}
	return idx.Save(repo.IndexDir())
}

// StashPop applies the newest stash (see StashApply) and, only on a clean
// apply, drops it from refs/stash.
func StashPop(repo *Repository, idx *Index, committer Signature) error {
	if err := StashApply(repo, idx, committer); err != nil {
		return err
	}
	return repo.PopStashRef()
}

func stashBranchLabel(repo *Repository) string {
	if ref := repo.HeadRef(); ref != "" {
		return strings.TrimPrefix(ref, "refs/heads/")
	}
	return repo.Head().Short()
}

func firstMessageLine(msg string) string {
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		return msg[:idx]
	}
	return msg
}

// workingTreeHasChanges reports whether any tracked file's on-disk content
// differs from the index, or any untracked file exists.
func workingTreeHasChanges(repo *Repository, idx *Index) (bool, error) {
	for _, e := range idx.Iter() {
		diskOID, err := HashWorkingFile(repo, e.Path)
		if err != nil {
			return true, nil // missing/unreadable counts as a change
		}
		if diskOID != e.Hash {
			return true, nil
		}
	}
	paths, err := collectUntrackedFiles(repo, idx)
	if err != nil {
		return false, err
	}
	return len(paths) > 0, nil
}

// collectUntrackedFiles walks the working tree for files absent from idx and
// not excluded by the ignore matcher.
func collectUntrackedFiles(repo *Repository, idx *Index) ([]string, error) {
	workDir := repo.WorkDir()
	ignores := loadIgnoreMatcher(workDir, repo.GitDir())

	var out []string
	err := filepath.WalkDir(workDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if d.IsDir() {
			if d.Name() == ".rvs" {
				return filepath.SkipDir
			}
			if p != workDir {
				relDir, relErr := filepath.Rel(workDir, p)
				if relErr == nil {
					relDir = filepath.ToSlash(relDir)
					if ignores.isIgnored(relDir, true) {
						return filepath.SkipDir
					}
					ignores.loadFile(workDir, relDir+"/")
				}
			}
			return nil
		}
		rel, relErr := filepath.Rel(workDir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if idx.Contains(rel) {
			return nil
		}
		if ignores.isIgnored(rel, false) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, rvserr.WithPath(rvserr.KindIOError, workDir, err)
	}
	return out, nil
}
