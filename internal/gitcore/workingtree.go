package gitcore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rvs-vcs/rvs/internal/rvserr"
)

// NormalizePath converts rawPath (which may be absolute, contain backslashes,
// a leading "./", or redundant "." / ".." segments) into a path relative to
// root using forward slashes, rejecting anything that escapes root or that
// targets the .rvs metadata prefix.
func NormalizePath(root, rawPath string) (string, error) {
	clean := strings.ReplaceAll(rawPath, "\\", "/")

	var abs string
	if filepath.IsAbs(clean) {
		abs = filepath.Clean(clean)
	} else {
		abs = filepath.Clean(filepath.Join(root, clean))
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", rvserr.WithPath(rvserr.KindPathOutsideRepo, rawPath, err)
	}
	rel = filepath.ToSlash(rel)

	if rel == "." {
		return "", rvserr.Newf(rvserr.KindPathOutsideRepo, "empty path")
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", rvserr.Newf(rvserr.KindPathOutsideRepo, "path %q escapes the working tree", rawPath)
	}
	if rel == ".rvs" || strings.HasPrefix(rel, ".rvs/") {
		return "", rvserr.Newf(rvserr.KindPathOutsideRepo, "refusing to touch metadata path %q", rawPath)
	}

	return rel, nil
}

// StageFile reads the on-disk content at path (relative to repo.WorkDir()),
// writes it as a blob, and records the resulting mode/oid/stat in idx. It is
// idempotent: staging unchanged content reproduces the same index entry.
func StageFile(repo *Repository, idx *Index, path string) error {
	diskPath := filepath.Join(repo.WorkDir(), filepath.FromSlash(path))

	info, err := os.Lstat(diskPath)
	if err != nil {
		return rvserr.WithPath(rvserr.KindIOError, diskPath, err)
	}
	if !info.Mode().IsRegular() {
		return rvserr.Newf(rvserr.KindUsageError, "%s: not a regular file", path)
	}

	//nolint:gosec // G304: path is relative to the repository working directory
	content, err := os.ReadFile(diskPath)
	if err != nil {
		return rvserr.WithPath(rvserr.KindIOError, diskPath, err)
	}

	oid, err := repo.WriteBlob(content)
	if err != nil {
		return err
	}

	idx.Add(path, statEntryMode(info), oid, info)
	return nil
}

// HashWorkingFile computes the blob OID of the on-disk file at path without
// writing an object, for dirty-detection against an index entry.
func HashWorkingFile(repo *Repository, path string) (Hash, error) {
	diskPath := filepath.Join(repo.WorkDir(), filepath.FromSlash(path))
	//nolint:gosec // G304: path is relative to the repository working directory
	content, err := os.ReadFile(diskPath)
	if err != nil {
		return "", rvserr.WithPath(rvserr.KindIOError, diskPath, err)
	}
	return hashBlobContent(content), nil
}

// writeWorkingFile writes content to destDir/relPath, creating parent
// directories as needed and honoring the executable bit encoded in mode
// ("100755" vs "100644").
func writeWorkingFile(destDir, relPath, mode string, content []byte) error {
	diskPath := filepath.Join(destDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(diskPath), 0o755); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, filepath.Dir(diskPath), err)
	}

	perm := os.FileMode(0o644)
	if mode == "100755" {
		perm = 0o755
	}

	if err := os.WriteFile(diskPath, content, perm); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, diskPath, err)
	}
	return nil
}

// Materialize writes the blobs named by targetPaths (or, if targetPaths is
// empty, every file in the tree) from treeHash to destDir, creating parent
// directories and preserving the executable bit.
func Materialize(repo *Repository, treeHash Hash, destDir string, targetPaths []string) error {
	flat, err := flattenTreeWithMode(repo, treeHash, "")
	if err != nil {
		return err
	}

	paths := targetPaths
	if len(paths) == 0 {
		paths = make([]string, 0, len(flat))
		for p := range flat {
			paths = append(paths, p)
		}
	}

	for _, p := range paths {
		entry, ok := flat[p]
		if !ok {
			return rvserr.Newf(rvserr.KindUsageError, "pathspec %q did not match any file known to rvs", p)
		}
		content, err := repo.GetBlob(entry.ID)
		if err != nil {
			return err
		}
		if err := writeWorkingFile(destDir, p, entry.Mode, content); err != nil {
			return err
		}
	}
	return nil
}

// flatTreeEntry is a leaf (blob) entry discovered by flattenTreeWithMode,
// keyed by its full slash-separated path.
type flatTreeEntry struct {
	ID   Hash
	Mode string
}

// flattenTreeWithMode is flattenTree's counterpart that also retains each
// leaf's mode, needed to preserve the executable bit on materialization.
func flattenTreeWithMode(repo *Repository, treeHash Hash, prefix string) (map[string]flatTreeEntry, error) {
	result := make(map[string]flatTreeEntry)

	tree, err := repo.GetTree(treeHash)
	if err != nil {
		return nil, err
	}

	for _, entry := range tree.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = prefix + "/" + entry.Name
		}

		if isTreeEntry(entry) {
			sub, err := flattenTreeWithMode(repo, entry.ID, fullPath)
			if err != nil {
				return nil, err
			}
			for p, e := range sub {
				result[p] = e
			}
		} else {
			result[fullPath] = flatTreeEntry{ID: entry.ID, Mode: entry.Mode}
		}
	}

	return result, nil
}

// BuildTreeFromEntries writes the tree objects (and any needed intermediate
// subtrees) for a flat path->entry map and returns the root tree hash. Used
// by both the commit path (building a tree from the index) and the merge
// path (building a tree from a merged file set).
func BuildTreeFromEntries(repo *Repository, entries map[string]flatTreeEntry) (Hash, error) {
	type dirNode struct {
		files map[string]flatTreeEntry
		dirs  map[string]*dirNode
	}
	newDirNode := func() *dirNode {
		return &dirNode{files: make(map[string]flatTreeEntry), dirs: make(map[string]*dirNode)}
	}

	root := newDirNode()
	for path, e := range entries {
		parts := strings.Split(path, "/")
		cur := root
		for _, name := range parts[:len(parts)-1] {
			child, ok := cur.dirs[name]
			if !ok {
				child = newDirNode()
				cur.dirs[name] = child
			}
			cur = child
		}
		cur.files[parts[len(parts)-1]] = e
	}

	var writeNode func(n *dirNode) (Hash, error)
	writeNode = func(n *dirNode) (Hash, error) {
		treeEntries := make([]TreeEntry, 0, len(n.files)+len(n.dirs))
		for name, e := range n.files {
			treeEntries = append(treeEntries, TreeEntry{Name: name, Mode: e.Mode, Type: "blob", ID: e.ID})
		}
		for name, child := range n.dirs {
			sub, err := writeNode(child)
			if err != nil {
				return "", err
			}
			treeEntries = append(treeEntries, TreeEntry{Name: name, Mode: "40000", Type: "tree", ID: sub})
		}
		return repo.WriteTree(treeEntries)
	}

	return writeNode(root)
}

// MaterializeCheckout reconciles the working tree at repo.WorkDir() from
// oldTreeHash to newTreeHash: files whose content changed or were added are
// (re)written, files tracked in oldTreeHash but absent from newTreeHash are
// deleted, and idx is updated so its stage-0 entries exactly mirror
// newTreeHash. oldTreeHash may be empty (fresh checkout with no prior tree).
//
// Before writing or deleting any path, the on-disk content is compared
// against what oldTreeHash recorded; a mismatch means the working tree holds
// local modifications that the checkout would silently discard, and the
// whole operation is aborted with KindDirtyWorkingTree before any file is
// touched.
func MaterializeCheckout(repo *Repository, idx *Index, oldTreeHash, newTreeHash Hash) error {
	var oldFlat map[string]flatTreeEntry
	var err error
	if oldTreeHash != "" {
		oldFlat, err = flattenTreeWithMode(repo, oldTreeHash, "")
		if err != nil {
			return err
		}
	} else {
		oldFlat = map[string]flatTreeEntry{}
	}

	newFlat, err := flattenTreeWithMode(repo, newTreeHash, "")
	if err != nil {
		return err
	}

	workDir := repo.WorkDir()

	// Safety pass: refuse before mutating anything if any path we are about
	// to write or delete has diverged from what oldTreeHash recorded.
	for p, oldEntry := range oldFlat {
		if newEntry, stillPresent := newFlat[p]; stillPresent && newEntry.ID == oldEntry.ID && newEntry.Mode == oldEntry.Mode {
			continue
		}
		if err := checkNotDirty(workDir, p, oldEntry.ID); err != nil {
			return err
		}
	}
	for p, newEntry := range newFlat {
		oldEntry, existedBefore := oldFlat[p]
		if existedBefore && oldEntry.ID == newEntry.ID {
			continue
		}
		if !existedBefore {
			if err := checkNoUntrackedCollision(workDir, p); err != nil {
				return err
			}
		}
	}

	// Write additions/modifications.
	for p, newEntry := range newFlat {
		if oldEntry, ok := oldFlat[p]; ok && oldEntry.ID == newEntry.ID && oldEntry.Mode == newEntry.Mode {
			continue
		}
		content, err := repo.GetBlob(newEntry.ID)
		if err != nil {
			return err
		}
		if err := writeWorkingFile(workDir, p, newEntry.Mode, content); err != nil {
			return err
		}
	}

	// Delete paths tracked before but no longer present.
	for p := range oldFlat {
		if _, stillPresent := newFlat[p]; stillPresent {
			continue
		}
		diskPath := filepath.Join(workDir, filepath.FromSlash(p))
		if err := os.Remove(diskPath); err != nil && !os.IsNotExist(err) {
			return rvserr.WithPath(rvserr.KindIOError, diskPath, err)
		}
		pruneEmptyParents(workDir, filepath.Dir(diskPath))
	}

	// Rebuild the index to mirror newTreeHash exactly.
	for _, p := range idx.ConflictPaths() {
		idx.Remove(p)
	}
	for _, e := range idx.Iter() {
		if _, stillPresent := newFlat[e.Path]; !stillPresent {
			idx.Remove(e.Path)
		}
	}
	for p, newEntry := range newFlat {
		diskPath := filepath.Join(workDir, filepath.FromSlash(p))
		info, statErr := os.Lstat(diskPath)
		mode := parseTreeMode(newEntry.Mode)
		if statErr == nil {
			idx.Add(p, mode, newEntry.ID, info)
		} else {
			idx.Add(p, mode, newEntry.ID, nil)
		}
	}

	return nil
}

// checkNotDirty errors with KindDirtyWorkingTree if the on-disk file at path
// no longer matches expectedHash (i.e. it carries unstaged local edits that a
// checkout would discard). A missing file is not considered dirty — it was
// already removed by the user, which checkout/reset is free to proceed past.
func checkNotDirty(workDir, path string, expectedHash Hash) error {
	diskPath := filepath.Join(workDir, filepath.FromSlash(path))
	//nolint:gosec // G304: path is relative to the repository working directory
	content, err := os.ReadFile(diskPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return rvserr.WithPath(rvserr.KindIOError, diskPath, err)
	}
	if hashBlobContent(content) != expectedHash {
		return rvserr.Newf(rvserr.KindDirtyWorkingTree,
			"your local changes to %q would be overwritten by checkout", path)
	}
	return nil
}

// checkNoUntrackedCollision errors with KindDirtyWorkingTree if an untracked
// file already exists at path, since materializing the incoming tree there
// would silently clobber it.
func checkNoUntrackedCollision(workDir, path string) error {
	diskPath := filepath.Join(workDir, filepath.FromSlash(path))
	if _, err := os.Lstat(diskPath); err == nil {
		return rvserr.Newf(rvserr.KindDirtyWorkingTree,
			"untracked working tree file %q would be overwritten by checkout", path)
	}
	return nil
}

// pruneEmptyParents removes dir and any now-empty ancestors up to (but not
// including) workDir, mirroring Git's behavior of not leaving empty
// directories behind after a tracked file is the last occupant removed.
func pruneEmptyParents(workDir, dir string) {
	for dir != workDir && strings.HasPrefix(dir, workDir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// parseTreeMode converts a tree entry mode string ("100644", "100755",
// "40000"/"040000") into the numeric mode index.go expects.
func parseTreeMode(mode string) uint32 {
	switch mode {
	case "100755":
		return 0o100755
	case "40000", "040000":
		return 0o40000
	default:
		return 0o100644
	}
}
