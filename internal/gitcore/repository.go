package gitcore

import (
	"container/heap"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Repository represents an RVS repository, providing access to its commits,
// branches, stashes, and other metadata, plus the mutation entry points the
// porcelain layer drives.
type Repository struct {
	gitDir  string
	workDir string

	// privateDir holds HEAD and the index. For the main worktree this is
	// the same as gitDir; for a linked worktree (registered under
	// gitDir/worktrees/<name>) it is that private metadata directory, while
	// gitDir itself points at the shared object/ref store the worktrees
	// have in common.
	privateDir string

	refs      map[string]Hash
	commits   []*Commit
	commitMap map[Hash]*Commit
	stashes   []StashEntry

	head         Hash
	headRef      string
	headDetached bool

	mu sync.RWMutex
}

// NewEmptyRepository returns a Repository with all maps initialized but
// containing no data.
func NewEmptyRepository() *Repository {
	return &Repository{
		refs:    make(map[string]Hash),
		commits: make([]*Commit, 0),
		stashes: make([]StashEntry, 0),
	}
}

// NewRepository opens an RVS repository starting from path, which can be the
// working directory, the .rvs directory, or any parent directory.
func NewRepository(path string) (*Repository, error) {
	gitDir, workDir, privateDir, err := findGitDirectory(path)
	if err != nil {
		return nil, err
	}
	if err := validateGitDirectory(gitDir); err != nil {
		return nil, err
	}

	repo := &Repository{
		gitDir:     gitDir,
		workDir:    workDir,
		privateDir: privateDir,
		refs:       make(map[string]Hash),
		commits:    make([]*Commit, 0),
		stashes:    make([]StashEntry, 0),
	}

	if err := repo.Reload(); err != nil {
		return nil, err
	}

	return repo, nil
}

// Reload re-reads refs, stashes, and the reachable commit graph from disk.
// Porcelain operations that mutate refs/objects through other Repository
// methods keep the in-memory ref cache consistent themselves; Reload exists
// for callers (tests, long-lived CLI sessions) that need to pick up changes
// made by another process or directly on disk.
func (r *Repository) Reload() error {
	if err := r.loadRefs(); err != nil {
		return fmt.Errorf("failed to load refs: %w", err)
	}

	r.mu.Lock()
	r.stashes = r.loadStashes()
	r.mu.Unlock()

	r.loadObjects()

	return nil
}

// Name returns the base name of the repository's working directory.
func (r *Repository) Name() string { return filepath.Base(r.workDir) }

// GitDir returns the path to the repository's shared .rvs directory, which
// holds the object store and refs common to the main worktree and every
// linked worktree.
func (r *Repository) GitDir() string { return r.gitDir }

// IndexDir returns the directory holding this worktree's private HEAD and
// index: gitDir itself for the main worktree, or the linked worktree's
// metadata directory under gitDir/worktrees/<name>.
func (r *Repository) IndexDir() string { return r.privateDir }

// WorkDir returns the path to the repository's working directory.
func (r *Repository) WorkDir() string { return r.workDir }

// IsBare reports whether the repository is a bare repository.
func (r *Repository) IsBare() bool { return r.gitDir == r.workDir }

// Commits returns a map of all commits in the repository keyed by their hash.
// The returned map is built on first use and must not be modified.
func (r *Repository) Commits() map[Hash]*Commit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commitsMap()
}

// commitsMap returns the cached commit map, building it on first use.
// Caller must hold r.mu (read or write lock held by the caller already).
func (r *Repository) commitsMap() map[Hash]*Commit {
	if r.commitMap == nil {
		r.commitMap = make(map[Hash]*Commit, len(r.commits))
		for _, c := range r.commits {
			r.commitMap[c.ID] = c
		}
	}
	return r.commitMap
}

// CommitCount returns the number of commits without building a map.
func (r *Repository) CommitCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commits)
}

// Branches returns a map of branch names to their tip commit hashes.
func (r *Repository) Branches() map[string]Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]Hash)
	for ref, hash := range r.refs {
		if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
			result[name] = hash
		}
	}
	return result
}

// Head returns the hash of the current HEAD commit.
func (r *Repository) Head() Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// HeadRef returns the symbolic ref (e.g., "refs/heads/main"), or empty string if detached.
func (r *Repository) HeadRef() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.headRef
}

// HeadDetached reports whether the repository is in a detached HEAD state.
func (r *Repository) HeadDetached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.headDetached
}

// Description returns the .rvs/description contents, or empty string if
// the file is missing or contains the default placeholder text.
func (r *Repository) Description() string {
	descPath := filepath.Join(r.gitDir, "description")
	//nolint:gosec // G304: Description path is controlled by repository structure
	content, err := os.ReadFile(descPath)
	if err != nil {
		return ""
	}

	desc := strings.TrimSpace(string(content))
	if desc == "Unnamed repository; edit this file 'description' to name the repository." {
		return ""
	}

	return desc
}

// Stashes returns all stash entries in the repository, newest first.
func (r *Repository) Stashes() []StashEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stashes
}

// GetTree retrieves a Tree object by its hash.
func (r *Repository) GetTree(treeHash Hash) (*Tree, error) {
	object, err := r.readObject(treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree object: %w", err)
	}

	tree, ok := object.(*Tree)
	if !ok {
		return nil, fmt.Errorf("object %s is not a tree", treeHash)
	}

	return tree, nil
}

// GetBlob retrieves raw blob data by its hash.
func (r *Repository) GetBlob(blobHash Hash) ([]byte, error) {
	objectData, objectType, err := r.readObjectData(blobHash)
	if err != nil {
		return nil, fmt.Errorf("blob not found: %s", blobHash)
	}

	if objectType != BlobObject {
		return nil, fmt.Errorf("object %s is not a blob (type %d)", blobHash, objectType)
	}

	return objectData, nil
}

// GetCommit looks up a single commit by hash using the cached commit map.
func (r *Repository) GetCommit(hash Hash) (*Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.commitsMap()[hash]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("commit not found: %s", hash)
}

// GetCommits returns full Commit objects for the given hashes.
// Unknown hashes are silently skipped.
func (r *Repository) GetCommits(hashes []Hash) []*Commit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cm := r.commitsMap()
	result := make([]*Commit, 0, len(hashes))
	for _, h := range hashes {
		if c, ok := cm[h]; ok {
			result = append(result, c)
		}
	}
	return result
}

// GetObjectInfo returns the object type name and size in bytes for any object.
func (r *Repository) GetObjectInfo(hash Hash) (string, int, error) {
	data, typ, err := r.readObjectData(hash)
	if err != nil {
		return "", 0, err
	}
	return typ.String(), len(data), nil
}

// RegisterCommit adds a freshly written commit to the in-memory commit graph
// without a full Reload, so callers (e.g. the porcelain Commit operation)
// can immediately reference it via CommitLog/GetCommit.
func (r *Repository) RegisterCommit(c *Commit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitMap == nil {
		r.commitMap = make(map[Hash]*Commit, len(r.commits)+1)
	}
	if _, exists := r.commitMap[c.ID]; exists {
		return
	}
	r.commits = append(r.commits, c)
	r.commitMap[c.ID] = c
}

// commitHeap is a max-heap of commits sorted by committer date (newest first).
type commitHeap []*Commit

func (h commitHeap) Len() int {
	return len(h)
}

func (h commitHeap) Less(i, j int) bool {
	return h[i].Committer.When.After(h[j].Committer.When)
}

func (h commitHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *commitHeap) Push(x any) {
	*h = append(*h, x.(*Commit)) //nolint:errcheck // heap only stores *Commit; assertion always succeeds
}

func (h *commitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// CommitLog walks from start (or HEAD, if start is empty) through parents in
// reverse chronological order. If maxCount <= 0 all reachable commits are
// returned.
func (r *Repository) CommitLog(start Hash, maxCount int) []*Commit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	startHash := start
	if startHash == "" {
		startHash = r.head
	}
	if startHash == "" {
		return nil
	}

	cm := r.commitsMap()
	startCommit, ok := cm[startHash]
	if !ok {
		return nil
	}

	visited := make(map[Hash]bool)
	h := &commitHeap{}
	heap.Init(h)
	heap.Push(h, startCommit)
	visited[startCommit.ID] = true

	var result []*Commit
	for h.Len() > 0 {
		if maxCount > 0 && len(result) >= maxCount {
			break
		}
		c := heap.Pop(h).(*Commit) //nolint:errcheck // heap only stores *Commit; assertion always succeeds
		result = append(result, c)

		for _, parentHash := range c.Parents {
			if visited[parentHash] {
				continue
			}
			visited[parentHash] = true
			if parent, found := cm[parentHash]; found {
				heap.Push(h, parent)
			}
		}
	}
	return result
}

// resolveTreeAtPath walks from rootTreeHash through a slash-separated dirPath
// (e.g., "internal/gitcore") and returns the tree at that location.
// Empty dirPath returns the root tree itself.
func (r *Repository) resolveTreeAtPath(rootTreeHash Hash, dirPath string) (*Tree, error) {
	if dirPath == "" || dirPath == "/" {
		return r.GetTree(rootTreeHash)
	}

	components := strings.Split(strings.Trim(dirPath, "/"), "/")
	currentTreeHash := rootTreeHash

	for _, component := range components {
		tree, err := r.GetTree(currentTreeHash)
		if err != nil {
			return nil, fmt.Errorf("failed to read tree %s: %w", currentTreeHash, err)
		}

		found := false
		for _, entry := range tree.Entries {
			if entry.Name == component {
				if entry.Mode != "040000" && entry.Type != "tree" {
					return nil, fmt.Errorf("path component %q is not a directory", component)
				}
				currentTreeHash = entry.ID
				found = true
				break
			}
		}

		if !found {
			return nil, fmt.Errorf("path component %q not found", component)
		}
	}

	return r.GetTree(currentTreeHash)
}

// findGitDirectory walks up from startPath to locate the .rvs directory (or
// a linked worktree's .rvs pointer file). The returned gitDir is always the
// shared store (objects/refs); privateDir is where HEAD/index for this
// particular worktree live, equal to gitDir except for linked worktrees.
func findGitDirectory(startPath string) (gitDir string, workDir string, privateDir string, err error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if filepath.Base(absPath) == ".rvs" {
		info, err := os.Stat(absPath)
		if err == nil && info.IsDir() {
			return absPath, filepath.Dir(absPath), absPath, nil
		}
	}

	if isBareRepository(absPath) {
		return absPath, absPath, absPath, nil
	}

	currentPath := absPath
	for {
		rvsPath := filepath.Join(currentPath, ".rvs")

		info, err := os.Stat(rvsPath)
		if err == nil {
			if info.IsDir() {
				return rvsPath, currentPath, rvsPath, nil
			}
			return handleGitFile(rvsPath, currentPath)
		}

		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", "", "", fmt.Errorf("not an rvs repository (or any parent up to mount point): %s", startPath)
		}
		currentPath = parentPath
	}
}

// handleGitFile handles ".rvs" files (linked worktrees) with format
// "rvsdir: <path>". The target directory holds this worktree's private
// HEAD/index; its "commondir" file (written by AddWorktree) points back at
// the shared object/ref store, which is what callers should use as gitDir.
func handleGitFile(gitFilePath string, workDir string) (gitDir, resolvedWorkDir, privateDir string, err error) {
	//nolint:gosec // G304: .rvs file path is controlled by repository location
	content, err := os.ReadFile(gitFilePath)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read .rvs file: %w", err)
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "rvsdir: ") {
		return "", "", "", fmt.Errorf("invalid .rvs file format: %s", gitFilePath)
	}

	privDir := strings.TrimPrefix(line, "rvsdir: ")
	if !filepath.IsAbs(privDir) {
		privDir = filepath.Join(filepath.Dir(gitFilePath), privDir)
	}
	privDir = filepath.Clean(privDir)

	if _, err := os.Stat(privDir); err != nil {
		return "", "", "", fmt.Errorf("rvsdir points to non-existent directory: %s", privDir)
	}

	sharedDir := privDir
	//nolint:gosec // G304: commondir path is controlled by repository location
	if commondirContent, err := os.ReadFile(filepath.Join(privDir, "commondir")); err == nil {
		commondir := strings.TrimSpace(string(commondirContent))
		if !filepath.IsAbs(commondir) {
			commondir = filepath.Join(privDir, commondir)
		}
		sharedDir = filepath.Clean(commondir)
	}

	return sharedDir, workDir, privDir, nil
}

// validateGitDirectory checks that gitDir exists, is a directory, and contains
// the expected RVS internals (objects, refs, HEAD).
func validateGitDirectory(gitDir string) error {
	info, err := os.Stat(gitDir)
	if err != nil {
		return fmt.Errorf("rvs directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("rvs path is not a directory: %s", gitDir)
	}

	requiredPaths := []string{"objects", "refs", "HEAD"}
	for _, required := range requiredPaths {
		path := filepath.Join(gitDir, required)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("invalid rvs repository, missing: %s", required)
		}
	}

	return nil
}

// isBareRepository checks whether path looks like a bare repository.
// A bare repo is a directory containing objects/, refs/, and HEAD but no .rvs subdirectory.
func isBareRepository(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(path, ".rvs")); err == nil {
		return false
	}
	for _, required := range []string{"objects", "refs", "HEAD"} {
		if _, err := os.Stat(filepath.Join(path, required)); err != nil {
			return false
		}
	}
	return true
}
