package gitcore

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rvs-vcs/rvs/internal/rvserr"
)

// WorktreeInfo describes one worktree known to the registry: the main
// checkout plus every entry under .rvs/worktrees/.
type WorktreeInfo struct {
	Path     string
	Head     Hash
	Branch   string // branch name, or "" when Detached
	Detached bool
	Locked   bool
	Main     bool
}

// ResolveRevision resolves rev to a commit hash: "HEAD", "HEAD~N"/"<branch>~N"
// ancestor syntax, a branch name, a full 40-char hash, or an unambiguous
// short prefix (>=4 chars).
func ResolveRevision(repo *Repository, rev string) (Hash, error) {
	base, ancestorN, err := splitRevisionAncestor(rev)
	if err != nil {
		return "", err
	}

	hash, err := resolveRevisionBase(repo, base)
	if err != nil {
		return "", err
	}

	for i := 0; i < ancestorN; i++ {
		commit, err := repo.GetCommit(hash)
		if err != nil {
			return "", rvserr.WithRef(rvserr.KindUnknownRev, rev, err)
		}
		if len(commit.Parents) == 0 {
			return "", rvserr.Newf(rvserr.KindUnknownRev, "%s: no ancestor at that depth", rev)
		}
		hash = commit.Parents[0]
	}

	return hash, nil
}

func splitRevisionAncestor(rev string) (base string, n int, err error) {
	idx := strings.Index(rev, "~")
	if idx == -1 {
		return rev, 0, nil
	}
	base = rev[:idx]
	suffix := rev[idx+1:]
	if suffix == "" {
		return base, 1, nil
	}
	count := 0
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return "", 0, rvserr.Newf(rvserr.KindInvalidRef, "invalid ancestor suffix in revision %q", rev)
		}
		count = count*10 + int(c-'0')
	}
	return base, count, nil
}

func resolveRevisionBase(repo *Repository, rev string) (Hash, error) {
	if rev == "HEAD" {
		h := repo.Head()
		if h == "" {
			return "", rvserr.New(rvserr.KindUnknownRev, "HEAD is not set")
		}
		return h, nil
	}

	if len(rev) == 40 {
		if h, err := NewHash(rev); err == nil {
			if _, err := repo.GetCommit(h); err == nil {
				return h, nil
			}
		}
	}

	branches := repo.Branches()
	if hash, ok := branches[rev]; ok {
		return hash, nil
	}

	if len(rev) >= 4 && len(rev) < 40 {
		return repo.ResolvePrefix(rev)
	}

	return "", rvserr.Newf(rvserr.KindUnknownRev, "unknown revision: %s", rev)
}

// AddWorktree registers a new linked worktree rooted at path, checked out at
// startPoint (a branch name or any revision ResolveRevision accepts).
func AddWorktree(repo *Repository, path, startPoint string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return rvserr.WithPath(rvserr.KindIOError, path, err)
	}

	name := filepath.Base(absPath)
	metaDir := filepath.Join(repo.GitDir(), "worktrees", name)
	if _, err := os.Stat(metaDir); err == nil {
		return rvserr.Newf(rvserr.KindWorktreeExists, "worktree metadata already exists for %q", name)
	}
	if _, err := os.Stat(absPath); err == nil {
		return rvserr.Newf(rvserr.KindWorktreeExists, "%q already exists", path)
	}

	hash, err := ResolveRevision(repo, startPoint)
	if err != nil {
		return err
	}

	branches := repo.Branches()
	branchName := ""
	if b, ok := branches[startPoint]; ok && b == hash {
		branchName = startPoint
	}

	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, metaDir, err)
	}

	headContent := string(hash) + "\n"
	if branchName != "" {
		headContent = "ref: refs/heads/" + branchName + "\n"
	}
	if err := os.WriteFile(filepath.Join(metaDir, "HEAD"), []byte(headContent), 0o644); err != nil { //nolint:gosec // G306: ref metadata is non-sensitive
		return rvserr.WithPath(rvserr.KindIOError, metaDir, err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, "commondir"), []byte("../..\n"), 0o644); err != nil { //nolint:gosec // G306
		return rvserr.WithPath(rvserr.KindIOError, metaDir, err)
	}
	gitFilePath := filepath.Join(absPath, ".rvs")
	if err := os.WriteFile(filepath.Join(metaDir, "gitdir"), []byte(gitFilePath+"\n"), 0o644); err != nil { //nolint:gosec // G306
		return rvserr.WithPath(rvserr.KindIOError, metaDir, err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, absPath, err)
	}
	if err := os.WriteFile(gitFilePath, []byte("rvsdir: "+metaDir+"\n"), 0o644); err != nil { //nolint:gosec // G306
		return rvserr.WithPath(rvserr.KindIOError, gitFilePath, err)
	}

	commit, err := repo.GetCommit(hash)
	if err != nil {
		return err
	}
	if err := Materialize(repo, commit.Tree, absPath, nil); err != nil {
		return err
	}

	idx := NewIndex()
	flat, err := flattenTreeWithMode(repo, commit.Tree, "")
	if err != nil {
		return err
	}
	for p, e := range flat {
		diskPath := filepath.Join(absPath, filepath.FromSlash(p))
		info, statErr := os.Lstat(diskPath)
		if statErr == nil {
			idx.Add(p, parseTreeMode(e.Mode), e.ID, info)
		} else {
			idx.Add(p, parseTreeMode(e.Mode), e.ID, nil)
		}
	}
	if err := idx.Save(metaDir); err != nil {
		return err
	}

	return nil
}

// ListWorktrees enumerates the main worktree plus every linked worktree
// registered under .rvs/worktrees/, fanning the per-worktree metadata reads
// out with errgroup since each is an independent set of small file reads.
func ListWorktrees(repo *Repository) ([]WorktreeInfo, error) {
	main := WorktreeInfo{
		Path:     repo.WorkDir(),
		Head:     repo.Head(),
		Detached: repo.HeadDetached(),
		Main:     true,
	}
	if ref := repo.HeadRef(); ref != "" {
		main.Branch = strings.TrimPrefix(ref, "refs/heads/")
	}

	worktreesDir := filepath.Join(repo.GitDir(), "worktrees")
	entries, err := os.ReadDir(worktreesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []WorktreeInfo{main}, nil
		}
		return nil, rvserr.WithPath(rvserr.KindIOError, worktreesDir, err)
	}

	results := make([]WorktreeInfo, len(entries))
	var g errgroup.Group
	for i, e := range entries {
		metaDir := filepath.Join(worktreesDir, e.Name())
		idx := i
		g.Go(func() error {
			info, err := readWorktreeMetadata(repo, metaDir)
			if err != nil {
				return err
			}
			results[idx] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append([]WorktreeInfo{main}, results...), nil
}

// readWorktreeMetadata loads one linked worktree's HEAD, path, and lock
// state from its metadata directory.
func readWorktreeMetadata(repo *Repository, metaDir string) (WorktreeInfo, error) {
	var info WorktreeInfo

	gitdirPath := filepath.Join(metaDir, "gitdir")
	//nolint:gosec // G304: worktree metadata path is controlled by the repository structure
	gitdirContent, err := os.ReadFile(gitdirPath)
	if err != nil {
		return info, rvserr.WithPath(rvserr.KindIOError, gitdirPath, err)
	}
	gitFile := strings.TrimSpace(string(gitdirContent))
	info.Path = filepath.Dir(gitFile)

	headPath := filepath.Join(metaDir, "HEAD")
	//nolint:gosec // G304: worktree metadata path is controlled by the repository structure
	headContent, err := os.ReadFile(headPath)
	if err != nil {
		return info, rvserr.WithPath(rvserr.KindIOError, headPath, err)
	}
	line := strings.TrimSpace(string(headContent))
	if strings.HasPrefix(line, "ref: ") {
		ref := strings.TrimPrefix(line, "ref: ")
		info.Branch = strings.TrimPrefix(ref, "refs/heads/")
		info.Head = repo.Branches()[info.Branch]
	} else {
		info.Detached = true
		if h, err := NewHash(line); err == nil {
			info.Head = h
		}
	}

	if _, err := os.Stat(filepath.Join(metaDir, "locked")); err == nil {
		info.Locked = true
	}

	_ = repo
	return info, nil
}

// resolveWorktreeMetaDir reads the linked worktree's ".rvs" pointer file at
// path to find its metadata directory inside the main repository.
func resolveWorktreeMetaDir(path string) (string, error) {
	gitFilePath := filepath.Join(path, ".rvs")
	//nolint:gosec // G304: path is caller-supplied worktree root
	content, err := os.ReadFile(gitFilePath)
	if err != nil {
		return "", rvserr.WithPath(rvserr.KindIOError, gitFilePath, err)
	}
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "rvsdir: ") {
		return "", rvserr.Newf(rvserr.KindRepositoryCorrupt, "invalid .rvs file at %s", gitFilePath)
	}
	return strings.TrimPrefix(line, "rvsdir: "), nil
}

// RemoveWorktree deletes a linked worktree's metadata and working directory.
// It refuses if the worktree is locked.
func RemoveWorktree(path string) error {
	metaDir, err := resolveWorktreeMetaDir(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(metaDir, "locked")); err == nil {
		return rvserr.Newf(rvserr.KindWorktreeLocked, "worktree %q is locked", path)
	}
	if err := os.RemoveAll(metaDir); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, metaDir, err)
	}
	if err := os.RemoveAll(path); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, path, err)
	}
	return nil
}

// LockWorktree creates the "locked" marker in path's metadata directory,
// causing RemoveWorktree to refuse until UnlockWorktree is called.
func LockWorktree(path, reason string) error {
	metaDir, err := resolveWorktreeMetaDir(path)
	if err != nil {
		return err
	}
	lockPath := filepath.Join(metaDir, "locked")
	if err := os.WriteFile(lockPath, []byte(reason), 0o644); err != nil { //nolint:gosec // G306: lock reason is non-sensitive metadata
		return rvserr.WithPath(rvserr.KindIOError, lockPath, err)
	}
	return nil
}

// UnlockWorktree removes the "locked" marker in path's metadata directory.
func UnlockWorktree(path string) error {
	metaDir, err := resolveWorktreeMetaDir(path)
	if err != nil {
		return err
	}
	lockPath := filepath.Join(metaDir, "locked")
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return rvserr.WithPath(rvserr.KindIOError, lockPath, err)
	}
	return nil
}
