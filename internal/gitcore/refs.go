package gitcore

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rvs-vcs/rvs/internal/rvserr"
)

// loadRefs loads all Git references (branches, tags) into the refs map.
func (r *Repository) loadRefs() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLooseRefs("heads"); err != nil {
		return fmt.Errorf("failed to load loose branches: %w", err)
	}
	if err := r.loadLooseRefs("tags"); err != nil {
		return fmt.Errorf("failed to load loose tags: %w", err)
	}
	if err := r.loadPackedRefs(); err != nil {
		return fmt.Errorf("failed to load packed refs: %w", err)
	}
	if err := r.loadHEAD(); err != nil {
		return fmt.Errorf("failed to load head: %w", err)
	}

	return nil
}

// loadLooseRefs recursively loads all refs in a directory.
// prefix is like "heads" for branches, or "tags" for tags.
func (r *Repository) loadLooseRefs(prefix string) error {
	refsDir := filepath.Join(r.gitDir, "refs", prefix)

	if _, err := os.Stat(refsDir); os.IsNotExist(err) {
		// No refs of this type yet (e.g., new repo with no tags), this is ok.
		return nil
	} else if err != nil {
		return err
	}

	return filepath.Walk(refsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(r.gitDir, path)
		if err != nil {
			return err
		}

		refName := filepath.ToSlash(relPath)
		hash, err := r.resolveRef(path)
		if err != nil {
			// Log the error but continue with other potentially valid refs.
			log.Printf("error resolving ref: %v", err)
			return nil
		}

		r.refs[refName] = hash
		return nil
	})
}

// loadPackedRefs reads the packed-refs file and loads all refs within.
func (r *Repository) loadPackedRefs() error {
	packedRefsFile := filepath.Join(r.gitDir, "packed-refs")

	//nolint:gosec // G304: Packed-refs path is controlled by git repository structure
	file, err := os.Open(packedRefsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("failed to close packed-refs file: %v", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}

		hash, err := NewHash(parts[0])
		if err != nil {
			continue
		}

		refName := parts[1]
		r.refs[refName] = hash
	}

	return scanner.Err()
}

// loadHEAD reads and caches HEAD information.
func (r *Repository) loadHEAD() error {
	headDir := r.privateDir
	if headDir == "" {
		headDir = r.gitDir
	}
	headPath := filepath.Join(headDir, "HEAD")
	//nolint:gosec // G304: HEAD path is controlled by git repository structure
	content, err := os.ReadFile(headPath)
	if err != nil {
		return fmt.Errorf("failed to read HEAD: %w", err)
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		r.headRef = strings.TrimPrefix(line, "ref: ")
		r.headDetached = false

		if hash, exists := r.refs[r.headRef]; exists {
			r.head = hash
		} else {
			r.head = "" // New repository with no commits, this is ok.
		}
	} else {
		r.headDetached = true
		r.headRef = ""

		hash, err := NewHash(line)
		if err != nil {
			return fmt.Errorf("invalid HEAD: %w", err)
		}
		r.head = hash
	}

	return nil
}

// loadStashes reads all stash entries from .git/logs/refs/stash (newest first).
// Returns an empty slice if no stashes exist.
func (r *Repository) loadStashes() []StashEntry {
	stashRefPath := filepath.Join(r.gitDir, "refs", "stash")
	if _, err := os.Stat(stashRefPath); os.IsNotExist(err) {
		return nil
	}

	// The stash reflog holds one entry per stash; iterate it newest-first.
	stashLogPath := filepath.Join(r.gitDir, "logs", "refs", "stash")
	//nolint:gosec // G304: Stash log path is controlled by git repository structure
	file, err := os.Open(stashLogPath)
	if err != nil {
		// Fallback: just the stash tip from refs/stash
		//nolint:gosec // G304: Stash ref path is controlled by git repository structure
		content, err := os.ReadFile(stashRefPath)
		if err != nil {
			return nil
		}
		hash, err := NewHash(strings.TrimSpace(string(content)))
		if err != nil {
			return nil
		}
		return []StashEntry{{Hash: hash, Message: "stash@{0}"}}
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("failed to close stash log: %v", err)
		}
	}()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	// Reflog is oldest-first; reverse for newest-first output.
	stashes := make([]StashEntry, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		// Reflog format: <old-hash> <new-hash> <author info> <timestamp> <tz>\t<message>
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		hash, err := NewHash(parts[1])
		if err != nil {
			continue
		}
		msg := fmt.Sprintf("stash@{%d}", len(stashes))
		if tabIdx := strings.Index(line, "\t"); tabIdx >= 0 {
			msg = strings.TrimSpace(line[tabIdx+1:])
		}
		stashes = append(stashes, StashEntry{Hash: hash, Message: msg})
	}
	return stashes
}

// resolveRef reads a single ref file and returns its hash.
// Handles both direct hashes and symbolic refs.
func (r *Repository) resolveRef(path string) (Hash, error) {
	//nolint:gosec // G304: Ref paths are controlled by git repository structure
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: ") {
		targetRef := strings.TrimPrefix(line, "ref: ")
		targetPath := filepath.Join(r.gitDir, targetRef)
		return r.resolveRef(targetPath)
	}

	hash, err := NewHash(line)
	if err != nil {
		return "", fmt.Errorf("invalid hash in ref file %s: %w", path, err)
	}
	return hash, nil
}

// validateRefName rejects ref component names containing embedded spaces,
// "..", a leading "-", or control bytes, per spec.md §4.2.
func validateRefName(name string) error {
	if name == "" {
		return rvserr.New(rvserr.KindInvalidRef, "ref name must not be empty")
	}
	if strings.HasPrefix(name, "-") {
		return rvserr.Newf(rvserr.KindInvalidRef, "invalid ref name %q: must not start with '-'", name)
	}
	if strings.Contains(name, "..") {
		return rvserr.Newf(rvserr.KindInvalidRef, "invalid ref name %q: must not contain '..'", name)
	}
	for _, r := range name {
		if r == ' ' || r < 0x20 || r == 0x7f {
			return rvserr.Newf(rvserr.KindInvalidRef, "invalid ref name %q: contains control byte or space", name)
		}
	}
	return nil
}

// WriteDirectRef atomically writes a direct (OID) ref at refs/<name>, e.g.
// name="heads/main". name is not validated against the full ref grammar
// here; callers validate the branch/tag component separately.
func (r *Repository) WriteDirectRef(name string, oid Hash) error {
	return r.writeRefFile(filepath.Join("refs", name), string(oid)+"\n")
}

// WriteSymbolicRef atomically writes name as a symbolic ref pointing at
// target (a full ref path such as "refs/heads/main").
func (r *Repository) WriteSymbolicRef(name, target string) error {
	return r.writeRefFile(name, "ref: "+target+"\n")
}

// writeRefFile writes content to gitDir/relPath using a per-ref lock file
// and atomic rename, creating parent directories as needed. HEAD is special:
// it is always written to this worktree's private directory rather than the
// shared gitDir, so each worktree keeps its own independent HEAD.
func (r *Repository) writeRefFile(relPath, content string) error {
	base := r.gitDir
	if relPath == "HEAD" && r.privateDir != "" {
		base = r.privateDir
	}
	path := filepath.Join(base, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, filepath.Dir(path), err)
	}

	lock, err := acquireLock(path)
	if err != nil {
		return err
	}
	if err := lock.commit([]byte(content)); err != nil {
		return err
	}
	return nil
}

// CreateBranch creates (or, if force is true, overwrites) refs/heads/<name>
// pointing at oid.
func (r *Repository) CreateBranch(name string, oid Hash, force bool) error {
	if err := validateRefName(name); err != nil {
		return err
	}
	r.mu.RLock()
	_, exists := r.refs["refs/heads/"+name]
	r.mu.RUnlock()
	if exists && !force {
		return rvserr.Newf(rvserr.KindBranchExists, "a branch named %q already exists", name)
	}
	if err := r.WriteDirectRef("heads/"+name, oid); err != nil {
		return err
	}
	r.mu.Lock()
	r.refs["refs/heads/"+name] = oid
	r.mu.Unlock()
	return nil
}

// DeleteBranch removes refs/heads/<name>. Callers are responsible for the
// "not fully merged" check (spec.md's BranchNotFullyMerged) before calling
// this with force=false semantics; DeleteBranch itself performs no merge
// analysis, since that requires MergeBase/CommitLog context it doesn't have.
func (r *Repository) DeleteBranch(name string) error {
	path := filepath.Join(r.gitDir, "refs", "heads", name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return rvserr.Newf(rvserr.KindInvalidRef, "branch not found: %s", name)
		}
		return rvserr.WithPath(rvserr.KindIOError, path, err)
	}
	r.mu.Lock()
	delete(r.refs, "refs/heads/"+name)
	r.mu.Unlock()
	return nil
}

// SetHeadToBranch points HEAD symbolically at refs/heads/<name> and updates
// the in-memory cache to match.
func (r *Repository) SetHeadToBranch(name string) error {
	if err := r.WriteSymbolicRef("HEAD", "refs/heads/"+name); err != nil {
		return err
	}
	r.mu.Lock()
	r.headRef = "refs/heads/" + name
	r.headDetached = false
	r.head = r.refs["refs/heads/"+name]
	r.mu.Unlock()
	return nil
}

// SetHeadDetached points HEAD directly at oid.
func (r *Repository) SetHeadDetached(oid Hash) error {
	if err := r.writeRefFile("HEAD", string(oid)+"\n"); err != nil {
		return err
	}
	r.mu.Lock()
	r.headRef = ""
	r.headDetached = true
	r.head = oid
	r.mu.Unlock()
	return nil
}

// AdvanceCurrentBranch moves the branch HEAD currently points to forward to
// oid. When HEAD is detached there is no branch to move, so it falls back to
// SetHeadDetached(oid).
func (r *Repository) AdvanceCurrentBranch(oid Hash) error {
	r.mu.RLock()
	ref := r.headRef
	detached := r.headDetached
	r.mu.RUnlock()
	if detached || ref == "" {
		return r.SetHeadDetached(oid)
	}
	name := strings.TrimPrefix(ref, "refs/heads/")
	if err := r.WriteDirectRef("heads/"+name, oid); err != nil {
		return err
	}
	r.mu.Lock()
	r.refs[ref] = oid
	r.head = oid
	r.mu.Unlock()
	return nil
}

// WriteStashRef pushes a new stash commit onto refs/stash and appends a
// reflog-style line to logs/refs/stash, following the same newest-last
// layout loadStashes already parses newest-first.
func (r *Repository) WriteStashRef(oid Hash, message string) error {
	r.mu.RLock()
	prev := r.refs["refs/stash"]
	r.mu.RUnlock()
	if prev == "" {
		// The first entry has no predecessor; keep the new hash in the
		// second field, where loadStashes and PopStashRef read it.
		prev = Hash(strings.Repeat("0", 40))
	}

	if err := r.WriteDirectRef("stash", oid); err != nil {
		return err
	}

	logPath := filepath.Join(r.gitDir, "logs", "refs", "stash")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, filepath.Dir(logPath), err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G302: reflog is append-only metadata
	if err != nil {
		return rvserr.WithPath(rvserr.KindIOError, logPath, err)
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s %s\t%s\n", prev, oid, message)
	if _, err := f.WriteString(line); err != nil {
		return rvserr.WithPath(rvserr.KindIOError, logPath, err)
	}

	r.mu.Lock()
	r.refs["refs/stash"] = oid
	r.mu.Unlock()
	return nil
}

// PopStashRef drops the newest stash entry, rewriting refs/stash to point at
// the next-newest (or removing it entirely if the stack is now empty) and
// truncating the reflog by one line.
func (r *Repository) PopStashRef() error {
	logPath := filepath.Join(r.gitDir, "logs", "refs", "stash")
	//nolint:gosec // G304: stash log path is controlled by repository structure
	data, err := os.ReadFile(logPath)
	if err != nil {
		return rvserr.New(rvserr.KindInvalidRef, "no stash entries found")
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return rvserr.New(rvserr.KindInvalidRef, "no stash entries found")
	}
	lines = lines[:len(lines)-1]

	refPath := filepath.Join(r.gitDir, "refs", "stash")
	if len(lines) == 0 {
		if err := os.Remove(refPath); err != nil && !os.IsNotExist(err) {
			return rvserr.WithPath(rvserr.KindIOError, refPath, err)
		}
		if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
			return rvserr.WithPath(rvserr.KindIOError, logPath, err)
		}
		r.mu.Lock()
		delete(r.refs, "refs/stash")
		r.mu.Unlock()
		return nil
	}

	last := lines[len(lines)-1]
	fields := strings.Fields(last)
	if len(fields) < 2 {
		return rvserr.New(rvserr.KindRepositoryCorrupt, "malformed stash reflog entry")
	}
	newTip, err := NewHash(fields[1])
	if err != nil {
		return rvserr.Wrap(rvserr.KindRepositoryCorrupt, err)
	}

	if err := r.WriteDirectRef("stash", newTip); err != nil {
		return err
	}
	if err := os.WriteFile(logPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil { //nolint:gosec // G306: reflog is non-sensitive metadata
		return rvserr.WithPath(rvserr.KindIOError, logPath, err)
	}

	r.mu.Lock()
	r.refs["refs/stash"] = newTip
	r.mu.Unlock()
	return nil
}
