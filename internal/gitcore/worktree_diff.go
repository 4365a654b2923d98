package gitcore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// errBlobNotFound is a sentinel used internally when a path does not exist in
// the HEAD tree. The caller uses errors.Is to distinguish "file not tracked"
// from unexpected I/O errors.
var errBlobNotFound = errors.New("blob not found in tree")

// resolveBlobAtPath walks the tree rooted at treeHash to find the blob for the
// given filePath (e.g., "internal/gitcore/diff.go"). It splits the path into
// components, descends through nested tree objects for all but the final
// component, then returns the blob hash of the leaf entry.
//
// Returns errBlobNotFound when any component of the path does not exist in the
// tree, or when the final component refers to a tree rather than a blob.
func resolveBlobAtPath(repo *Repository, treeHash Hash, filePath string) (Hash, error) {
	// Normalise: strip leading/trailing slashes and collapse any empty segments.
	filePath = strings.Trim(filePath, "/")
	if filePath == "" {
		return "", fmt.Errorf("resolveBlobAtPath: empty file path")
	}

	components := strings.Split(filePath, "/")
	currentTreeHash := treeHash

	// Walk all directory components except the final filename.
	for _, component := range components[:len(components)-1] {
		tree, err := repo.GetTree(currentTreeHash)
		if err != nil {
			return "", fmt.Errorf("resolveBlobAtPath: failed to read tree %s: %w", currentTreeHash, err)
		}

		found := false
		for _, entry := range tree.Entries {
			if entry.Name == component {
				if !isTreeEntry(entry) {
					// Path component exists but is a blob, not a directory.
					return "", errBlobNotFound
				}
				currentTreeHash = entry.ID
				found = true
				break
			}
		}
		if !found {
			return "", errBlobNotFound
		}
	}

	// Read the tree that should contain the final filename.
	leafName := components[len(components)-1]
	tree, err := repo.GetTree(currentTreeHash)
	if err != nil {
		return "", fmt.Errorf("resolveBlobAtPath: failed to read leaf tree %s: %w", currentTreeHash, err)
	}

	for _, entry := range tree.Entries {
		if entry.Name == leafName {
			if isTreeEntry(entry) {
				// The path points to a directory, not a file.
				return "", errBlobNotFound
			}
			return entry.ID, nil
		}
	}

	return "", errBlobNotFound
}

// ComputeWorkingTreeFileDiff diffs the on-disk content of filePath against the
// version recorded in the HEAD commit, using the same Myers diff engine that
// ComputeFileDiff uses for commit-to-commit diffs.
//
// filePath must be relative to the repository root (e.g., "cmd/vista/main.go").
// contextLines controls how many unchanged lines to include around each hunk.
//
// Edge cases:
//   - HEAD is unset (empty repo): treated as new file — all on-disk lines are
//     additions.
//   - File not tracked by HEAD: treated as new file.
//   - File absent on disk but present in HEAD: treated as deleted — all HEAD
//     lines are deletions.
//   - Either side is binary: IsBinary is set and no hunks are returned.
//   - Either side exceeds maxBlobSize: Truncated is set and no hunks are
//     returned.
func ComputeWorkingTreeFileDiff(repo *Repository, filePath string, contextLines int) (*FileDiff, error) {
	var headBlobHash Hash

	headHash := repo.Head()
	if headHash != "" {
		commits := repo.Commits()
		headCommit, exists := commits[headHash]
		if exists {
			blobHash, err := resolveBlobAtPath(repo, headCommit.Tree, filePath)
			if err != nil && !errors.Is(err, errBlobNotFound) {
				return nil, fmt.Errorf("ComputeWorkingTreeFileDiff: resolving HEAD blob: %w", err)
			}
			if err == nil {
				headBlobHash = blobHash
			}
		}
		// Unknown HEAD commit or errBlobNotFound both mean "not tracked in HEAD".
	}

	return diffBlobAgainstWorkingFile(repo, headBlobHash, filePath, contextLines)
}

// ComputeWorktreeDiffAgainstTree diffs the on-disk content of filePath against
// the version recorded in the tree rooted at treeHash (e.g., the tree of an
// arbitrary revision passed to "rvs diff <rev>"). An empty treeHash, or a path
// absent from the tree, is treated as a new file — every on-disk line is an
// addition.
func ComputeWorktreeDiffAgainstTree(repo *Repository, treeHash Hash, filePath string, contextLines int) (*FileDiff, error) {
	var oldBlobHash Hash
	if treeHash != "" {
		blobHash, err := resolveBlobAtPath(repo, treeHash, filePath)
		if err != nil && !errors.Is(err, errBlobNotFound) {
			return nil, fmt.Errorf("ComputeWorktreeDiffAgainstTree: resolving blob: %w", err)
		}
		if err == nil {
			oldBlobHash = blobHash
		}
	}
	return diffBlobAgainstWorkingFile(repo, oldBlobHash, filePath, contextLines)
}

// ComputeWorktreeDiffAgainstIndex diffs the on-disk content of filePath
// against the blob currently staged for it in idx. A path absent from the
// index is treated as a new file, matching "rvs diff" for untracked-but-added
// paths that have since been edited on disk.
func ComputeWorktreeDiffAgainstIndex(repo *Repository, idx *Index, filePath string, contextLines int) (*FileDiff, error) {
	var oldBlobHash Hash
	if entry := idx.Get(filePath); entry != nil {
		oldBlobHash = entry.Hash
	}
	return diffBlobAgainstWorkingFile(repo, oldBlobHash, filePath, contextLines)
}

// ComputeStagedFileDiff diffs the blob staged for filePath in idx against the
// version recorded in the tree rooted at treeHash (typically the HEAD commit's
// tree), backing "rvs diff --cached". Both sides are already objects in the
// store, so the comparison runs through the same path as a commit-to-commit
// diff rather than touching the working directory.
func ComputeStagedFileDiff(repo *Repository, idx *Index, treeHash Hash, filePath string, contextLines int) (*FileDiff, error) {
	var oldBlobHash Hash
	if treeHash != "" {
		blobHash, err := resolveBlobAtPath(repo, treeHash, filePath)
		if err != nil && !errors.Is(err, errBlobNotFound) {
			return nil, fmt.Errorf("ComputeStagedFileDiff: resolving blob: %w", err)
		}
		if err == nil {
			oldBlobHash = blobHash
		}
	}

	var newBlobHash Hash
	if entry := idx.Get(filePath); entry != nil {
		newBlobHash = entry.Hash
	}

	return ComputeFileDiff(repo, oldBlobHash, newBlobHash, filePath, contextLines)
}

// diffBlobAgainstWorkingFile is the shared tail of every "diff something
// against the working tree" path: read the candidate old blob (if any), read
// the on-disk file (if any), and hand both to the Myers engine.
func diffBlobAgainstWorkingFile(repo *Repository, oldBlobHash Hash, filePath string, contextLines int) (*FileDiff, error) {
	result := &FileDiff{
		Path:    filePath,
		OldHash: oldBlobHash,
		Hunks:   make([]DiffHunk, 0),
	}

	var oldContent []byte
	if oldBlobHash != "" {
		content, err := repo.GetBlob(oldBlobHash)
		if err != nil {
			return nil, fmt.Errorf("diffBlobAgainstWorkingFile: reading blob %s: %w", oldBlobHash, err)
		}
		oldContent = content
	}

	diskPath := filepath.Join(repo.WorkDir(), filePath)
	//nolint:gosec // G304: path is relative to the repository working directory
	diskContent, err := os.ReadFile(diskPath)
	var diskExists bool
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("diffBlobAgainstWorkingFile: reading on-disk file: %w", err)
		}
		diskContent = nil
	} else {
		diskExists = true
	}

	if oldBlobHash == "" && !diskExists {
		return result, nil
	}

	if len(oldContent) > maxBlobSize || len(diskContent) > maxBlobSize {
		result.Truncated = true
		return result, nil
	}

	if isBinaryContent(oldContent) || isBinaryContent(diskContent) {
		result.IsBinary = true
		return result, nil
	}

	oldLines := splitLines(oldContent)
	newLines := splitLines(diskContent)
	result.Hunks = myersDiff(oldLines, newLines, contextLines)

	return result, nil
}
