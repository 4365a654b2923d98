// Package gitcore provides pure Go implementation of Git object parsing and repository traversal.
package gitcore

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"crypto/sha1" //nolint:gosec // G505: Git object IDs are defined as SHA-1
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	objectTypeCommit = "commit"
	objectTypeTree   = "tree"
	objectTypeBlob   = "blob"
	objectTypeTag    = "tag"
)

// loadObjects collects every commit reachable from the references into
// r.commits. It traverses all references and their histories.
// It assumes that all references have already been loaded.
func (r *Repository) loadObjects() {
	visited := make(map[Hash]bool)
	for _, ref := range r.refs {
		r.traverseObjects(ref, visited)
	}
}

// traverseObjects recursively loads all objects beginning from the provided reference,
// using the visited map to avoid processing the same object multiple times.
func (r *Repository) traverseObjects(ref Hash, visited map[Hash]bool) {
	if visited[ref] {
		return
	}
	visited[ref] = true

	object, err := r.readObject(ref)
	if err != nil {
		// Log the error but continue with other potentially valid objects.
		log.Printf("error traversing object: %v", err)
		return
	}

	switch object.Type() {
	case CommitObject:
		commit := object.(*Commit)
		r.commits = append(r.commits, commit)
		for _, parent := range commit.Parents {
			r.traverseObjects(parent, visited)
		}
	default:
		// Unrecognized type (e.g. an orphan tree/blob reached directly by a
		// ref), log but continue on — the commit walk is what populates
		// r.commits.
		log.Printf("unsupported object type at ref target: %d", object.Type())
	}
}

// readObject parses an object from its hash. RVS never writes pack files, so
// loose objects are the only on-disk representation this needs to read.
func (r *Repository) readObject(id Hash) (Object, error) {
	header, content, err := r.readLooseObjectRaw(id)
	if err != nil {
		return nil, fmt.Errorf("object not found: %s", id)
	}

	switch {
	case strings.HasPrefix(header, objectTypeCommit):
		return parseCommitBody(content, id)
	case strings.HasPrefix(header, objectTypeTag):
		return parseTagBody(content, id)
	case strings.HasPrefix(header, objectTypeTree):
		return parseTreeBody(content, id)
	default:
		return nil, fmt.Errorf("unrecognized loose object type: %q for %s", header, id)
	}
}

// readObjectData reads any loose object and returns its raw content and ObjectType.
func (r *Repository) readObjectData(id Hash) ([]byte, ObjectType, error) {
	header, content, err := r.readLooseObjectRaw(id)
	if err != nil {
		return nil, NoneObject, fmt.Errorf("object not found: %s", id)
	}

	typ, err := objectTypeFromHeader(header)
	if err != nil {
		return nil, NoneObject, err
	}
	return content, typ, nil
}

// readLooseObjectRaw reads a loose object from disk and returns its header and content.
// This is the common implementation used by both readObject and readObjectData.
func (r *Repository) readLooseObjectRaw(id Hash) (header string, content []byte, err error) {
	objectPath := filepath.Join(r.gitDir, "objects", string(id)[:2], string(id)[2:])

	//nolint:gosec // G304: Object paths are controlled by git repository structure
	file, err := os.Open(objectPath)
	if err != nil {
		return "", nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("failed to close loose object file: %v", err)
		}
	}()

	data, err := readCompressedData(file)
	if err != nil {
		return "", nil, fmt.Errorf("invalid compressed data: %w", err)
	}

	nullIdx := bytes.IndexByte(data, 0)
	if nullIdx == -1 {
		return "", nil, fmt.Errorf("invalid object format")
	}

	header, content = string(data[:nullIdx]), data[nullIdx+1:]
	return header, content, nil
}

// objectTypeFromHeader converts a Git object header string to its ObjectType.
func objectTypeFromHeader(header string) (ObjectType, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return NoneObject, fmt.Errorf("invalid header: %s", header)
	}

	switch parts[0] {
	case objectTypeCommit:
		return CommitObject, nil
	case objectTypeTree:
		return TreeObject, nil
	case objectTypeBlob:
		return BlobObject, nil
	case objectTypeTag:
		return TagObject, nil
	default:
		return NoneObject, fmt.Errorf("unsupported object type: %s", parts[0])
	}
}

// parseCommitBody parses the body of a commit object into a Commit struct.
func parseCommitBody(body []byte, id Hash) (*Commit, error) {
	commit := &Commit{ID: id}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	inMessage := false
	var messageLines []string

	for scanner.Scan() {
		line := scanner.Text()

		if inMessage {
			messageLines = append(messageLines, line)
			continue
		}
		if line == "" {
			inMessage = true
			continue
		}

		if strings.HasPrefix(line, "parent ") {
			parent, err := NewHash(strings.TrimPrefix(line, "parent "))
			if err != nil {
				return nil, fmt.Errorf("invalid parent hash: %w", err)
			}
			commit.Parents = append(commit.Parents, parent)
		} else if strings.HasPrefix(line, "tree ") {
			tree, err := NewHash(strings.TrimPrefix(line, "tree "))
			if err != nil {
				return nil, fmt.Errorf("invalid tree hash: %w", err)
			}
			commit.Tree = tree
		} else if strings.HasPrefix(line, "author ") {
			authorLine := strings.TrimPrefix(line, "author ")
			author, err := NewSignature(authorLine)
			if err != nil {
				return nil, fmt.Errorf("invalid author signature: %w", err)
			}
			commit.Author = author
		} else if strings.HasPrefix(line, "committer ") {
			committerLine := strings.TrimPrefix(line, "committer ")
			committer, err := NewSignature(committerLine)
			if err != nil {
				return nil, fmt.Errorf("invalid committer signature: %w", err)
			}
			commit.Committer = committer
		}
	}

	commit.Message = strings.Join(messageLines, "\n")
	commit.Message = strings.TrimSpace(commit.Message)

	return commit, nil
}

// parseTagBody parses the body of a tag object into a Tag struct.
func parseTagBody(body []byte, id Hash) (*Tag, error) {
	tag := &Tag{ID: id}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	inMessage := false
	var messageLines []string

	for scanner.Scan() {
		line := scanner.Text()

		if inMessage {
			messageLines = append(messageLines, line)
			continue
		}
		if line == "" {
			inMessage = true
			continue
		}

		if strings.HasPrefix(line, "object ") {
			objectHash, err := NewHash(strings.TrimPrefix(line, "object "))
			if err != nil {
				return nil, fmt.Errorf("invalid object hash: %w", err)
			}
			tag.Object = objectHash
		} else if strings.HasPrefix(line, "type ") {
			typeStr := strings.TrimPrefix(line, "type ")
			tag.ObjType = StrToObjectType(typeStr)
		} else if strings.HasPrefix(line, "tag ") {
			tag.Name = strings.TrimPrefix(line, "tag ")
		} else if strings.HasPrefix(line, "tagger ") {
			taggerLine := strings.TrimPrefix(line, "tagger ")
			tagger, err := NewSignature(taggerLine)
			if err != nil {
				return nil, fmt.Errorf("invalid tagger: %w", err)
			}
			tag.Tagger = tagger
		}
	}

	tag.Message = strings.Join(messageLines, "\n")
	tag.Message = strings.TrimSpace(tag.Message)

	return tag, nil
}

// parseTreeBody parses the body of a tree object into a Tree struct.
func parseTreeBody(body []byte, id Hash) (*Tree, error) {
	tree := &Tree{
		ID:      id,
		Entries: make([]TreeEntry, 0),
	}
	reader := bytes.NewReader(body)

	for {
		var modeBuilder strings.Builder
		for {
			b, err := reader.ReadByte()
			if err == io.EOF {
				return tree, nil
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read mode: %w", err)
			}
			if b == ' ' {
				break
			}
			modeBuilder.WriteByte(b)
		}
		mode := modeBuilder.String()

		var nameBuilder strings.Builder
		for {
			b, err := reader.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("failed to read name: %w", err)
			}
			if b == 0 {
				break
			}
			nameBuilder.WriteByte(b)
		}
		name := nameBuilder.String()

		var hashBytes [20]byte
		if _, err := io.ReadFull(reader, hashBytes[:]); err != nil {
			return nil, fmt.Errorf("failed to read hash: %w", err)
		}

		hash, err := NewHashFromBytes(hashBytes)
		if err != nil {
			return nil, fmt.Errorf("invalid hash in tree entry: %w", err)
		}

		// Determine type based on mode:
		//  - 100644/100755 = blob (file)
		//  - 040000 = tree (directory)
		//  - 120000/160000 = commit (submodule)
		var entryType string
		if strings.HasPrefix(mode, "100") {
			entryType = "blob"
		} else if mode == "040000" || mode == "40000" {
			entryType = "tree"
		} else if mode == "120000" || mode == "160000" {
			entryType = "commit"
		} else {
			entryType = "unknown"
		}

		tree.Entries = append(tree.Entries, TreeEntry{
			ID:   hash,
			Name: name,
			Mode: mode,
			Type: entryType,
		})
	}
}

// maxDecompressedSize caps the size of any single decompressed Git object.
// Objects larger than this are rejected to prevent zip-bomb style attacks.
const maxDecompressedSize = 256 * 1024 * 1024 // 256MB

// readCompressedData reads and decompresses zlib-compressed data from the given reader.
// Returns an error if the decompressed output exceeds maxDecompressedSize.
func readCompressedData(r io.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer func() {
		if err := zr.Close(); err != nil {
			log.Printf("failed to close zlib reader: %v", err)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(zr, maxDecompressedSize+1)); err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	if buf.Len() > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed object exceeds maximum allowed size (%d bytes)", maxDecompressedSize)
	}

	return buf.Bytes(), nil
}

// hashObject computes the object ID for a given type and payload, using the
// same "<type> <length>\0<payload>" framing Git hashes loose objects with.
func hashObject(objType string, payload []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(payload))
	sum := sha1.Sum(append([]byte(header), payload...)) //nolint:gosec // G401: Git object IDs are SHA-1
	h, _ := NewHashFromBytes(sum)
	return h
}

// writeLooseObject writes payload as a loose object of the given type,
// returning its computed hash. The write is atomic: content is staged to a
// temp file in the destination directory, then renamed into place. Writing
// is a no-op (beyond computing the hash) if the object already exists.
func (r *Repository) writeLooseObject(objType string, payload []byte) (Hash, error) {
	id := hashObject(objType, payload)

	dir := filepath.Join(r.gitDir, "objects", string(id)[:2])
	path := filepath.Join(dir, string(id)[2:])

	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "obj-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp object file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	zw := zlib.NewWriter(tmp)
	header := fmt.Sprintf("%s %d\x00", objType, len(payload))
	if _, err := zw.Write([]byte(header)); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write object header: %w", err)
	}
	if _, err := zw.Write(payload); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write object payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to close zlib writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp object file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to install object: %w", err)
	}

	return id, nil
}

// WriteBlob stores content as a blob object and returns its hash.
func (r *Repository) WriteBlob(content []byte) (Hash, error) {
	return r.writeLooseObject(objectTypeBlob, content)
}

// WriteTree serializes entries in Git's sorted tree order and stores them as
// a tree object, returning its hash. entries is not mutated.
func (r *Repository) WriteTree(entries []TreeEntry) (Hash, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeEntrySortKey(sorted[i]) < treeEntrySortKey(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		mode := strings.TrimPrefix(e.Mode, "0")
		if mode == "" {
			mode = e.Mode
		}
		fmt.Fprintf(&buf, "%s %s\x00", mode, e.Name)
		idBytes, err := hex.DecodeString(string(e.ID))
		if err != nil {
			return "", fmt.Errorf("invalid tree entry hash %q: %w", e.ID, err)
		}
		buf.Write(idBytes)
	}

	return r.writeLooseObject(objectTypeTree, buf.Bytes())
}

// treeEntrySortKey mirrors Git's tree entry ordering: directory names sort as
// if they had a trailing slash, so "foo" sorts after "foo.txt" but before
// "foo/bar".
func treeEntrySortKey(e TreeEntry) string {
	if e.Type == "tree" {
		return e.Name + "/"
	}
	return e.Name
}

// WriteCommit serializes a commit header and message and stores it as a
// commit object, returning its hash.
func (r *Repository) WriteCommit(c *Commit) (Hash, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", formatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", formatSignature(c.Committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	buf.WriteByte('\n')

	return r.writeLooseObject(objectTypeCommit, buf.Bytes())
}

// formatSignature renders a Signature back into Git's
// "Name <email> unix ±HHMM" wire format.
func formatSignature(s Signature) string {
	_, offset := s.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	mins := (offset % 3600) / 60
	return fmt.Sprintf("%s <%s> %d %s%02d%02d", s.Name, s.Email, s.When.Unix(), sign, hours, mins)
}

// ResolvePrefix finds the single loose object whose hash begins with prefix.
// Returns an error if no object matches or more than one does.
func (r *Repository) ResolvePrefix(prefix string) (Hash, error) {
	if len(prefix) < 4 {
		return "", fmt.Errorf("ambiguous prefix: must be at least 4 characters")
	}
	if len(prefix) == 40 {
		return NewHash(prefix)
	}

	objectsDir := filepath.Join(r.gitDir, "objects")
	dirPrefix := prefix[:2]
	filePrefix := prefix[2:]

	entries, err := os.ReadDir(filepath.Join(objectsDir, dirPrefix))
	if err != nil {
		return "", fmt.Errorf("no object matches prefix %q", prefix)
	}

	var matches []Hash
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), filePrefix) {
			id, err := NewHash(dirPrefix + entry.Name())
			if err == nil {
				matches = append(matches, id)
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no object matches prefix %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous prefix %q matches %d objects", prefix, len(matches))
	}
}
