package gitcore

import "github.com/rvs-vcs/rvs/internal/rvserr"

// RebaseResult reports the outcome of a linear Rebase replay: the new
// commit hashes created (oldest first), or the point at which automatic
// merging failed.
type RebaseResult struct {
	UpToDate      bool
	Rebased       []Hash
	Conflicted    bool
	ConflictPaths []string
}

// Rebase replays every commit unique to HEAD (relative to their merge base)
// onto upstream, one at a time, as a sequence of three-way merges against
// each commit's original parent tree. It does not support interactive
// reordering, squashing, or merge commits partway through the replayed
// range — every replayed commit is rebuilt with a single parent, the
// previous step's result.
func Rebase(repo *Repository, idx *Index, upstream string, committer Signature) (*RebaseResult, error) {
	head := repo.Head()
	if head == "" {
		return nil, rvserr.New(rvserr.KindUnknownRev, "HEAD is unborn; nothing to rebase")
	}
	upstreamHash, err := ResolveRevision(repo, upstream)
	if err != nil {
		return nil, err
	}
	if head == upstreamHash {
		return &RebaseResult{UpToDate: true}, nil
	}

	base, err := MergeBase(repo, head, upstreamHash)
	if err != nil {
		return nil, err
	}

	headCommit, err := repo.GetCommit(head)
	if err != nil {
		return nil, err
	}
	newHeadCommit, err := repo.GetCommit(upstreamHash)
	if err != nil {
		return nil, err
	}

	chain, err := firstParentChain(repo, head, base)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return &RebaseResult{UpToDate: true}, nil
	}

	// Sync the working tree onto upstream before replaying; every replayed
	// commit's three-way merge assumes the disk matches prevTree.
	if err := MaterializeCheckout(repo, idx, headCommit.Tree, newHeadCommit.Tree); err != nil {
		return nil, err
	}

	newHead := upstreamHash
	prevTree := newHeadCommit.Tree
	var rebased []Hash

	for _, c := range chain {
		commit, err := repo.GetCommit(c)
		if err != nil {
			return nil, err
		}
		var parentTree Hash
		if len(commit.Parents) > 0 {
			parentCommit, err := repo.GetCommit(commit.Parents[0])
			if err != nil {
				return nil, err
			}
			parentTree = parentCommit.Tree
		}

		merged, conflicts, err := mergeTrees(repo, idx, parentTree, prevTree, commit.Tree, "HEAD", c.Short())
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			if err := repo.SetHeadDetached(newHead); err != nil {
				return nil, err
			}
			if err := idx.Save(repo.IndexDir()); err != nil {
				return nil, err
			}
			return &RebaseResult{Rebased: rebased, Conflicted: true, ConflictPaths: conflicts},
				rvserr.Newf(rvserr.KindMergeConflict, "could not apply %s; fix conflicts and then commit, or reset --hard to abort", c.Short())
		}

		mergedTree, err := BuildTreeFromEntries(repo, merged)
		if err != nil {
			return nil, err
		}
		if err := MaterializeCheckout(repo, idx, prevTree, mergedTree); err != nil {
			return nil, err
		}

		newCommit := &Commit{
			Tree:      mergedTree,
			Parents:   []Hash{newHead},
			Author:    commit.Author,
			Committer: committer,
			Message:   commit.Message,
		}
		newHash, err := repo.WriteCommit(newCommit)
		if err != nil {
			return nil, err
		}
		newCommit.ID = newHash
		repo.RegisterCommit(newCommit)

		rebased = append(rebased, newHash)
		newHead = newHash
		prevTree = mergedTree
	}

	if err := idx.Save(repo.IndexDir()); err != nil {
		return nil, err
	}
	if repo.HeadDetached() {
		if err := repo.SetHeadDetached(newHead); err != nil {
			return nil, err
		}
	} else {
		if err := repo.AdvanceCurrentBranch(newHead); err != nil {
			return nil, err
		}
	}

	return &RebaseResult{Rebased: rebased}, nil
}

// firstParentChain walks from tip to base (exclusive) following only the
// first parent of each commit, returning the chain oldest-first. It stops
// early at a root commit if base is never reached (rebasing onto unrelated
// history replays the whole of tip's first-parent ancestry).
func firstParentChain(repo *Repository, tip, base Hash) ([]Hash, error) {
	var chain []Hash
	cur := tip
	for cur != base {
		chain = append(chain, cur)
		commit, err := repo.GetCommit(cur)
		if err != nil {
			return nil, err
		}
		if len(commit.Parents) == 0 {
			break
		}
		cur = commit.Parents[0]
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
