// Package gitsync wraps the subset of Git plumbing the indexer needs: HEAD
// resolution, tree-to-tree diffing for incremental sync, and commit
// existence checks, via go-git/go-git so no external git binary is
// required (spec §4.5).
package gitsync

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cerp-labs/codeintel/internal/errs"
)

// ChangeKind classifies one path's change between two commits.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeDeleted
)

// Change is one path's status in a tree-to-tree diff.
type Change struct {
	Path string
	Kind ChangeKind
}

// Repo is an opened Git working tree.
type Repo struct {
	repo *git.Repository
}

// Open opens the Git repository rooted at dir.
func Open(dir string) (*Repo, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "open git repository", err)
	}
	return &Repo{repo: r}, nil
}

// HeadCommit returns the hex hash of the current HEAD commit.
func (r *Repo) HeadCommit() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errs.Wrap(errs.KindFilesystem, "resolve HEAD", err)
	}
	return head.Hash().String(), nil
}

// CommitExists reports whether hash refers to a commit in the object
// database, without error on a well-formed-but-absent hash.
func (r *Repo) CommitExists(hash string) bool {
	if !plumbing.IsHash(hash) {
		return false
	}
	_, err := r.repo.CommitObject(plumbing.NewHash(hash))
	return err == nil
}

// Diff computes the tree-to-tree diff between fromCommit and toCommit,
// returning one Change per added, modified, or deleted path.
func (r *Repo) Diff(fromCommit, toCommit string) ([]Change, error) {
	fromTree, err := r.commitTree(fromCommit)
	if err != nil {
		return nil, err
	}
	toTree, err := r.commitTree(toCommit)
	if err != nil {
		return nil, err
	}

	patch, err := fromTree.Patch(toTree)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "diff trees", err)
	}

	var changes []Change
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		switch {
		case from == nil && to != nil:
			changes = append(changes, Change{Path: to.Path(), Kind: ChangeAdded})
		case from != nil && to == nil:
			changes = append(changes, Change{Path: from.Path(), Kind: ChangeDeleted})
		case from != nil && to != nil:
			changes = append(changes, Change{Path: to.Path(), Kind: ChangeModified})
		}
	}
	return changes, nil
}

func (r *Repo) commitTree(hash string) (*object.Tree, error) {
	if !plumbing.IsHash(hash) {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("not a commit hash: %q", hash))
	}
	commit, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "load commit", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "load tree", err)
	}
	return tree, nil
}
