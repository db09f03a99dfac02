// Package git provides adapters for interacting with local Git repositories.
// This package implements the domain.ContextSource interface using go-git/v5.
package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// Logger defines the logging interface for the git adapter.
// This interface enables dependency injection and testability.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// GoGitRepository implements domain.ContextSource using go-git/v5.
// It derives branch, short SHA and tag from the local repository's HEAD.
type GoGitRepository struct {
	repo   *git.Repository
	path   string
	logger Logger
}

// NewGoGitRepository creates a new GoGitRepository for the given path.
// The path can be either a working directory or a bare repository.
// Returns domain.ErrRepositoryNotFound if the path is not a valid Git repository.
func NewGoGitRepository(path string, log Logger) (*GoGitRepository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, path)
	}

	return &GoGitRepository{
		repo:   repo,
		path:   path,
		logger: log,
	}, nil
}

// GetCommitContext derives the commit context from HEAD.
// The branch is empty when HEAD is detached (a warning is logged and the
// run continues; tag pipelines check out detached HEADs routinely).
// The tag is the first tag reference pointing at the HEAD commit, with
// annotated tags resolved through their target.
func (r *GoGitRepository) GetCommitContext(ctx context.Context) (*domain.CommitContext, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	cc := &domain.CommitContext{
		ShortSHA: head.Hash().String()[:domain.ShortSHALength],
		Source:   "git",
	}

	if head.Name().IsBranch() {
		cc.Branch = head.Name().Short()
	} else {
		r.logger.Warn(ctx, "HEAD is detached; branch name will be empty", map[string]interface{}{
			"head_sha": head.Hash().String(),
			"path":     r.path,
		})
	}

	tag, err := r.tagAt(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to inspect tags: %w", err)
	}
	cc.Tag = tag

	r.logger.Debug(ctx, "derived commit context", map[string]interface{}{
		"branch":    cc.Branch,
		"short_sha": cc.ShortSHA,
		"tag":       cc.Tag,
	})

	return cc, nil
}

// tagAt returns the name of the first tag pointing at the given commit,
// or empty if the commit is not tagged. Lightweight tags reference the
// commit directly; annotated tags are dereferenced through the tag object.
func (r *GoGitRepository) tagAt(commit plumbing.Hash) (string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return "", fmt.Errorf("failed to list tags: %w", err)
	}
	defer iter.Close()

	var found string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if tagObj, tagErr := r.repo.TagObject(ref.Hash()); tagErr == nil {
			target = tagObj.Target
		}
		if target == commit {
			found = ref.Name().Short()
			return storer.ErrStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return "", err
	}

	return found, nil
}

// Close releases any resources held by the repository.
// For go-git, this is a no-op as the repository doesn't hold persistent resources.
func (r *GoGitRepository) Close() error {
	return nil
}
