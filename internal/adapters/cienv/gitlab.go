// Package cienv provides a commit context source backed by GitLab CI
// predefined variables. It implements domain.ContextSource without
// touching the repository checkout.
package cienv

import (
	"context"
	"fmt"
	"os"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// GitLab CI predefined variable names.
const (
	// EnvGitLabCI marks that the job runs in GitLab CI.
	EnvGitLabCI = "GITLAB_CI"

	// EnvCommitBranch is the branch the pipeline runs for.
	// Unset on tag pipelines and merge request pipelines.
	EnvCommitBranch = "CI_COMMIT_BRANCH"

	// EnvCommitShortSHA is the first eight characters of the commit SHA.
	EnvCommitShortSHA = "CI_COMMIT_SHORT_SHA"

	// EnvCommitTag is the tag name, set only on tag pipelines.
	EnvCommitTag = "CI_COMMIT_TAG"
)

// GitLabEnvSource implements domain.ContextSource from GitLab CI
// predefined variables.
type GitLabEnvSource struct {
	lookup func(key string) string
}

// NewGitLabEnvSource creates a source reading the process environment.
// Returns domain.ErrNotGitLabCI when GITLAB_CI is not set.
func NewGitLabEnvSource() (*GitLabEnvSource, error) {
	return newGitLabEnvSource(os.Getenv)
}

func newGitLabEnvSource(lookup func(key string) string) (*GitLabEnvSource, error) {
	if lookup(EnvGitLabCI) == "" {
		return nil, domain.ErrNotGitLabCI
	}
	return &GitLabEnvSource{lookup: lookup}, nil
}

// GetCommitContext reads branch, short SHA and tag from the environment.
// GitLab leaves CI_COMMIT_BRANCH unset on tag pipelines; that is a valid
// context as long as the tag is present.
func (s *GitLabEnvSource) GetCommitContext(_ context.Context) (*domain.CommitContext, error) {
	shortSHA := s.lookup(EnvCommitShortSHA)
	if shortSHA == "" {
		return nil, fmt.Errorf("%w: %s is not set", domain.ErrInvalidContext, EnvCommitShortSHA)
	}

	return &domain.CommitContext{
		Branch:   s.lookup(EnvCommitBranch),
		ShortSHA: shortSHA,
		Tag:      s.lookup(EnvCommitTag),
		Source:   "gitlab-ci",
	}, nil
}

// Close releases any resources held by the source. No-op for environment reads.
func (s *GitLabEnvSource) Close() error {
	return nil
}
