// Package domain defines the core business entities and interfaces for stage-resolve.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
	"errors"
)

// Domain errors for context derivation and promotion resolution.
var (
	// ErrInvalidContext indicates the commit context is missing required
	// fields (short SHA, or both branch and tag). Fatal to the run.
	ErrInvalidContext = errors.New("invalid commit context")

	// ErrUnknownStage indicates the requested stage is not one of the
	// defined deployment stages.
	ErrUnknownStage = errors.New("unknown deployment stage")

	// ErrRepositoryNotFound indicates the specified path is not a valid Git repository.
	ErrRepositoryNotFound = errors.New("git repository not found at specified path")

	// ErrNotGitLabCI indicates the process is not running inside a GitLab CI job.
	ErrNotGitLabCI = errors.New("not running in GitLab CI (GITLAB_CI is not set)")

	// ErrRegistryBaseRequired indicates no registry base was configured,
	// so no image reference can be built.
	ErrRegistryBaseRequired = errors.New("registry base required: set --registry, STAGE_RESOLVE_REGISTRY or CI_REGISTRY_IMAGE")

	// ErrInvalidReleaseTag indicates the tag is not a valid semantic
	// version while strict tag validation is enabled.
	ErrInvalidReleaseTag = errors.New("release tag is not a valid semantic version")
)

// ContextSource derives the commit context for the current pipeline run.
// Implementations read either the local Git repository or the GitLab CI
// environment; the resolver does not care which.
type ContextSource interface {
	// GetCommitContext returns the immutable commit context.
	// The context is derived once; repeated calls return equal values.
	GetCommitContext(ctx context.Context) (*CommitContext, error)

	// Close releases any resources held by the source.
	Close() error
}

// DeploymentHistory records promotion resolutions and answers the
// deploy-prod staging gate.
type DeploymentHistory interface {
	// RecordResolution persists one deployment record.
	RecordResolution(ctx context.Context, rec *DeploymentRecord) error

	// HasSucceededDeployment reports whether a succeeded record exists
	// for the given stage and version tag.
	HasSucceededDeployment(ctx context.Context, stage Stage, versionTag string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// OutputWriter writes a resolution to an output destination.
type OutputWriter interface {
	// WriteResolution writes the resolution in the writer's format.
	WriteResolution(res *Resolution) error
}

// Resolver resolves stage eligibility from commit context.
type Resolver interface {
	// Resolve computes the version tag, image reference and eligibility
	// for the requested stage.
	Resolve(ctx context.Context, input ResolveInput) (*Resolution, error)
}
