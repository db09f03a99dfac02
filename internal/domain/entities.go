// Package domain defines the core business entities and interfaces for stage-resolve.
package domain

import "time"

// CommitContext is the repository metadata snapshot for one pipeline run.
// It is constructed once by a ContextSource and never mutated afterwards.
type CommitContext struct {
	// Branch is the branch name the pipeline runs for.
	// Empty on tag pipelines and detached HEADs.
	Branch string

	// ShortSHA is the abbreviated commit SHA (8 hex characters, matching
	// GitLab's CI_COMMIT_SHORT_SHA).
	ShortSHA string

	// Tag is the git tag pointing at the commit, or empty if the commit
	// is not tagged.
	Tag string

	// Source records where the context was derived from ("git" or
	// "gitlab-ci"). Used for logging only.
	Source string
}

// HasTag reports whether the context carries a tag.
func (c CommitContext) HasTag() bool {
	return c.Tag != ""
}

// Stage identifies a deployment stage of the pipeline.
type Stage string

// Deployment stages, in promotion order.
const (
	StageDeployDev     Stage = "deploy-dev"
	StageDeployStaging Stage = "deploy-staging"
	StageDeployProd    Stage = "deploy-prod"
)

// Known reports whether s is one of the defined deployment stages.
func (s Stage) Known() bool {
	switch s {
	case StageDeployDev, StageDeployStaging, StageDeployProd:
		return true
	}
	return false
}

// Eligibility is the promotion decision for a stage.
type Eligibility string

const (
	// EligibilityAuto means the stage runs without human intervention.
	EligibilityAuto Eligibility = "auto"

	// EligibilityManualApproval means the stage may run, but only after
	// an explicit human trigger.
	EligibilityManualApproval Eligibility = "manual-approval"

	// EligibilitySkipped means the stage does not run for this context.
	EligibilitySkipped Eligibility = "skipped"
)

// ResolveInput contains the parameters for one promotion resolution.
// The commit context itself is provided by the ContextSource configured
// when the resolver is created.
type ResolveInput struct {
	// Stage is the deployment stage to resolve eligibility for.
	Stage Stage

	// RegistryBase is the image repository the version tag is appended to,
	// e.g. "europe-west1-docker.pkg.dev/acme/apps/orders".
	RegistryBase string

	// StagingComplete asserts the deploy-prod staging gate externally.
	// The gate is also satisfied by a succeeded deploy-staging record in
	// the deployment history for the same version tag.
	StagingComplete bool

	// Record persists the resolution to the deployment history store.
	Record bool
}

// Resolution is the result of resolving one stage for one commit context.
type Resolution struct {
	// Stage is the stage the resolution was computed for.
	Stage Stage `json:"stage"`

	// VersionTag is the derived artifact version: the git tag verbatim
	// when present, otherwise "{branch}-{shortSHA}".
	VersionTag string `json:"version_tag"`

	// ImageReference is "{registryBase}:{versionTag}". It uniquely
	// identifies one build artifact and is never rewritten.
	ImageReference string `json:"image_reference"`

	// Eligibility is the promotion decision for the stage.
	Eligibility Eligibility `json:"eligibility"`

	// Reason is a short explanation of the eligibility decision.
	Reason string `json:"reason"`

	// Context is the commit context the resolution was derived from.
	Context CommitContext `json:"-"`
}

// DeploymentRecord is one row of the deployment history store.
type DeploymentRecord struct {
	// ID is a unique identifier for the record.
	ID string

	// Stage is the deployment stage the record belongs to.
	Stage Stage

	// VersionTag is the artifact version the record refers to.
	VersionTag string

	// ImageReference is the full image reference of the artifact.
	ImageReference string

	// Eligibility is the decision that was resolved for the stage.
	Eligibility Eligibility

	// Branch, ShortSHA and Tag echo the commit context for auditability.
	Branch   string
	ShortSHA string
	Tag      string

	// Status is the lifecycle state of the record. The resolver writes
	// "resolved"; deploy jobs later mark records "succeeded" or "failed".
	Status string

	// RecordedAt is when the record was written.
	RecordedAt time.Time
}

// Deployment record statuses.
const (
	StatusResolved  = "resolved"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ShortSHALength is the abbreviated commit SHA length, matching GitLab's
// CI_COMMIT_SHORT_SHA.
const ShortSHALength = 8

// DefaultReleaseBranch is the branch eligible for automatic deploy-dev.
const DefaultReleaseBranch = "main"
