// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// Policy holds the tunable parameters of the promotion decision table.
// The zero value is not usable; construct with DefaultPolicy.
type Policy struct {
	// ReleaseBranch is the branch eligible for automatic deploy-dev.
	ReleaseBranch string

	// RequireSemverTags rejects tags that do not parse as semantic
	// versions when resolving deploy-staging and deploy-prod.
	RequireSemverTags bool
}

// DefaultPolicy returns the decision table parameters used when no
// promotion settings are configured.
func DefaultPolicy() Policy {
	return Policy{ReleaseBranch: domain.DefaultReleaseBranch}
}

// ValidateContext checks that the commit context carries enough
// information to derive a version tag. The short SHA is always required;
// at least one of branch and tag must be present.
func ValidateContext(cc domain.CommitContext) error {
	if cc.ShortSHA == "" {
		return fmt.Errorf("%w: short SHA is empty", domain.ErrInvalidContext)
	}
	if cc.Branch == "" && !cc.HasTag() {
		return fmt.Errorf("%w: both branch and tag are empty", domain.ErrInvalidContext)
	}
	return nil
}

// DeriveVersionTag computes the artifact version for the context:
// the git tag verbatim when present, otherwise "{branch}-{shortSHA}".
// The result is non-empty and deterministic for any valid context.
func DeriveVersionTag(cc domain.CommitContext) string {
	if cc.HasTag() {
		return cc.Tag
	}
	return cc.Branch + "-" + cc.ShortSHA
}

// BuildImageReference joins the registry base and version tag in the
// literal "base:tag" format consumed by the container tooling.
func BuildImageReference(registryBase, versionTag string) string {
	return registryBase + ":" + versionTag
}

// Decide applies the promotion decision table for one stage.
// It is a pure, total function: identical inputs always yield the same
// eligibility. stagingComplete reports whether the deploy-staging gate is
// satisfied for this version; it only matters for deploy-prod.
func (p Policy) Decide(
	cc domain.CommitContext,
	stage domain.Stage,
	stagingComplete bool,
) (domain.Eligibility, string, error) {
	if !stage.Known() {
		return "", "", fmt.Errorf("%w: %q", domain.ErrUnknownStage, stage)
	}

	if err := p.checkReleaseTag(cc, stage); err != nil {
		return "", "", err
	}

	switch stage {
	case domain.StageDeployDev:
		if cc.HasTag() {
			return domain.EligibilitySkipped, "tag pipelines do not deploy to dev", nil
		}
		if cc.Branch != p.ReleaseBranch {
			return domain.EligibilitySkipped,
				fmt.Sprintf("branch %q is not the release branch %q", cc.Branch, p.ReleaseBranch), nil
		}
		return domain.EligibilityAuto, "release branch commit", nil

	case domain.StageDeployStaging:
		if !cc.HasTag() {
			return domain.EligibilitySkipped, "no tag present", nil
		}
		return domain.EligibilityAuto, "tagged release", nil

	case domain.StageDeployProd:
		if !cc.HasTag() {
			return domain.EligibilitySkipped, "no tag present", nil
		}
		if !stagingComplete {
			return domain.EligibilitySkipped, "staging deployment has not succeeded", nil
		}
		return domain.EligibilityManualApproval, "tagged release with staging complete; requires manual trigger", nil
	}

	// Unreachable: stage.Known() covers the switch.
	return domain.EligibilitySkipped, "", nil
}

// checkReleaseTag enforces semver tags on staging and prod when the
// policy demands it. Dev deployments never see tags, so they are exempt.
func (p Policy) checkReleaseTag(cc domain.CommitContext, stage domain.Stage) error {
	if !p.RequireSemverTags || !cc.HasTag() || stage == domain.StageDeployDev {
		return nil
	}
	if _, err := semver.NewVersion(cc.Tag); err != nil {
		return fmt.Errorf("%w: %q: %w", domain.ErrInvalidReleaseTag, cc.Tag, err)
	}
	return nil
}
