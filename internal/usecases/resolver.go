package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// Logger defines the logging interface required by the resolver.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// PromotionResolver resolves deployment stage eligibility from commit context.
// It implements the core business logic: derive the version tag and image
// reference, consult the deployment history for the staging gate, and apply
// the promotion decision table.
type PromotionResolver struct {
	source  domain.ContextSource
	history domain.DeploymentHistory
	policy  Policy
	logger  Logger
	now     func() time.Time
}

// NewPromotionResolver creates a new PromotionResolver with the given dependencies.
func NewPromotionResolver(
	source domain.ContextSource,
	history domain.DeploymentHistory,
	policy Policy,
	log Logger,
) *PromotionResolver {
	return &PromotionResolver{
		source:  source,
		history: history,
		policy:  policy,
		logger:  log,
		now:     time.Now,
	}
}

// Resolve computes the version tag, image reference and eligibility for the
// requested stage. Given the same commit context and input it always
// returns the same resolution; there are no retries and no recovery.
func (r *PromotionResolver) Resolve(ctx context.Context, input domain.ResolveInput) (*domain.Resolution, error) {
	if input.RegistryBase == "" {
		return nil, domain.ErrRegistryBaseRequired
	}
	if !input.Stage.Known() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStage, input.Stage)
	}

	cc, err := r.source.GetCommitContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit context: %w", err)
	}

	if err := ValidateContext(*cc); err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "extracted commit context", map[string]interface{}{
		"branch":    cc.Branch,
		"short_sha": cc.ShortSHA,
		"tag":       cc.Tag,
		"source":    cc.Source,
	})

	versionTag := DeriveVersionTag(*cc)
	imageRef := BuildImageReference(input.RegistryBase, versionTag)

	stagingComplete, err := r.stagingGate(ctx, input, versionTag)
	if err != nil {
		return nil, err
	}

	eligibility, reason, err := r.policy.Decide(*cc, input.Stage, stagingComplete)
	if err != nil {
		return nil, err
	}

	res := &domain.Resolution{
		Stage:          input.Stage,
		VersionTag:     versionTag,
		ImageReference: imageRef,
		Eligibility:    eligibility,
		Reason:         reason,
		Context:        *cc,
	}

	r.logger.Info(ctx, "promotion resolved", map[string]interface{}{
		"stage":           res.Stage,
		"version_tag":     res.VersionTag,
		"image_reference": res.ImageReference,
		"eligibility":     res.Eligibility,
		"reason":          res.Reason,
	})

	if input.Record {
		if err := r.record(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to record resolution: %w", err)
		}
	}

	return res, nil
}

// stagingGate reports whether the deploy-prod staging gate is satisfied.
// The explicit StagingComplete assertion wins; otherwise the deployment
// history is queried for a succeeded deploy-staging record of this version.
// Stages other than deploy-prod never consult the gate.
func (r *PromotionResolver) stagingGate(
	ctx context.Context,
	input domain.ResolveInput,
	versionTag string,
) (bool, error) {
	if input.Stage != domain.StageDeployProd {
		return false, nil
	}
	if input.StagingComplete {
		r.logger.Debug(ctx, "staging gate asserted externally", map[string]interface{}{
			"version_tag": versionTag,
		})
		return true, nil
	}

	ok, err := r.history.HasSucceededDeployment(ctx, domain.StageDeployStaging, versionTag)
	if err != nil {
		return false, fmt.Errorf("failed to query deployment history: %w", err)
	}

	r.logger.Debug(ctx, "staging gate queried from deployment history", map[string]interface{}{
		"version_tag": versionTag,
		"satisfied":   ok,
	})
	return ok, nil
}

// record writes the resolution to the deployment history store.
func (r *PromotionResolver) record(ctx context.Context, res *domain.Resolution) error {
	rec := &domain.DeploymentRecord{
		ID:             uuid.NewString(),
		Stage:          res.Stage,
		VersionTag:     res.VersionTag,
		ImageReference: res.ImageReference,
		Eligibility:    res.Eligibility,
		Branch:         res.Context.Branch,
		ShortSHA:       res.Context.ShortSHA,
		Tag:            res.Context.Tag,
		Status:         domain.StatusResolved,
		RecordedAt:     r.now().UTC(),
	}

	if err := r.history.RecordResolution(ctx, rec); err != nil {
		return err
	}

	r.logger.Debug(ctx, "resolution recorded", map[string]interface{}{
		"record_id":   rec.ID,
		"stage":       rec.Stage,
		"version_tag": rec.VersionTag,
	})
	return nil
}
