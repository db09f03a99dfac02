package history

import (
	"context"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// NoopHistory implements domain.DeploymentHistory when no store is
// configured. It records nothing and reports the staging gate as not
// satisfied, leaving the explicit --staging-complete assertion as the only
// way to open the deploy-prod gate.
type NoopHistory struct{}

// NewNoopHistory returns the no-op deployment history.
func NewNoopHistory() *NoopHistory {
	return &NoopHistory{}
}

// RecordResolution discards the record.
func (h *NoopHistory) RecordResolution(_ context.Context, _ *domain.DeploymentRecord) error {
	return nil
}

// HasSucceededDeployment always reports false.
func (h *NoopHistory) HasSucceededDeployment(_ context.Context, _ domain.Stage, _ string) (bool, error) {
	return false, nil
}

// Close is a no-op.
func (h *NoopHistory) Close() error {
	return nil
}
