package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// mockLogger implements the Logger interface for testing.
type mockLogger struct{}

func (m *mockLogger) Info(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Debug(_ context.Context, _ string, _ map[string]interface{})          {}
func (m *mockLogger) Warn(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]interface{}) {}

// mockContextSource implements domain.ContextSource for testing.
type mockContextSource struct {
	cc          *domain.CommitContext
	ccErr       error
	closeCalled bool
}

func (m *mockContextSource) GetCommitContext(_ context.Context) (*domain.CommitContext, error) {
	if m.ccErr != nil {
		return nil, m.ccErr
	}
	return m.cc, nil
}

func (m *mockContextSource) Close() error {
	m.closeCalled = true
	return nil
}

// mockHistory implements domain.DeploymentHistory for testing.
type mockHistory struct {
	succeeded    bool
	succeededErr error
	recordErr    error
	records      []*domain.DeploymentRecord
	gateCalls    []gateCall
	closeCalled  bool
}

type gateCall struct {
	stage      domain.Stage
	versionTag string
}

func (m *mockHistory) RecordResolution(_ context.Context, rec *domain.DeploymentRecord) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockHistory) HasSucceededDeployment(
	_ context.Context,
	stage domain.Stage,
	versionTag string,
) (bool, error) {
	m.gateCalls = append(m.gateCalls, gateCall{stage: stage, versionTag: versionTag})
	return m.succeeded, m.succeededErr
}

func (m *mockHistory) Close() error {
	m.closeCalled = true
	return nil
}

const testRegistry = "registry.gitlab.com/acme/orders"

func TestPromotionResolver_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		input       domain.ResolveInput
		mockSource  *mockContextSource
		mockHistory *mockHistory
		wantOutput  *domain.Resolution
		wantErr     bool
		wantErrIs   error
		wantErrMsg  string
	}{
		{
			name: "dev auto on main commit",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployDev,
				RegistryBase: testRegistry,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{Branch: "main", ShortSHA: "a1b2c3d4", Source: "git"},
			},
			mockHistory: &mockHistory{},
			wantOutput: &domain.Resolution{
				Stage:          domain.StageDeployDev,
				VersionTag:     "main-a1b2c3d4",
				ImageReference: testRegistry + ":main-a1b2c3d4",
				Eligibility:    domain.EligibilityAuto,
			},
		},
		{
			name: "staging skipped on main commit",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployStaging,
				RegistryBase: testRegistry,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{Branch: "main", ShortSHA: "a1b2c3d4", Source: "git"},
			},
			mockHistory: &mockHistory{},
			wantOutput: &domain.Resolution{
				Stage:          domain.StageDeployStaging,
				VersionTag:     "main-a1b2c3d4",
				ImageReference: testRegistry + ":main-a1b2c3d4",
				Eligibility:    domain.EligibilitySkipped,
			},
		},
		{
			name: "staging auto on tag pipeline",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployStaging,
				RegistryBase: testRegistry,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{ShortSHA: "a1b2c3d4", Tag: "v1.5.0", Source: "gitlab-ci"},
			},
			mockHistory: &mockHistory{},
			wantOutput: &domain.Resolution{
				Stage:          domain.StageDeployStaging,
				VersionTag:     "v1.5.0",
				ImageReference: testRegistry + ":v1.5.0",
				Eligibility:    domain.EligibilityAuto,
			},
		},
		{
			name: "prod manual approval via history gate",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployProd,
				RegistryBase: testRegistry,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{ShortSHA: "a1b2c3d4", Tag: "v1.5.0", Source: "gitlab-ci"},
			},
			mockHistory: &mockHistory{succeeded: true},
			wantOutput: &domain.Resolution{
				Stage:          domain.StageDeployProd,
				VersionTag:     "v1.5.0",
				ImageReference: testRegistry + ":v1.5.0",
				Eligibility:    domain.EligibilityManualApproval,
			},
		},
		{
			name: "prod skipped when staging gate unsatisfied",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployProd,
				RegistryBase: testRegistry,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{ShortSHA: "a1b2c3d4", Tag: "v1.5.0", Source: "gitlab-ci"},
			},
			mockHistory: &mockHistory{succeeded: false},
			wantOutput: &domain.Resolution{
				Stage:          domain.StageDeployProd,
				VersionTag:     "v1.5.0",
				ImageReference: testRegistry + ":v1.5.0",
				Eligibility:    domain.EligibilitySkipped,
			},
		},
		{
			name: "prod manual approval via explicit assertion",
			input: domain.ResolveInput{
				Stage:           domain.StageDeployProd,
				RegistryBase:    testRegistry,
				StagingComplete: true,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{ShortSHA: "a1b2c3d4", Tag: "v1.5.0", Source: "gitlab-ci"},
			},
			mockHistory: &mockHistory{succeeded: false},
			wantOutput: &domain.Resolution{
				Stage:          domain.StageDeployProd,
				VersionTag:     "v1.5.0",
				ImageReference: testRegistry + ":v1.5.0",
				Eligibility:    domain.EligibilityManualApproval,
			},
		},
		{
			name: "error - missing registry base",
			input: domain.ResolveInput{
				Stage: domain.StageDeployDev,
			},
			mockSource:  &mockContextSource{},
			mockHistory: &mockHistory{},
			wantErr:     true,
			wantErrIs:   domain.ErrRegistryBaseRequired,
		},
		{
			name: "error - unknown stage",
			input: domain.ResolveInput{
				Stage:        domain.Stage("deploy-qa"),
				RegistryBase: testRegistry,
			},
			mockSource:  &mockContextSource{},
			mockHistory: &mockHistory{},
			wantErr:     true,
			wantErrIs:   domain.ErrUnknownStage,
		},
		{
			name: "error - context source fails",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployDev,
				RegistryBase: testRegistry,
			},
			mockSource:  &mockContextSource{ccErr: errors.New("failed to get HEAD")},
			mockHistory: &mockHistory{},
			wantErr:     true,
			wantErrMsg:  "failed to get commit context",
		},
		{
			name: "error - invalid context",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployDev,
				RegistryBase: testRegistry,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{ShortSHA: "a1b2c3d4"},
			},
			mockHistory: &mockHistory{},
			wantErr:     true,
			wantErrIs:   domain.ErrInvalidContext,
		},
		{
			name: "error - history query fails",
			input: domain.ResolveInput{
				Stage:        domain.StageDeployProd,
				RegistryBase: testRegistry,
			},
			mockSource: &mockContextSource{
				cc: &domain.CommitContext{ShortSHA: "a1b2c3d4", Tag: "v1.5.0"},
			},
			mockHistory: &mockHistory{succeededErr: errors.New("connection refused")},
			wantErr:     true,
			wantErrMsg:  "failed to query deployment history",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			resolver := NewPromotionResolver(tt.mockSource, tt.mockHistory, DefaultPolicy(), &mockLogger{})

			// Act
			output, err := resolver.Resolve(context.Background(), tt.input)

			// Assert
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantErrIs != nil {
					assert.ErrorIs(t, err, tt.wantErrIs)
				}
				if tt.wantErrMsg != "" {
					assert.Contains(t, err.Error(), tt.wantErrMsg)
				}
				assert.Nil(t, output)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, output)
			assert.Equal(t, tt.wantOutput.Stage, output.Stage)
			assert.Equal(t, tt.wantOutput.VersionTag, output.VersionTag)
			assert.Equal(t, tt.wantOutput.ImageReference, output.ImageReference)
			assert.Equal(t, tt.wantOutput.Eligibility, output.Eligibility)
			assert.NotEmpty(t, output.Reason)
		})
	}
}

func TestPromotionResolver_Resolve_GateQueriedForStagingStage(t *testing.T) {
	// Arrange
	mockSource := &mockContextSource{
		cc: &domain.CommitContext{ShortSHA: "a1b2c3d4", Tag: "v1.5.0"},
	}
	mockHist := &mockHistory{succeeded: true}
	resolver := NewPromotionResolver(mockSource, mockHist, DefaultPolicy(), &mockLogger{})

	// Act
	_, err := resolver.Resolve(context.Background(), domain.ResolveInput{
		Stage:        domain.StageDeployProd,
		RegistryBase: testRegistry,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, mockHist.gateCalls, 1)
	call := mockHist.gateCalls[0]
	assert.Equal(t, domain.StageDeployStaging, call.stage)
	assert.Equal(t, "v1.5.0", call.versionTag)
}

func TestPromotionResolver_Resolve_GateNotQueriedForOtherStages(t *testing.T) {
	mockSource := &mockContextSource{
		cc: &domain.CommitContext{Branch: "main", ShortSHA: "a1b2c3d4"},
	}
	mockHist := &mockHistory{}
	resolver := NewPromotionResolver(mockSource, mockHist, DefaultPolicy(), &mockLogger{})

	_, err := resolver.Resolve(context.Background(), domain.ResolveInput{
		Stage:        domain.StageDeployDev,
		RegistryBase: testRegistry,
	})

	require.NoError(t, err)
	assert.Empty(t, mockHist.gateCalls)
}

func TestPromotionResolver_Resolve_RecordsResolution(t *testing.T) {
	// Arrange
	mockSource := &mockContextSource{
		cc: &domain.CommitContext{ShortSHA: "a1b2c3d4", Tag: "v1.5.0", Source: "gitlab-ci"},
	}
	mockHist := &mockHistory{}
	resolver := NewPromotionResolver(mockSource, mockHist, DefaultPolicy(), &mockLogger{})
	fixed := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return fixed }

	// Act
	_, err := resolver.Resolve(context.Background(), domain.ResolveInput{
		Stage:        domain.StageDeployStaging,
		RegistryBase: testRegistry,
		Record:       true,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, mockHist.records, 1)
	rec := mockHist.records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.StageDeployStaging, rec.Stage)
	assert.Equal(t, "v1.5.0", rec.VersionTag)
	assert.Equal(t, testRegistry+":v1.5.0", rec.ImageReference)
	assert.Equal(t, domain.EligibilityAuto, rec.Eligibility)
	assert.Equal(t, "a1b2c3d4", rec.ShortSHA)
	assert.Equal(t, "v1.5.0", rec.Tag)
	assert.Equal(t, domain.StatusResolved, rec.Status)
	assert.Equal(t, fixed, rec.RecordedAt)
}

func TestPromotionResolver_Resolve_RecordFailureSurfaced(t *testing.T) {
	mockSource := &mockContextSource{
		cc: &domain.CommitContext{Branch: "main", ShortSHA: "a1b2c3d4"},
	}
	mockHist := &mockHistory{recordErr: errors.New("insert failed")}
	resolver := NewPromotionResolver(mockSource, mockHist, DefaultPolicy(), &mockLogger{})

	_, err := resolver.Resolve(context.Background(), domain.ResolveInput{
		Stage:        domain.StageDeployDev,
		RegistryBase: testRegistry,
		Record:       true,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record resolution")
}

func TestPromotionResolver_Resolve_NoRecordWithoutFlag(t *testing.T) {
	mockSource := &mockContextSource{
		cc: &domain.CommitContext{Branch: "main", ShortSHA: "a1b2c3d4"},
	}
	mockHist := &mockHistory{}
	resolver := NewPromotionResolver(mockSource, mockHist, DefaultPolicy(), &mockLogger{})

	_, err := resolver.Resolve(context.Background(), domain.ResolveInput{
		Stage:        domain.StageDeployDev,
		RegistryBase: testRegistry,
	})

	require.NoError(t, err)
	assert.Empty(t, mockHist.records)
}
