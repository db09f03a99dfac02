// Package cmd provides the CLI commands for stage-resolve.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func() (*AppConfig, error)

	// ContextSourceFactory creates a ContextSource. When fromCI is true
	// the source reads GitLab CI variables; otherwise it opens the local
	// repository at path.
	ContextSourceFactory func(path string, fromCI bool, log Logger) (domain.ContextSource, error)

	// HistoryFactory creates a DeploymentHistory using the given config.
	HistoryFactory func(cfg *AppConfig, log Logger) (domain.DeploymentHistory, error)

	// ResolverFactory creates a Resolver with the given dependencies.
	ResolverFactory func(
		source domain.ContextSource,
		history domain.DeploymentHistory,
		cfg *AppConfig,
		log Logger,
	) domain.Resolver

	// OutputWriterFactory creates an OutputWriter for the given format.
	OutputWriterFactory func(format string) (domain.OutputWriter, error)

	// Stdout is the writer for standard output (for the resolution).
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// RegistryBase is the image repository for image references.
	RegistryBase string

	// ReleaseBranch is the branch eligible for automatic deploy-dev.
	ReleaseBranch string

	// RequireSemverTags rejects non-semver tags on staging and prod.
	RequireSemverTags bool

	// ClickHouse connection settings; Addr empty disables the history store.
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

// Command-line flags.
var (
	stage           string
	fromCI          bool
	registry        string
	format          string
	record          bool
	stagingComplete bool
	verbose         bool
)

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for stage-resolve.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stage-resolve [path]",
		Short: "Resolve deployment stage eligibility from Git commit context",
		Long: `stage-resolve computes the artifact version tag, the container image
reference and the eligibility of a deployment stage from the current
commit context (branch, short SHA, optional tag).

The context is derived from the local Git repository, or from GitLab CI
predefined variables with --from-ci. The decision table:

  deploy-dev      auto            release branch commits without a tag
  deploy-staging  auto            tagged releases
  deploy-prod     manual-approval tagged releases after staging succeeded

Everything else is skipped. The result is written to stdout as dotenv
lines (VERSION_TAG, IMAGE_REFERENCE, STAGE_ELIGIBILITY) or as JSON.

Examples:
  # Resolve deploy-dev from the current directory
  stage-resolve --stage deploy-dev

  # Resolve inside a GitLab CI job, consuming CI_* variables
  stage-resolve --stage deploy-staging --from-ci

  # Resolve prod with the staging gate asserted, recording the decision
  stage-resolve --stage deploy-prod --staging-complete --record

  # JSON output for a specific repository path
  stage-resolve /path/to/repo --stage deploy-dev --format json`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, deps)
		},
	}

	// Define flags
	rootCmd.Flags().StringVarP(&stage, "stage", "s", "",
		"Deployment stage to resolve (deploy-dev, deploy-staging, deploy-prod)")
	rootCmd.Flags().BoolVar(&fromCI, "from-ci", false,
		"Derive commit context from GitLab CI variables instead of the local repository")
	rootCmd.Flags().StringVarP(&registry, "registry", "r", "",
		"Registry base for image references (overrides environment and config)")
	rootCmd.Flags().StringVarP(&format, "format", "f", "dotenv",
		"Output format: dotenv or json")
	rootCmd.Flags().BoolVar(&record, "record", false,
		"Record the resolution in the deployment history store")
	rootCmd.Flags().BoolVar(&stagingComplete, "staging-complete", false,
		"Assert that the staging deployment for this version succeeded")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	_ = rootCmd.MarkFlagRequired("stage")

	return rootCmd
}

// runResolve executes the promotion resolution with injected dependencies.
func runResolve(cmd *cobra.Command, args []string, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Determine repository path
	repoPath := "."
	if len(args) > 0 {
		repoPath = args[0]
	}

	// Get stderr for warnings
	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Set log level based on verbose flag (best-effort)
	if verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	// Initialize logger
	log := deps.LoggerFactory()

	log.Info(ctx, "starting stage-resolve", map[string]interface{}{
		"path":    repoPath,
		"stage":   stage,
		"from_ci": fromCI,
		"verbose": verbose,
	})

	// Load configuration
	cfg, err := deps.ConfigLoader()
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}

	// Registry flag beats environment and config
	if registry != "" {
		cfg.RegistryBase = registry
	}

	// Initialize commit context source
	source, err := deps.ContextSourceFactory(repoPath, fromCI, log)
	if err != nil {
		log.Error(ctx, "failed to initialize context source", err, map[string]interface{}{
			"path":    repoPath,
			"from_ci": fromCI,
		})
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return fmt.Errorf("not a git repository: %s", repoPath)
		}
		if errors.Is(err, domain.ErrNotGitLabCI) {
			return fmt.Errorf("--from-ci requires a GitLab CI environment (GITLAB_CI is not set)")
		}
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			log.Warn(ctx, "failed to close context source", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	// Initialize deployment history
	history, err := deps.HistoryFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialize deployment history", err, nil)
		return fmt.Errorf("history store error: %w", err)
	}
	defer func() {
		if closeErr := history.Close(); closeErr != nil {
			log.Warn(ctx, "failed to close deployment history", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	// Create resolver and resolve the stage
	resolver := deps.ResolverFactory(source, history, cfg, log)
	result, err := resolver.Resolve(ctx, domain.ResolveInput{
		Stage:           domain.Stage(stage),
		RegistryBase:    cfg.RegistryBase,
		StagingComplete: stagingComplete,
		Record:          record,
	})
	if err != nil {
		log.Error(ctx, "failed to resolve promotion", err, nil)
		if errors.Is(err, domain.ErrUnknownStage) {
			return fmt.Errorf("unknown stage %q (expected deploy-dev, deploy-staging or deploy-prod)", stage)
		}
		if errors.Is(err, domain.ErrRegistryBaseRequired) {
			return err
		}
		if errors.Is(err, domain.ErrInvalidContext) {
			return fmt.Errorf("invalid commit context: %w", err)
		}
		return err
	}

	// Write the resolution to stdout
	writer, err := deps.OutputWriterFactory(format)
	if err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	if err := writer.WriteResolution(result); err != nil {
		log.Error(ctx, "failed to write output", err, nil)
		return fmt.Errorf("output error: %w", err)
	}

	log.Info(ctx, "promotion resolution complete", map[string]interface{}{
		"stage":           result.Stage,
		"version_tag":     result.VersionTag,
		"image_reference": result.ImageReference,
		"eligibility":     result.Eligibility,
	})

	return nil
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		// Intentionally ignored: no recovery action for failed stderr writes
		return
	}
}
