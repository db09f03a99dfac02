// Package main is the entry point for the stage-resolve CLI application.
// stage-resolve computes artifact version tags, image references and
// deployment stage eligibility from Git commit context, for consumption
// by GitLab CI pipeline jobs.
package main

import (
	"fmt"
	"os"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/MyCarrier-DevOps/stage-resolve/cmd"
	"github.com/MyCarrier-DevOps/stage-resolve/internal/adapters/cienv"
	"github.com/MyCarrier-DevOps/stage-resolve/internal/adapters/git"
	"github.com/MyCarrier-DevOps/stage-resolve/internal/adapters/history"
	logadapter "github.com/MyCarrier-DevOps/stage-resolve/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/stage-resolve/internal/adapters/output"
	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
	"github.com/MyCarrier-DevOps/stage-resolve/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/stage-resolve/internal/usecases"
)

func main() {
	// Create a single shared logger instance for the application
	zapLog := logger.NewZapLoggerFromConfig()
	adapter := logadapter.NewZapAdapter(zapLog)

	// Wire up production dependencies
	deps := &cmd.Dependencies{
		LoggerFactory: func() cmd.Logger {
			return adapter
		},

		ConfigLoader: func() (*cmd.AppConfig, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			return &cmd.AppConfig{
				RegistryBase:       cfg.RegistryBase,
				ReleaseBranch:      cfg.Promotion.ReleaseBranch,
				RequireSemverTags:  cfg.Promotion.RequireSemverTags,
				ClickHouseAddr:     cfg.ClickHouse.Addr,
				ClickHouseDatabase: cfg.ClickHouse.Database,
				ClickHouseUsername: cfg.ClickHouse.Username,
				ClickHousePassword: cfg.ClickHouse.Password,
				LogLevel:           cfg.LogLevel,
				LogAppName:         cfg.LogAppName,
			}, nil
		},

		ContextSourceFactory: func(path string, fromCI bool, _ cmd.Logger) (domain.ContextSource, error) {
			if fromCI {
				return cienv.NewGitLabEnvSource()
			}
			return git.NewGoGitRepository(path, adapter)
		},

		HistoryFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) (domain.DeploymentHistory, error) {
			if cfg.ClickHouseAddr == "" {
				return history.NewNoopHistory(), nil
			}
			return history.NewClickHouseHistory(history.Options{
				Addr:     cfg.ClickHouseAddr,
				Database: cfg.ClickHouseDatabase,
				Username: cfg.ClickHouseUsername,
				Password: cfg.ClickHousePassword,
			})
		},

		ResolverFactory: func(
			source domain.ContextSource,
			hist domain.DeploymentHistory,
			cfg *cmd.AppConfig,
			_ cmd.Logger,
		) domain.Resolver {
			policy := usecases.Policy{
				ReleaseBranch:     cfg.ReleaseBranch,
				RequireSemverTags: cfg.RequireSemverTags,
			}
			if policy.ReleaseBranch == "" {
				policy.ReleaseBranch = domain.DefaultReleaseBranch
			}
			return usecases.NewPromotionResolver(source, hist, policy, adapter)
		},

		OutputWriterFactory: func(format string) (domain.OutputWriter, error) {
			switch output.Format(format) {
			case output.FormatDotenv, output.FormatJSON, "":
				return output.NewWriter(output.Format(format)), nil
			default:
				return nil, fmt.Errorf("%w: %q", output.ErrUnknownFormat, format)
			}
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}
