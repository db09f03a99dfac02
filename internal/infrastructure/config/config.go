// Package config provides configuration loading for the stage-resolve application.
// It handles loading promotion settings, ClickHouse connection settings and
// other application settings from environment variables and HashiCorp Vault.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// Environment variable names.
const (
	// EnvRegistryBase is the image repository the version tag is appended to.
	EnvRegistryBase = "STAGE_RESOLVE_REGISTRY"

	// EnvCIRegistryImage is GitLab's predefined registry image path,
	// used as a fallback when EnvRegistryBase is not set.
	EnvCIRegistryImage = "CI_REGISTRY_IMAGE"

	// EnvPromotionConfig is the path to a local promotion settings JSON file.
	EnvPromotionConfig = "STAGE_RESOLVE_PROMOTION_CONFIG"

	// EnvVaultPromotionConfigPath is the path in Vault KV where promotion settings are stored.
	EnvVaultPromotionConfigPath = "VAULT_PROMOTION_CONFIG_PATH"

	// EnvVaultPromotionConfigMount is the Vault KV mount point (defaults to "secret").
	EnvVaultPromotionConfigMount = "VAULT_PROMOTION_CONFIG_MOUNT"

	// EnvClickHouseAddr enables the deployment history store when set.
	EnvClickHouseAddr = "CLICKHOUSE_ADDR"

	// EnvClickHouseDatabase is the history database name.
	EnvClickHouseDatabase = "CLICKHOUSE_DATABASE"

	// EnvClickHouseUsername and EnvClickHousePassword authenticate the connection.
	EnvClickHouseUsername = "CLICKHOUSE_USERNAME"
	EnvClickHousePassword = "CLICKHOUSE_PASSWORD"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"
)

// Default values.
const (
	DefaultLogLevel      = "info"
	DefaultLogAppName    = "stage-resolve"
	DefaultDatabase      = "ci"
	DefaultVaultKVMount  = "secret"
	DefaultReleaseBranch = domain.DefaultReleaseBranch
)

// Configuration errors.
var (
	// ErrPromotionConfigNotFound indicates the promotion settings file does not exist.
	ErrPromotionConfigNotFound = errors.New("promotion settings file not found")

	// ErrPromotionConfigInvalid indicates the promotion settings are not valid JSON.
	ErrPromotionConfigInvalid = errors.New("promotion settings are not valid JSON")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("promotion settings not found in Vault")
)

// VaultClient defines the interface for Vault operations.
// This interface allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
// This is the default factory used in production.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault with AppRole auth.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	// Load Vault configuration from environment variables
	// Uses: VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// PromotionSettings are the tunable parameters of the promotion decision
// table, loadable from Vault or a local JSON file.
type PromotionSettings struct {
	// ReleaseBranch is the branch eligible for automatic deploy-dev.
	ReleaseBranch string `json:"release_branch"`

	// RequireSemverTags rejects non-semver tags on staging and prod.
	RequireSemverTags bool `json:"require_semver_tags"`

	// RegistryBase overrides the registry base from the environment.
	RegistryBase string `json:"registry_base"`
}

// ClickHouseSettings hold the deployment history connection settings.
// Addr empty means no history store is configured.
type ClickHouseSettings struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Config holds all application configuration.
type Config struct {
	// RegistryBase is the image repository for image references.
	// May still be empty after loading; the CLI flag is the last resort.
	RegistryBase string

	// Promotion holds the decision table settings.
	Promotion PromotionSettings

	// ClickHouse holds the deployment history connection settings.
	ClickHouse ClickHouseSettings

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string
}

// Load loads the application configuration from environment variables.
// Promotion settings are loaded from Vault (preferred), a local file, or
// defaults when neither source is configured.
//
// For Vault loading, requires:
//   - VAULT_ADDRESS: Vault server address
//   - VAULT_ROLE_ID: AppRole role ID
//   - VAULT_SECRET_ID: AppRole secret ID
//   - VAULT_PROMOTION_CONFIG_PATH: Path to the secret in Vault
//   - VAULT_PROMOTION_CONFIG_MOUNT: KV mount point (optional, defaults to "secret")
//
// For file loading (fallback):
//   - STAGE_RESOLVE_PROMOTION_CONFIG: Path to local JSON file
func Load() (*Config, error) {
	return LoadWithVaultClient(context.Background(), nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient factory.
// If vaultClientFactory is nil, DefaultVaultClientFactory is used.
// This function enables dependency injection for testing.
func LoadWithVaultClient(ctx context.Context, vaultClientFactory VaultClientFactory) (*Config, error) {
	promotion, err := loadPromotionSettings(ctx, vaultClientFactory)
	if err != nil {
		return nil, err
	}

	registryBase := os.Getenv(EnvRegistryBase)
	if registryBase == "" {
		registryBase = os.Getenv(EnvCIRegistryImage)
	}
	if promotion.RegistryBase != "" {
		registryBase = promotion.RegistryBase
	}

	database := os.Getenv(EnvClickHouseDatabase)
	if database == "" {
		database = DefaultDatabase
	}

	logLevel := os.Getenv(EnvLogLevel)
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}

	logAppName := os.Getenv(EnvLogAppName)
	if logAppName == "" {
		logAppName = DefaultLogAppName
	}

	return &Config{
		RegistryBase: registryBase,
		Promotion:    *promotion,
		ClickHouse: ClickHouseSettings{
			Addr:     os.Getenv(EnvClickHouseAddr),
			Database: database,
			Username: os.Getenv(EnvClickHouseUsername),
			Password: os.Getenv(EnvClickHousePassword),
		},
		LogLevel:   logLevel,
		LogAppName: logAppName,
	}, nil
}

// loadPromotionSettings tries Vault first, then the local file, then
// defaults. Unlike connection settings, promotion settings are optional.
func loadPromotionSettings(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
) (*PromotionSettings, error) {
	vaultPath := os.Getenv(EnvVaultPromotionConfigPath)
	if vaultPath != "" {
		return loadPromotionSettingsFromVault(ctx, vaultClientFactory, vaultPath)
	}

	filePath := os.Getenv(EnvPromotionConfig)
	if filePath != "" {
		return loadPromotionSettingsFromFile(filePath)
	}

	return &PromotionSettings{ReleaseBranch: DefaultReleaseBranch}, nil
}

// loadPromotionSettingsFromVault loads promotion settings from Vault KV v2.
func loadPromotionSettingsFromVault(
	ctx context.Context,
	vaultClientFactory VaultClientFactory,
	path string,
) (*PromotionSettings, error) {
	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return nil, err
	}

	mount := os.Getenv(EnvVaultPromotionConfigMount)
	if mount == "" {
		mount = DefaultVaultKVMount
	}

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return nil, fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	return parsePromotionSettingsFromVault(secretData)
}

// parsePromotionSettingsFromVault parses promotion settings from Vault secret data.
// Supports two formats:
// 1. A "config" key containing a JSON string
// 2. Direct mapping of promotion settings fields in the secret
func parsePromotionSettingsFromVault(secretData map[string]interface{}) (*PromotionSettings, error) {
	if configStr, ok := secretData["config"].(string); ok {
		return parsePromotionSettings([]byte(configStr))
	}

	jsonData, err := json.Marshal(secretData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal secret data: %w", ErrPromotionConfigInvalid, err)
	}
	return parsePromotionSettings(jsonData)
}

// loadPromotionSettingsFromFile loads promotion settings from the specified file path.
func loadPromotionSettingsFromFile(path string) (*PromotionSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPromotionConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read promotion settings: %w", err)
	}

	return parsePromotionSettings(data)
}

func parsePromotionSettings(data []byte) (*PromotionSettings, error) {
	var settings PromotionSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPromotionConfigInvalid, err)
	}

	if settings.ReleaseBranch == "" {
		settings.ReleaseBranch = DefaultReleaseBranch
	}

	return &settings, nil
}
