// Package history provides deployment history backends.
// The ClickHouse adapter persists promotion resolutions and answers the
// deploy-prod staging gate; NoopHistory backs runs with no store configured.
package history

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// conn is the subset of driver.Conn used by the adapter.
// Narrowing the dependency keeps the adapter testable without a server.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
	Close() error
}

// ClickHouseHistory implements domain.DeploymentHistory on a ClickHouse
// deployments table.
type ClickHouseHistory struct {
	conn  conn
	table string
}

// Options configures the ClickHouse connection.
type Options struct {
	// Addr is the ClickHouse address in host:port form.
	Addr string

	// Database is the database holding the deployments table.
	Database string

	// Username and Password authenticate the connection.
	Username string
	Password string

	// Table is the deployments table name (defaults to "deployments").
	Table string
}

const defaultTable = "deployments"

// NewClickHouseHistory opens a ClickHouse connection and returns the
// history adapter.
func NewClickHouseHistory(opts Options) (*ClickHouseHistory, error) {
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	table := opts.Table
	if table == "" {
		table = defaultTable
	}

	return &ClickHouseHistory{conn: c, table: table}, nil
}

// RecordResolution persists one deployment record.
func (h *ClickHouseHistory) RecordResolution(ctx context.Context, rec *domain.DeploymentRecord) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(id, stage, version_tag, image_reference, eligibility, branch, short_sha, tag, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, h.table)

	err := h.conn.Exec(ctx, query,
		rec.ID,
		string(rec.Stage),
		rec.VersionTag,
		rec.ImageReference,
		string(rec.Eligibility),
		rec.Branch,
		rec.ShortSHA,
		rec.Tag,
		rec.Status,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deployment record: %w", err)
	}
	return nil
}

// HasSucceededDeployment reports whether a succeeded record exists for the
// given stage and version tag.
func (h *ClickHouseHistory) HasSucceededDeployment(
	ctx context.Context,
	stage domain.Stage,
	versionTag string,
) (bool, error) {
	query := fmt.Sprintf(
		`SELECT count() FROM %s WHERE stage = ? AND version_tag = ? AND status = ?`, h.table)

	var count uint64
	row := h.conn.QueryRow(ctx, query, string(stage), versionTag, domain.StatusSucceeded)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query deployment history: %w", err)
	}

	return count > 0, nil
}

// Close releases the ClickHouse connection.
func (h *ClickHouseHistory) Close() error {
	return h.conn.Close()
}
