// Package repository provides database access layer.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpromedia/samltoken/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateEntityID = errors.New("a connection with this idp entity id already exists")
)

// Repository provides database operations.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ============================================================
// CONNECTION OPERATIONS
// ============================================================

// CreateConnection inserts a new SAML connection.
func (r *Repository) CreateConnection(ctx context.Context, c *models.Connection) error {
	certsJSON, err := json.Marshal(c.IDPCertificatesPEM)
	if err != nil {
		return fmt.Errorf("failed to marshal certificates: %w", err)
	}

	query := `
		INSERT INTO sso_connections (
			id, name, idp_entity_id, idp_certificates, acs_url, audience,
			is_enabled, require_signed_assertions, clock_skew_seconds,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.pool.Exec(ctx, query,
		c.ID, c.Name, c.IDPEntityID, certsJSON, c.ACSURL, c.Audience,
		c.IsEnabled, c.RequireSignedAssertions, c.ClockSkewSeconds,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEntityID
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}

	return nil
}

// GetConnectionByID retrieves a connection by ID.
func (r *Repository) GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	query := `
		SELECT id, name, idp_entity_id, idp_certificates, acs_url, audience,
		       is_enabled, require_signed_assertions, clock_skew_seconds,
		       created_at, updated_at
		FROM sso_connections
		WHERE id = $1
	`
	return scanConnection(r.pool.QueryRow(ctx, query, id))
}

// GetConnectionByEntityID retrieves a connection by the issuer entity
// ID the IdP asserts, the lookup used on every ACS callback.
func (r *Repository) GetConnectionByEntityID(ctx context.Context, entityID string) (*models.Connection, error) {
	query := `
		SELECT id, name, idp_entity_id, idp_certificates, acs_url, audience,
		       is_enabled, require_signed_assertions, clock_skew_seconds,
		       created_at, updated_at
		FROM sso_connections
		WHERE idp_entity_id = $1
	`
	return scanConnection(r.pool.QueryRow(ctx, query, entityID))
}

// ListConnections returns all configured connections.
func (r *Repository) ListConnections(ctx context.Context) ([]*models.Connection, error) {
	query := `
		SELECT id, name, idp_entity_id, idp_certificates, acs_url, audience,
		       is_enabled, require_signed_assertions, clock_skew_seconds,
		       created_at, updated_at
		FROM sso_connections
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var out []*models.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConnection persists changes to an existing connection.
func (r *Repository) UpdateConnection(ctx context.Context, c *models.Connection) error {
	certsJSON, err := json.Marshal(c.IDPCertificatesPEM)
	if err != nil {
		return fmt.Errorf("failed to marshal certificates: %w", err)
	}

	query := `
		UPDATE sso_connections
		SET name = $2, idp_certificates = $3, acs_url = $4, audience = $5,
		    is_enabled = $6, require_signed_assertions = $7,
		    clock_skew_seconds = $8, updated_at = $9
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		c.ID, c.Name, certsJSON, c.ACSURL, c.Audience,
		c.IsEnabled, c.RequireSignedAssertions, c.ClockSkewSeconds, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConnection removes a connection.
func (r *Repository) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sso_connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by both pgx.Row (QueryRow) and pgx.Rows
// (Query, inside a Next() loop).
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(rw rowScanner) (*models.Connection, error) {
	var c models.Connection
	var certsJSON []byte

	err := rw.Scan(
		&c.ID, &c.Name, &c.IDPEntityID, &certsJSON, &c.ACSURL, &c.Audience,
		&c.IsEnabled, &c.RequireSignedAssertions, &c.ClockSkewSeconds,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	if err := json.Unmarshal(certsJSON, &c.IDPCertificatesPEM); err != nil {
		return nil, fmt.Errorf("failed to unmarshal certificates: %w", err)
	}

	return &c, nil
}

// ============================================================
// AUDIT LOG
// ============================================================

// RecordAudit inserts an audit log entry.
func (r *Repository) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, connection_id, event, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, entry.ID, entry.ConnectionID, entry.Event, entry.Detail, entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}

// ListAuditLogsForConnection returns audit entries for a connection,
// newest first.
func (r *Repository) ListAuditLogsForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, connection_id, event, detail, occurred_at
		FROM audit_logs
		WHERE connection_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditLog
	for rows.Next() {
		var a models.AuditLog
		if err := rows.Scan(&a.ID, &a.ConnectionID, &a.Event, &a.Detail, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505), without pulling in pgconn
// just for one error code.
func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	var s sqlStater
	if errors.As(err, &s) {
		return s.SQLState() == "23505"
	}
	return false
}
