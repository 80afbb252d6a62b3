// Package testutil provides testing utilities for the samltoken SSO service.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/artpromedia/samltoken/internal/models"
	"github.com/artpromedia/samltoken/internal/repository"
	"github.com/google/uuid"
)

// MockRepository is an in-memory stand-in for repository.Repository.
type MockRepository struct {
	connections   map[uuid.UUID]*models.Connection
	byEntityID    map[string]*models.Connection
	auditLogs     []*models.AuditLog
	mu            sync.RWMutex

	CreateConnectionError error
	GetConnectionError    error
}

// NewMockRepository creates a new mock repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		connections: make(map[uuid.UUID]*models.Connection),
		byEntityID:  make(map[string]*models.Connection),
		auditLogs:   []*models.AuditLog{},
	}
}

// AddConnection seeds a connection directly into the mock repository.
func (m *MockRepository) AddConnection(conn *models.Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.ID] = conn
	m.byEntityID[conn.IDPEntityID] = conn
}

// CreateConnection stores a new connection.
func (m *MockRepository) CreateConnection(ctx context.Context, conn *models.Connection) error {
	if m.CreateConnectionError != nil {
		return m.CreateConnectionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEntityID[conn.IDPEntityID]; exists {
		return repository.ErrDuplicateEntityID
	}
	m.connections[conn.ID] = conn
	m.byEntityID[conn.IDPEntityID] = conn
	return nil
}

// GetConnectionByID returns a connection by ID.
func (m *MockRepository) GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	if m.GetConnectionError != nil {
		return nil, m.GetConnectionError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conn, ok := m.connections[id]; ok {
		return conn, nil
	}
	return nil, repository.ErrNotFound
}

// GetConnectionByEntityID returns a connection by the IdP's issuer entity ID.
func (m *MockRepository) GetConnectionByEntityID(ctx context.Context, entityID string) (*models.Connection, error) {
	if m.GetConnectionError != nil {
		return nil, m.GetConnectionError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conn, ok := m.byEntityID[entityID]; ok {
		return conn, nil
	}
	return nil, repository.ErrNotFound
}

// ListConnections returns all configured connections.
func (m *MockRepository) ListConnections(ctx context.Context) ([]*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		out = append(out, conn)
	}
	return out, nil
}

// UpdateConnection overwrites a stored connection.
func (m *MockRepository) UpdateConnection(ctx context.Context, conn *models.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[conn.ID]; !ok {
		return repository.ErrNotFound
	}
	m.connections[conn.ID] = conn
	m.byEntityID[conn.IDPEntityID] = conn
	return nil
}

// DeleteConnection removes a connection.
func (m *MockRepository) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(m.connections, id)
	delete(m.byEntityID, conn.IDPEntityID)
	return nil
}

// RecordAudit appends an audit log entry.
func (m *MockRepository) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

// ListAuditLogsForConnection returns audit entries for a connection.
func (m *MockRepository) ListAuditLogsForConnection(ctx context.Context, connectionID uuid.UUID) ([]*models.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AuditLog
	for _, entry := range m.auditLogs {
		if entry.ConnectionID != nil && *entry.ConnectionID == connectionID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// GetAuditLogs returns every recorded audit log, for test assertions.
func (m *MockRepository) GetAuditLogs() []*models.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auditLogs
}

// TestFixtures provides standard test data for a connection-based test.
type TestFixtures struct {
	Connection *models.Connection
}

// NewTestFixtures builds a fixture connection trusting a single IdP
// certificate, suitable for feeding to an ACS handler test.
func NewTestFixtures(idpEntityID string, idpCertPEM string) *TestFixtures {
	now := time.Now().UTC()
	return &TestFixtures{
		Connection: &models.Connection{
			ID:                      uuid.New(),
			Name:                    "Test IdP",
			IDPEntityID:             idpEntityID,
			IDPCertificatesPEM:      []string{idpCertPEM},
			ACSURL:                  "https://sp.example.com/sso/saml/acs",
			Audience:                "urn:samltoken:sp",
			IsEnabled:               true,
			RequireSignedAssertions: true,
			ClockSkewSeconds:        300,
			CreatedAt:               now,
			UpdatedAt:               now,
		},
	}
}

// SetupMockRepo populates a mock repository with the fixture connection.
func (f *TestFixtures) SetupMockRepo(repo *MockRepository) {
	repo.AddConnection(f.Connection)
}
