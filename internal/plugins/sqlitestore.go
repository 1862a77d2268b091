package plugins

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsclarke/tracescope/internal/db"
	"github.com/rsclarke/tracescope/internal/models"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given database connection.
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// CreateTrace persists a trace.
func (s *SQLiteStore) CreateTrace(_ context.Context, t *models.Trace) error {
	if err := db.CreateTrace(s.db, t); err != nil {
		return fmt.Errorf("create trace: %w", err)
	}
	return nil
}

// FindEndpointCandidates lists endpoints a trace path could belong to.
func (s *SQLiteStore) FindEndpointCandidates(_ context.Context, host, method string, tokenCount int) ([]models.Endpoint, error) {
	return db.FindEndpointCandidates(s.db, host, method, tokenCount)
}

// CreateEndpoint persists a new endpoint.
func (s *SQLiteStore) CreateEndpoint(_ context.Context, e *models.Endpoint, tokenCount int) error {
	if err := db.CreateEndpoint(s.db, e, tokenCount); err != nil {
		return fmt.Errorf("create endpoint: %w", err)
	}
	return nil
}

// TouchEndpoint records activity on an endpoint.
func (s *SQLiteStore) TouchEndpoint(_ context.Context, id string, at time.Time) error {
	return db.TouchEndpoint(s.db, id, at)
}

// UpdateEndpointPath rewrites an endpoint's template.
func (s *SQLiteStore) UpdateEndpointPath(_ context.Context, id, path string, numberParams int) error {
	return db.UpdateEndpointPath(s.db, id, path, numberParams)
}

// UpsertDataField records an observation at a data field location.
func (s *SQLiteStore) UpsertDataField(_ context.Context, f *models.DataField) (*models.DataField, error) {
	return db.UpsertDataField(s.db, f)
}

// DataClasses loads a tenant's custom data classes.
func (s *SQLiteStore) DataClasses(_ context.Context, tenant string) ([]models.DataClass, error) {
	return db.ListDataClasses(s.db, tenant)
}
