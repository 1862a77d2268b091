package specgen

import (
	"context"
	"database/sql"
	"time"

	"github.com/rsclarke/tracescope/internal/db"
	"github.com/rsclarke/tracescope/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given database connection.
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// EndpointsWithoutSpec lists endpoints not linked to any document.
func (s *SQLiteStore) EndpointsWithoutSpec(_ context.Context) ([]models.Endpoint, error) {
	return db.ListEndpointsWithoutSpec(s.db)
}

// StaleGeneratedEndpoints lists generated endpoints with unfolded traces.
func (s *SQLiteStore) StaleGeneratedEndpoints(_ context.Context, until time.Time) ([]models.Endpoint, error) {
	return db.ListStaleGeneratedEndpoints(s.db, until)
}

// LinkedEndpoints lists the endpoints linked to the named document.
func (s *SQLiteStore) LinkedEndpoints(_ context.Context, name string) ([]models.Endpoint, error) {
	return db.ListEndpointsForSpec(s.db, name)
}

// GetSpec loads a document by name.
func (s *SQLiteStore) GetSpec(_ context.Context, name string) (*models.Spec, error) {
	return db.GetSpec(s.db, name)
}

// Traces loads an endpoint's traces inside (after, until].
func (s *SQLiteStore) Traces(_ context.Context, endpointID string, after *time.Time, until time.Time) ([]models.Trace, error) {
	return db.TracesForEndpoint(s.db, endpointID, after, until)
}

// CommitSpec saves the document and endpoint links in one transaction.
func (s *SQLiteStore) CommitSpec(_ context.Context, spec *models.Spec, endpointIDs []string) error {
	return db.CommitSpec(s.db, spec, endpointIDs)
}
