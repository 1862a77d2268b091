package db

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rsclarke/tracescope/internal/models"
)

// GetSpec retrieves a document by name.
func GetSpec(d Querier, name string) (*models.Spec, error) {
	row := d.QueryRow(
		"SELECT name, spec, is_auto_generated, hosts, created_at, updated_at, spec_updated_at FROM specs WHERE name = ?",
		name,
	)
	var s models.Spec
	var autoGenerated int
	var hosts string
	var createdAt, updatedAt int64
	var specUpdatedAt sql.NullInt64
	err := row.Scan(&s.Name, &s.Spec, &autoGenerated, &hosts, &createdAt, &updatedAt, &specUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.IsAutoGenerated = autoGenerated != 0
	s.CreatedAt = fromNanos(createdAt)
	s.UpdatedAt = fromNanos(updatedAt)
	s.SpecUpdatedAt = fromNullableNanos(specUpdatedAt)
	if err := json.Unmarshal([]byte(hosts), &s.Hosts); err != nil {
		return nil, fmt.Errorf("decode hosts: %w", err)
	}
	return &s, nil
}

// SaveSpec inserts or replaces a document.
func SaveSpec(d Querier, s *models.Spec) error {
	hosts := s.Hosts
	if hosts == nil {
		hosts = []string{}
	}
	encodedHosts, err := json.Marshal(hosts)
	if err != nil {
		return fmt.Errorf("encode hosts: %w", err)
	}
	autoGenerated := 0
	if s.IsAutoGenerated {
		autoGenerated = 1
	}
	_, err = d.Exec(`
		INSERT INTO specs (name, spec, is_auto_generated, hosts, created_at, updated_at, spec_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			spec = excluded.spec,
			is_auto_generated = excluded.is_auto_generated,
			hosts = excluded.hosts,
			updated_at = excluded.updated_at,
			spec_updated_at = excluded.spec_updated_at
	`, s.Name, s.Spec, autoGenerated, string(encodedHosts), toNanos(s.CreatedAt), toNanos(s.UpdatedAt), nullableNanos(s.SpecUpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert spec: %w", err)
	}
	return nil
}

// CommitSpec saves a document and links the given endpoints to it inside
// one transaction. Either every change lands or none does.
func CommitSpec(d *sql.DB, s *models.Spec, endpointIDs []string) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := SaveSpec(tx, s); err != nil {
		return err
	}
	for _, id := range endpointIDs {
		if err := LinkEndpointSpec(tx, id, s.Name); err != nil {
			return fmt.Errorf("link endpoint %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteSpec removes a document. Linked endpoints become unlinked.
func DeleteSpec(d Querier, name string) (bool, error) {
	res, err := d.Exec("DELETE FROM specs WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("delete spec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
