package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rsclarke/tracescope/internal/models"
)

const endpointColumns = "e.id, e.host, e.path, e.method, e.number_params, e.first_detected, e.last_active, e.spec_name, s.is_auto_generated"

const endpointFrom = " FROM endpoints e LEFT JOIN specs s ON s.name = e.spec_name"

// CreateEndpoint inserts a new endpoint. tokenCount is the number of path
// tokens in the template and is used to narrow candidate lookups.
func CreateEndpoint(d Querier, e *models.Endpoint, tokenCount int) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.FirstDetected.IsZero() {
		e.FirstDetected = now
	}
	if e.LastActive.IsZero() {
		e.LastActive = e.FirstDetected
	}
	_, err := d.Exec(
		"INSERT INTO endpoints (id, host, path, method, number_params, token_count, first_detected, last_active, spec_name) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Host, e.Path, e.Method, e.NumberParams, tokenCount, toNanos(e.FirstDetected), toNanos(e.LastActive), e.SpecName,
	)
	return err
}

// GetEndpoint retrieves an endpoint by ID.
func GetEndpoint(d Querier, id string) (*models.Endpoint, error) {
	row := d.QueryRow("SELECT "+endpointColumns+endpointFrom+" WHERE e.id = ?", id)
	e, err := scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// FindEndpointCandidates returns endpoints sharing host, method and token
// count, the most specific (fewest parameters) first.
func FindEndpointCandidates(d Querier, host, method string, tokenCount int) ([]models.Endpoint, error) {
	return queryEndpoints(d,
		"SELECT "+endpointColumns+endpointFrom+" WHERE e.host = ? AND e.method = ? AND e.token_count = ? ORDER BY e.number_params ASC, e.first_detected ASC",
		host, method, tokenCount,
	)
}

// ListEndpoints returns all endpoints ordered by host, path and method.
func ListEndpoints(d Querier) ([]models.Endpoint, error) {
	return queryEndpoints(d, "SELECT "+endpointColumns+endpointFrom+" ORDER BY e.host, e.path, e.method")
}

// ListEndpointsWithoutSpec returns endpoints not linked to any document.
func ListEndpointsWithoutSpec(d Querier) ([]models.Endpoint, error) {
	return queryEndpoints(d, "SELECT "+endpointColumns+endpointFrom+" WHERE e.spec_name IS NULL ORDER BY e.host, e.first_detected")
}

// ListEndpointsForSpec returns the endpoints linked to the named document.
func ListEndpointsForSpec(d Querier, name string) ([]models.Endpoint, error) {
	return queryEndpoints(d, "SELECT "+endpointColumns+endpointFrom+" WHERE e.spec_name = ? ORDER BY e.path, e.method", name)
}

// ListStaleGeneratedEndpoints returns endpoints linked to an auto-generated
// document that have traces inside (watermark, until].
func ListStaleGeneratedEndpoints(d Querier, until time.Time) ([]models.Endpoint, error) {
	return queryEndpoints(d, "SELECT "+endpointColumns+endpointFrom+`
		WHERE s.is_auto_generated = 1
		AND EXISTS (
			SELECT 1 FROM traces t
			WHERE t.endpoint_id = e.id
			AND t.created_at <= ?
			AND (s.spec_updated_at IS NULL OR t.created_at > s.spec_updated_at)
		)
		ORDER BY e.host, e.first_detected`, toNanos(until))
}

// TouchEndpoint records activity on an endpoint.
func TouchEndpoint(d Querier, id string, at time.Time) error {
	_, err := d.Exec("UPDATE endpoints SET last_active = MAX(last_active, ?) WHERE id = ?", toNanos(at), id)
	return err
}

// UpdateEndpointPath rewrites an endpoint's template and parameter count.
// A link to an auto-generated document is cleared so the next cycle folds
// the endpoint's whole history under the new template.
func UpdateEndpointPath(d Querier, id, path string, numberParams int) error {
	_, err := d.Exec(`UPDATE endpoints SET path = ?, number_params = ?,
		spec_name = CASE
			WHEN spec_name IN (SELECT name FROM specs WHERE is_auto_generated = 1) THEN NULL
			ELSE spec_name
		END
		WHERE id = ?`, path, numberParams, id)
	return err
}

// LinkEndpointSpec links an endpoint to a document.
func LinkEndpointSpec(d Querier, id, specName string) error {
	_, err := d.Exec("UPDATE endpoints SET spec_name = ? WHERE id = ?", specName, id)
	return err
}

// DeleteEndpoint removes an endpoint together with its traces and data fields.
func DeleteEndpoint(d Querier, id string) error {
	_, err := d.Exec("DELETE FROM endpoints WHERE id = ?", id)
	return err
}

func queryEndpoints(d Querier, query string, args ...any) ([]models.Endpoint, error) {
	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *e)
	}
	return endpoints, rows.Err()
}

func scanEndpoint(s scanner) (*models.Endpoint, error) {
	var e models.Endpoint
	var firstDetected, lastActive int64
	var specName sql.NullString
	var autoGenerated sql.NullInt64
	err := s.Scan(&e.ID, &e.Host, &e.Path, &e.Method, &e.NumberParams, &firstDetected, &lastActive, &specName, &autoGenerated)
	if err != nil {
		return nil, err
	}
	e.FirstDetected = fromNanos(firstDetected)
	e.LastActive = fromNanos(lastActive)
	if specName.Valid {
		e.SpecName = &specName.String
	}
	if autoGenerated.Valid {
		v := autoGenerated.Int64 != 0
		e.SpecAutoGenerated = &v
	}
	return &e, nil
}
