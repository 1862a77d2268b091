package db

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rsclarke/tracescope/internal/models"
)

const dataFieldColumns = "id, endpoint_id, section, content_type, status_code, data_path, data_type, data_classes, trace_id, created_at, updated_at"

// UpsertDataField records an observation at a field location. Classes are
// unioned with the stored set and the data type is widened; neither ever
// shrinks. The stored field is returned.
func UpsertDataField(d *sql.DB, f *models.DataField) (*models.DataField, error) {
	tx, err := d.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := getDataFieldByLocation(tx, f)
	if err != nil {
		return nil, fmt.Errorf("load data field: %w", err)
	}

	now := time.Now().UTC()
	merged := *f
	merged.DataClasses = unionClasses(nil, f.DataClasses)
	if merged.DataType == "" {
		merged.DataType = models.DataTypeUnknown
	}
	merged.CreatedAt = now
	merged.UpdatedAt = now
	if len(f.DataClasses) == 0 {
		merged.TraceID = nil
	}

	if existing != nil {
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
		merged.DataType = existing.DataType.Widen(f.DataType)
		merged.DataClasses = unionClasses(existing.DataClasses, f.DataClasses)
		// Keep the record that first produced a detection.
		if len(existing.DataClasses) > 0 || len(f.DataClasses) == 0 {
			merged.TraceID = existing.TraceID
		}
	} else if merged.ID == "" {
		merged.ID = uuid.NewString()
	}

	classes, err := json.Marshal(merged.DataClasses)
	if err != nil {
		return nil, fmt.Errorf("encode data classes: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO data_fields (`+dataFieldColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			data_type = excluded.data_type,
			data_classes = excluded.data_classes,
			trace_id = excluded.trace_id,
			updated_at = excluded.updated_at
	`, merged.ID, merged.EndpointID, string(merged.Section), merged.ContentType, merged.StatusCode, merged.DataPath,
		string(merged.DataType), string(classes), merged.TraceID, toNanos(merged.CreatedAt), toNanos(merged.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert data field: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &merged, nil
}

// ListDataFields returns all data fields of an endpoint.
func ListDataFields(d Querier, endpointID string) ([]models.DataField, error) {
	rows, err := d.Query(
		"SELECT "+dataFieldColumns+" FROM data_fields WHERE endpoint_id = ? ORDER BY section, status_code, content_type, data_path",
		endpointID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []models.DataField
	for rows.Next() {
		f, err := scanDataField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	return fields, rows.Err()
}

func getDataFieldByLocation(d Querier, f *models.DataField) (*models.DataField, error) {
	row := d.QueryRow(
		"SELECT "+dataFieldColumns+" FROM data_fields WHERE endpoint_id = ? AND section = ? AND content_type = ? AND status_code = ? AND data_path = ?",
		f.EndpointID, string(f.Section), f.ContentType, f.StatusCode, f.DataPath,
	)
	existing, err := scanDataField(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func scanDataField(s scanner) (*models.DataField, error) {
	var f models.DataField
	var section, dataType, classes string
	var traceID sql.NullString
	var createdAt, updatedAt int64
	err := s.Scan(&f.ID, &f.EndpointID, &section, &f.ContentType, &f.StatusCode, &f.DataPath, &dataType, &classes, &traceID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	f.Section = models.DataSection(section)
	f.DataType = models.DataType(dataType)
	f.CreatedAt = fromNanos(createdAt)
	f.UpdatedAt = fromNanos(updatedAt)
	if traceID.Valid {
		f.TraceID = &traceID.String
	}
	if err := json.Unmarshal([]byte(classes), &f.DataClasses); err != nil {
		return nil, fmt.Errorf("decode data classes: %w", err)
	}
	return &f, nil
}

func unionClasses(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, c := range a {
		set[c] = struct{}{}
	}
	for _, c := range b {
		set[c] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
