package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rsclarke/tracescope/internal/models"
)

const traceColumns = "id, endpoint_id, host, path, method, query_params, request_headers, request_body, response_status, response_headers, response_body, created_at"

// CreateTrace inserts a trace. An empty ID is assigned a new UUID and a zero
// CreatedAt is stamped with the current time.
func CreateTrace(d Querier, t *models.Trace) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	query, err := encodeKeyVals(t.QueryParams)
	if err != nil {
		return fmt.Errorf("encode query params: %w", err)
	}
	reqHeaders, err := encodeKeyVals(t.RequestHeaders)
	if err != nil {
		return fmt.Errorf("encode request headers: %w", err)
	}
	respHeaders, err := encodeKeyVals(t.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("encode response headers: %w", err)
	}

	var endpointID any
	if t.EndpointID != "" {
		endpointID = t.EndpointID
	}

	_, err = d.Exec(
		"INSERT INTO traces ("+traceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, endpointID, t.Host, t.Path, t.Method, query, reqHeaders, t.RequestBody,
		t.ResponseStatus, respHeaders, t.ResponseBody, toNanos(t.CreatedAt),
	)
	return err
}

// GetTrace retrieves a trace by ID.
func GetTrace(d Querier, id string) (*models.Trace, error) {
	row := d.QueryRow("SELECT "+traceColumns+" FROM traces WHERE id = ?", id)
	t, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TracesForEndpoint returns the traces of an endpoint created inside
// (after, until], oldest first. A nil after means no lower bound.
func TracesForEndpoint(d Querier, endpointID string, after *time.Time, until time.Time) ([]models.Trace, error) {
	q := "SELECT " + traceColumns + " FROM traces WHERE endpoint_id = ? AND created_at <= ?"
	args := []any{endpointID, toNanos(until)}
	if after != nil {
		q += " AND created_at > ?"
		args = append(args, toNanos(*after))
	}
	q += " ORDER BY created_at ASC, id ASC"

	rows, err := d.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []models.Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, *t)
	}
	return traces, rows.Err()
}

// CountTraces returns the number of traces recorded for an endpoint.
func CountTraces(d Querier, endpointID string) (int, error) {
	var count int
	err := d.QueryRow("SELECT COUNT(*) FROM traces WHERE endpoint_id = ?", endpointID).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrace(s scanner) (*models.Trace, error) {
	var t models.Trace
	var endpointID, reqBody, respBody sql.NullString
	var query, reqHeaders, respHeaders string
	var createdAt int64
	err := s.Scan(&t.ID, &endpointID, &t.Host, &t.Path, &t.Method, &query, &reqHeaders, &reqBody,
		&t.ResponseStatus, &respHeaders, &respBody, &createdAt)
	if err != nil {
		return nil, err
	}
	t.EndpointID = endpointID.String
	t.CreatedAt = fromNanos(createdAt)
	if reqBody.Valid {
		t.RequestBody = &reqBody.String
	}
	if respBody.Valid {
		t.ResponseBody = &respBody.String
	}
	if t.QueryParams, err = decodeKeyVals(query); err != nil {
		return nil, fmt.Errorf("decode query params: %w", err)
	}
	if t.RequestHeaders, err = decodeKeyVals(reqHeaders); err != nil {
		return nil, fmt.Errorf("decode request headers: %w", err)
	}
	if t.ResponseHeaders, err = decodeKeyVals(respHeaders); err != nil {
		return nil, fmt.Errorf("decode response headers: %w", err)
	}
	return &t, nil
}

func encodeKeyVals(kvs []models.KeyVal) (string, error) {
	if kvs == nil {
		kvs = []models.KeyVal{}
	}
	b, err := json.Marshal(kvs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeKeyVals(s string) ([]models.KeyVal, error) {
	if s == "" {
		return nil, nil
	}
	var kvs []models.KeyVal
	if err := json.Unmarshal([]byte(s), &kvs); err != nil {
		return nil, err
	}
	return kvs, nil
}
