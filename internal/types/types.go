// Package types defines the API request and response types.
package types

import "github.com/goccy/go-json"

// KeyVal is one ordered query parameter or header.
type KeyVal struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TraceRequest is one captured request/response exchange submitted for
// ingestion.
type TraceRequest struct {
	// Tenant overrides the server's default tenant.
	Tenant          string   `json:"tenant,omitempty"`
	Host            string   `json:"host"`
	Path            string   `json:"path"`
	Method          string   `json:"method"`
	QueryParams     []KeyVal `json:"query_params,omitempty"`
	RequestHeaders  []KeyVal `json:"request_headers,omitempty"`
	RequestBody     *string  `json:"request_body,omitempty"`
	ResponseStatus  int      `json:"response_status"`
	ResponseHeaders []KeyVal `json:"response_headers,omitempty"`
	ResponseBody    *string  `json:"response_body,omitempty"`
	// CreatedAt is RFC 3339; the server uses its clock when empty.
	CreatedAt string `json:"created_at,omitempty"`
}

// IngestResponse is the response body for a single trace.
type IngestResponse struct {
	TraceID    string   `json:"trace_id,omitempty"`
	EndpointID string   `json:"endpoint_id,omitempty"`
	Dropped    bool     `json:"dropped"`
	Reason     string   `json:"reason,omitempty"`
	DataFields int      `json:"data_fields"`
	Classes    []string `json:"data_classes,omitempty"`
}

// BatchRequest is the request body for batch ingestion.
type BatchRequest struct {
	Traces []TraceRequest `json:"traces"`
}

// BatchError describes a trace of a batch that was not stored.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResponse is the response body for batch ingestion.
type BatchResponse struct {
	Accepted int          `json:"accepted"`
	Dropped  int          `json:"dropped"`
	Invalid  int          `json:"invalid"`
	Failed   int          `json:"failed"`
	Errors   []BatchError `json:"errors,omitempty"`
}

// EndpointInfo represents an endpoint with its risk.
type EndpointInfo struct {
	ID            string   `json:"id"`
	Host          string   `json:"host"`
	Method        string   `json:"method"`
	Path          string   `json:"path"`
	NumberParams  int      `json:"number_params"`
	FirstDetected string   `json:"first_detected"`
	LastActive    string   `json:"last_active"`
	SpecName      *string  `json:"spec_name"`
	Risk          string   `json:"risk"`
	DataClasses   []string `json:"data_classes"`
}

// ListEndpointsResponse is the response body for listing endpoints.
type ListEndpointsResponse struct {
	Endpoints []EndpointInfo `json:"endpoints"`
}

// DataFieldInfo represents one data field of an endpoint.
type DataFieldInfo struct {
	Section     string   `json:"section"`
	ContentType string   `json:"content_type,omitempty"`
	StatusCode  int      `json:"status_code,omitempty"`
	DataPath    string   `json:"data_path"`
	DataType    string   `json:"data_type"`
	DataClasses []string `json:"data_classes"`
	TraceID     *string  `json:"trace_id,omitempty"`
}

// EndpointDetailResponse is the response body for a single endpoint.
type EndpointDetailResponse struct {
	EndpointInfo
	TraceCount int             `json:"trace_count"`
	DataFields []DataFieldInfo `json:"data_fields"`
}

// SpecResponse is the response body for a stored document.
type SpecResponse struct {
	Name          string          `json:"name"`
	AutoGenerated bool            `json:"auto_generated"`
	Hosts         []string        `json:"hosts"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
	Watermark     *string         `json:"watermark"`
	Document      json.RawMessage `json:"document"`
}

// GenerateResponse is the response body for a generation cycle.
type GenerateResponse struct {
	Hosts     int `json:"hosts"`
	Failed    int `json:"failed"`
	Endpoints int `json:"endpoints"`
}

// TraceInfo is a stored trace.
type TraceInfo struct {
	ID              string   `json:"id"`
	EndpointID      string   `json:"endpoint_id"`
	Host            string   `json:"host"`
	Path            string   `json:"path"`
	Method          string   `json:"method"`
	QueryParams     []KeyVal `json:"query_params"`
	RequestHeaders  []KeyVal `json:"request_headers"`
	RequestBody     *string  `json:"request_body"`
	ResponseStatus  int      `json:"response_status"`
	ResponseHeaders []KeyVal `json:"response_headers"`
	ResponseBody    *string  `json:"response_body"`
	CreatedAt       string   `json:"created_at"`
}

// SpecUpload is the request body for storing a user-provided document.
type SpecUpload struct {
	Hosts    []string        `json:"hosts"`
	Document json.RawMessage `json:"document"`
	// Endpoints lists the ids of endpoints the document governs.
	Endpoints []string `json:"endpoints,omitempty"`
}

// DataClassInfo is a tenant's custom data class.
type DataClassInfo struct {
	Name       string `json:"name"`
	Regex      string `json:"regex"`
	StringOnly bool   `json:"string_only"`
}

// ListDataClassesResponse is the response body for listing data classes.
type ListDataClassesResponse struct {
	Tenant      string          `json:"tenant"`
	DataClasses []DataClassInfo `json:"data_classes"`
}

// DeleteResponse is the response body for deletions.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
