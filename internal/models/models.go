// Package models defines the database entity types.
package models

import "time"

// KeyVal is one ordered name/value pair from a query string or header block.
type KeyVal struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Trace is one captured request/response exchange. Traces are immutable
// once recorded.
type Trace struct {
	ID              string
	EndpointID      string
	Host            string
	Path            string
	Method          string
	QueryParams     []KeyVal
	RequestHeaders  []KeyVal
	RequestBody     *string
	ResponseStatus  int
	ResponseHeaders []KeyVal
	ResponseBody    *string
	CreatedAt       time.Time
}

// Endpoint is a canonical route: host, path template and method.
type Endpoint struct {
	ID            string
	Host          string
	Path          string
	Method        string
	NumberParams  int
	FirstDetected time.Time
	LastActive    time.Time
	SpecName      *string
	// SpecAutoGenerated is populated on reads that join the linked spec.
	SpecAutoGenerated *bool
}

// UserSpecified reports whether the endpoint is governed by a document that
// a user supplied.
func (e *Endpoint) UserSpecified() bool {
	return e.SpecName != nil && e.SpecAutoGenerated != nil && !*e.SpecAutoGenerated
}

// Spec is a stored structural (OpenAPI) document.
type Spec struct {
	Name            string
	Spec            string
	IsAutoGenerated bool
	Hosts           []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// SpecUpdatedAt is the watermark: the newest trace instant folded in.
	SpecUpdatedAt *time.Time
}

// SpecState is the lifecycle state of a host document.
type SpecState string

// Spec states.
const (
	SpecAbsent        SpecState = "ABSENT"
	SpecAutoGenerated SpecState = "AUTO_GENERATED"
	SpecUserProvided  SpecState = "USER_PROVIDED"
)

// State returns the lifecycle state of s; a nil spec is absent.
func (s *Spec) State() SpecState {
	switch {
	case s == nil:
		return SpecAbsent
	case s.IsAutoGenerated:
		return SpecAutoGenerated
	default:
		return SpecUserProvided
	}
}

// DataSection locates a data field inside a trace.
type DataSection string

// Data sections.
const (
	SectionPathParams      DataSection = "path_params"
	SectionQueryParams     DataSection = "query_params"
	SectionRequestHeaders  DataSection = "request_headers"
	SectionRequestBody     DataSection = "request_body"
	SectionResponseHeaders DataSection = "response_headers"
	SectionResponseBody    DataSection = "response_body"
)

// DataType is the inferred primitive type of a data field.
type DataType string

// Data types.
const (
	DataTypeUnknown DataType = "unknown"
	DataTypeString  DataType = "string"
	DataTypeInteger DataType = "integer"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
	DataTypeArray   DataType = "array"
)

// Widen joins two observed data types.
func (d DataType) Widen(other DataType) DataType {
	switch {
	case d == "" || d == DataTypeUnknown:
		return other
	case other == "" || other == DataTypeUnknown || d == other:
		return d
	case (d == DataTypeInteger && other == DataTypeNumber) || (d == DataTypeNumber && other == DataTypeInteger):
		return DataTypeNumber
	default:
		return d
	}
}

// DataField is one value location under an endpoint.
type DataField struct {
	ID          string
	EndpointID  string
	Section     DataSection
	ContentType string
	StatusCode  int
	DataPath    string
	DataType    DataType
	DataClasses []string
	TraceID     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DataClass is a tenant-defined sensitive-data detector.
type DataClass struct {
	Tenant     string
	Name       string
	Regex      string
	StringOnly bool
}

// RiskScore is the ordinal sensitive-data exposure of an endpoint.
type RiskScore string

// Risk scores.
const (
	RiskNone   RiskScore = "NONE"
	RiskLow    RiskScore = "LOW"
	RiskMedium RiskScore = "MEDIUM"
	RiskHigh   RiskScore = "HIGH"
)
