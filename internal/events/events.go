// Package events defines the core types used throughout the plugin framework.
package events

import "github.com/rsclarke/tracescope/internal/models"

// TraceEvent carries one ingested trace through the pipeline. Hooks fill in
// the resolved endpoint and the data fields observed in the trace.
type TraceEvent struct {
	Tenant string
	Trace  *models.Trace
	// Endpoint is set once the trace has been matched or has seeded a new
	// endpoint.
	Endpoint   *models.Endpoint
	DataFields []models.DataField
	// Drop skips persistence; DropReason says why.
	Drop       bool
	DropReason string
}

// Stored reports whether the trace was persisted.
func (e *TraceEvent) Stored() bool {
	return !e.Drop && e.Trace != nil && e.Trace.ID != ""
}
