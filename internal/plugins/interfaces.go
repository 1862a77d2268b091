// Package plugins defines the plugin interfaces and capability hooks for the plugin framework.
package plugins

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/events"
	"github.com/rsclarke/tracescope/internal/models"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	ID() string
	Init(ctx InitContext) error
}

// InitContext provides access to shared resources during plugin initialization.
type InitContext struct {
	Logger *zap.Logger
	Store  Store
}

// Store provides storage operations for plugins.
type Store interface {
	CreateTrace(ctx context.Context, t *models.Trace) error
	FindEndpointCandidates(ctx context.Context, host, method string, tokenCount int) ([]models.Endpoint, error)
	CreateEndpoint(ctx context.Context, e *models.Endpoint, tokenCount int) error
	TouchEndpoint(ctx context.Context, id string, at time.Time) error
	UpdateEndpointPath(ctx context.Context, id, path string, numberParams int) error
	UpsertDataField(ctx context.Context, f *models.DataField) (*models.DataField, error)
	DataClasses(ctx context.Context, tenant string) ([]models.DataClass, error)
}

// PreStoreHook is called before the trace is persisted.
type PreStoreHook interface {
	OnPreStore(ctx context.Context, e *events.TraceEvent) error
}

// PostStoreHook is called after the trace is persisted.
type PostStoreHook interface {
	OnPostStore(ctx context.Context, e *events.TraceEvent) error
}

// PluginType indicates whether a plugin is core infrastructure or a feature plugin.
type PluginType string

// Plugin type constants.
const (
	PluginTypeCore    PluginType = "core"
	PluginTypeFeature PluginType = "feature"
)

// CorePlugin is an optional interface that core plugins can implement.
type CorePlugin interface {
	IsCore() bool
}

// ConfigurablePlugin is an optional interface for plugins that expose global configuration.
type ConfigurablePlugin interface {
	Config() map[string]any
}

// PluginInfo contains metadata about a registered plugin.
type PluginInfo struct {
	ID      string         `json:"id"`
	Type    PluginType     `json:"type"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}

// PluginRegistry provides read access to registered plugins.
type PluginRegistry interface {
	ListPlugins() []PluginInfo
}
