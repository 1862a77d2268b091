// Package endpoints implements the core plugin that assigns every trace to
// an endpoint, creating one when no existing template accepts the trace.
package endpoints

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/events"
	"github.com/rsclarke/tracescope/internal/logging"
	"github.com/rsclarke/tracescope/internal/matcher"
	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/paths"
	"github.com/rsclarke/tracescope/internal/plugins"
)

// Plugin is the endpoint resolution core plugin.
type Plugin struct {
	promoter matcher.Promoter
	store    plugins.Store
	logger   *zap.Logger

	// mu serializes resolution so concurrent traces for a new route
	// create one endpoint.
	mu sync.Mutex
}

// New creates a new endpoints Plugin. A nil promoter keeps templates as
// first observed.
func New(promoter matcher.Promoter) *Plugin {
	if promoter == nil {
		promoter = matcher.NoPromotion{}
	}
	return &Plugin{promoter: promoter}
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return "endpoints" }

// IsCore marks the plugin as core infrastructure.
func (p *Plugin) IsCore() bool { return true }

// Config exposes the active promotion policy.
func (p *Plugin) Config() map[string]any {
	_, promote := p.promoter.(matcher.DifferingSegmentPromoter)
	return map[string]any{"promote_segments": promote}
}

// Init initializes the plugin with the given context.
func (p *Plugin) Init(ctx plugins.InitContext) error {
	if ctx.Store == nil {
		return fmt.Errorf("endpoints plugin requires a store")
	}
	p.store = ctx.Store
	p.logger = ctx.Logger.Named("endpoints")
	return nil
}

// OnPreStore validates the trace path and resolves its endpoint. Traces
// with invalid paths are dropped.
func (p *Plugin) OnPreStore(ctx context.Context, e *events.TraceEvent) error {
	t := e.Trace
	t.Method = strings.ToUpper(t.Method)

	v := paths.ValidatePath(t.Path, nil)
	if !v.Valid {
		e.Drop = true
		e.DropReason = v.Err
		return nil
	}
	tokenCount := len(paths.Tokenize(v.Path))

	p.mu.Lock()
	defer p.mu.Unlock()

	candidates, err := p.store.FindEndpointCandidates(ctx, t.Host, t.Method, tokenCount)
	if err != nil {
		return fmt.Errorf("find endpoint candidates: %w", err)
	}

	endpoint := matcher.Find(candidates, v.Path)
	if endpoint == nil {
		endpoint = matcher.NewEndpoint(t.Host, t.Method, v.Path)
		endpoint.FirstDetected = t.CreatedAt
		endpoint.LastActive = t.CreatedAt
		if err := p.store.CreateEndpoint(ctx, endpoint, tokenCount); err != nil {
			return err
		}
		p.logger.Info("endpoint discovered",
			logging.EndpointID(endpoint.ID),
			logging.Host(endpoint.Host),
			logging.Method(endpoint.Method),
			logging.Path(endpoint.Path))
	} else {
		if err := p.store.TouchEndpoint(ctx, endpoint.ID, t.CreatedAt); err != nil {
			return fmt.Errorf("touch endpoint: %w", err)
		}
		p.promote(ctx, endpoint, v.Path)
	}

	t.EndpointID = endpoint.ID
	e.Endpoint = endpoint
	return nil
}

func (p *Plugin) promote(ctx context.Context, endpoint *models.Endpoint, tracePath string) {
	template, ok := p.promoter.Promote(endpoint, tracePath)
	if !ok {
		return
	}
	params := paths.CountParameters(template)
	if err := p.store.UpdateEndpointPath(ctx, endpoint.ID, template, params); err != nil {
		p.logger.Warn("failed to promote endpoint template",
			logging.EndpointID(endpoint.ID),
			logging.Path(template),
			zap.Error(err))
		return
	}
	p.logger.Info("endpoint template promoted",
		logging.EndpointID(endpoint.ID),
		zap.String("from", endpoint.Path),
		logging.Path(template))
	endpoint.Path = template
	endpoint.NumberParams = params
	if endpoint.SpecName != nil && !endpoint.UserSpecified() {
		endpoint.SpecName = nil
		endpoint.SpecAutoGenerated = nil
	}
}
