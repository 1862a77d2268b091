// Package classify implements the core plugin that records the data fields
// of every stored trace and tags them with sensitive-data classes.
package classify

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rsclarke/tracescope/internal/dataclass"
	"github.com/rsclarke/tracescope/internal/events"
	"github.com/rsclarke/tracescope/internal/logging"
	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/plugins"
)

// Plugin is the data classification core plugin.
type Plugin struct {
	workers int
	scanner *dataclass.Scanner
	store   plugins.Store
	logger  *zap.Logger
}

// New creates a new classify Plugin that classifies up to workers values
// at once. A non-positive value uses GOMAXPROCS.
func New(workers int) *Plugin {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Plugin{workers: workers}
}

// ID returns the plugin identifier.
func (p *Plugin) ID() string { return "classify" }

// IsCore marks the plugin as core infrastructure.
func (p *Plugin) IsCore() bool { return true }

// Config exposes the worker limit.
func (p *Plugin) Config() map[string]any {
	return map[string]any{"workers": p.workers}
}

// Init initializes the plugin with the given context.
func (p *Plugin) Init(ctx plugins.InitContext) error {
	if ctx.Store == nil {
		return fmt.Errorf("classify plugin requires a store")
	}
	p.store = ctx.Store
	p.logger = ctx.Logger.Named("classify")
	p.scanner = dataclass.NewScanner(ctx.Store, ctx.Logger)
	return nil
}

// OnPostStore classifies every value of the stored trace and upserts one
// data field per location.
func (p *Plugin) OnPostStore(ctx context.Context, e *events.TraceEvent) error {
	if e.Endpoint == nil || !e.Stored() {
		return nil
	}

	obs := extract(e.Endpoint, e.Trace)
	if len(obs) == 0 {
		return nil
	}

	registry := p.scanner.Registry(ctx, e.Tenant)
	classes := make([][]string, len(obs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range obs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			classes[i] = p.scanner.ClassifyWith(registry, obs[i].value)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("classify values: %w", err)
	}

	fields := make(map[location]*models.DataField)
	var order []location
	for i, o := range obs {
		f, ok := fields[o.location]
		if !ok {
			f = &models.DataField{
				EndpointID:  e.Endpoint.ID,
				Section:     o.section,
				ContentType: o.contentType,
				StatusCode:  o.statusCode,
				DataPath:    o.dataPath,
				DataType:    dataType(o.value),
			}
			fields[o.location] = f
			order = append(order, o.location)
		} else {
			f.DataType = f.DataType.Widen(dataType(o.value))
		}
		f.DataClasses = append(f.DataClasses, classes[i]...)
	}

	// SQLite allows one writer; upserts run in order.
	for _, loc := range order {
		f := fields[loc]
		if len(f.DataClasses) > 0 {
			traceID := e.Trace.ID
			f.TraceID = &traceID
		}
		stored, err := p.store.UpsertDataField(ctx, f)
		if err != nil {
			return fmt.Errorf("upsert data field %s %s: %w", f.Section, f.DataPath, err)
		}
		e.DataFields = append(e.DataFields, *stored)

		for _, class := range f.DataClasses {
			p.logger.Debug("sensitive data detected",
				logging.EndpointID(f.EndpointID),
				logging.TraceID(e.Trace.ID),
				logging.DataClass(class),
				zap.String("section", string(f.Section)),
				zap.String("data_path", f.DataPath))
		}
	}
	return nil
}
