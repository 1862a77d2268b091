package plugins

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/events"
	"github.com/rsclarke/tracescope/internal/logging"
)

// Pipeline orchestrates plugin hook execution in the correct order.
type Pipeline struct {
	store     Store
	plugins   []Plugin
	preStore  []PreStoreHook
	postStore []PostStoreHook
	logger    *zap.Logger
}

// NewPipeline creates a new Pipeline with the given logger.
func NewPipeline(logger *zap.Logger) *Pipeline {
	return &Pipeline{
		logger:    logger,
		plugins:   make([]Plugin, 0),
		preStore:  make([]PreStoreHook, 0),
		postStore: make([]PostStoreHook, 0),
	}
}

// SetStore sets the storage backend for the pipeline.
func (p *Pipeline) SetStore(store Store) {
	p.store = store
}

// Register detects which capability interfaces a plugin implements
// and adds it to the appropriate hook lists.
func (p *Pipeline) Register(plugin Plugin) {
	p.plugins = append(p.plugins, plugin)
	if hook, ok := plugin.(PreStoreHook); ok {
		p.preStore = append(p.preStore, hook)
	}
	if hook, ok := plugin.(PostStoreHook); ok {
		p.postStore = append(p.postStore, hook)
	}
}

// Init initializes every registered plugin against the pipeline's store.
func (p *Pipeline) Init() error {
	for _, plugin := range p.plugins {
		ctx := InitContext{Logger: p.logger, Store: p.store}
		if err := plugin.Init(ctx); err != nil {
			return fmt.Errorf("init plugin %s: %w", plugin.ID(), err)
		}
	}
	return nil
}

// ListPlugins returns metadata about all registered plugins.
func (p *Pipeline) ListPlugins() []PluginInfo {
	infos := make([]PluginInfo, 0, len(p.plugins))
	for _, plugin := range p.plugins {
		info := PluginInfo{
			ID:      plugin.ID(),
			Type:    PluginTypeFeature,
			Enabled: true,
		}
		if cp, ok := plugin.(CorePlugin); ok && cp.IsCore() {
			info.Type = PluginTypeCore
		}
		if cp, ok := plugin.(ConfigurablePlugin); ok {
			info.Config = cp.Config()
		}
		infos = append(infos, info)
	}
	return infos
}

// Process runs hooks in order: PreStore → Storage → PostStore. Hook errors
// are logged and never abort the pipeline; only a storage failure is
// returned.
func (p *Pipeline) Process(ctx context.Context, e *events.TraceEvent) error {
	if e.Trace.CreatedAt.IsZero() {
		e.Trace.CreatedAt = time.Now().UTC()
	}

	for _, hook := range p.preStore {
		if err := hook.OnPreStore(ctx, e); err != nil {
			p.logger.Warn("prestore hook error",
				zap.String("plugin", pluginID(hook)),
				logging.Host(e.Trace.Host),
				logging.Path(e.Trace.Path),
				zap.Error(err))
		}
	}

	if e.Drop {
		p.logger.Debug("trace dropped",
			logging.Host(e.Trace.Host),
			logging.Path(e.Trace.Path),
			zap.String("reason", e.DropReason))
		return nil
	}

	if p.store != nil {
		if err := p.store.CreateTrace(ctx, e.Trace); err != nil {
			return fmt.Errorf("store trace: %w", err)
		}
	}

	for _, hook := range p.postStore {
		if err := hook.OnPostStore(ctx, e); err != nil {
			p.logger.Warn("poststore hook error",
				zap.String("plugin", pluginID(hook)),
				logging.TraceID(e.Trace.ID),
				zap.Error(err))
		}
	}

	return nil
}

func pluginID(hook any) string {
	if p, ok := hook.(Plugin); ok {
		return p.ID()
	}
	return "unknown"
}
