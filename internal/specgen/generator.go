// Package specgen keeps one auto-generated OpenAPI document per host
// current by folding in traces recorded since the document's watermark.
package specgen

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/logging"
	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/openapi"
)

// Store is the persistence the generator needs.
type Store interface {
	// EndpointsWithoutSpec returns endpoints not linked to any document.
	EndpointsWithoutSpec(ctx context.Context) ([]models.Endpoint, error)
	// StaleGeneratedEndpoints returns endpoints linked to a generated
	// document that have traces inside (watermark, until].
	StaleGeneratedEndpoints(ctx context.Context, until time.Time) ([]models.Endpoint, error)
	// LinkedEndpoints returns the endpoints linked to the named document.
	LinkedEndpoints(ctx context.Context, name string) ([]models.Endpoint, error)
	GetSpec(ctx context.Context, name string) (*models.Spec, error)
	// Traces returns an endpoint's traces inside (after, until], oldest
	// first. A nil after means no lower bound.
	Traces(ctx context.Context, endpointID string, after *time.Time, until time.Time) ([]models.Trace, error)
	// CommitSpec persists the document and links the endpoints to it,
	// all or nothing.
	CommitSpec(ctx context.Context, spec *models.Spec, endpointIDs []string) error
}

// Result summarizes one generation cycle.
type Result struct {
	Hosts     int `json:"hosts"`
	Failed    int `json:"failed"`
	Endpoints int `json:"endpoints"`
}

// Generator runs spec generation cycles. Cycles are serialized so merges
// into one document never interleave.
type Generator struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewGenerator creates a Generator.
func NewGenerator(store Store, logger *zap.Logger) *Generator {
	return &Generator{
		store:  store,
		logger: logger.Named("specgen"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SpecName returns the name of the generated document for host.
func SpecName(host string) string {
	return host + "-generated"
}

// Run executes one cycle. A failing host is logged and skipped; an error is
// returned only when endpoints cannot be selected at all.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cycleStart := g.now()

	byHost, err := g.selectEndpoints(ctx, cycleStart)
	if err != nil {
		return Result{}, err
	}

	hosts := make([]string, 0, len(byHost))
	for host := range byHost {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	var res Result
	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		endpoints := byHost[host]
		res.Hosts++
		if err := g.generateHost(ctx, host, endpoints, cycleStart); err != nil {
			res.Failed++
			g.logger.Error("spec generation failed for host",
				logging.Host(host),
				logging.Count(len(endpoints)),
				zap.Error(err))
			continue
		}
		res.Endpoints += len(endpoints)
		g.logger.Info("spec generated",
			logging.Host(host),
			logging.Spec(SpecName(host)),
			logging.Count(len(endpoints)))
	}
	return res, nil
}

func (g *Generator) selectEndpoints(ctx context.Context, cycleStart time.Time) (map[string][]models.Endpoint, error) {
	unlinked, err := g.store.EndpointsWithoutSpec(ctx)
	if err != nil {
		return nil, fmt.Errorf("list endpoints without spec: %w", err)
	}
	stale, err := g.store.StaleGeneratedEndpoints(ctx, cycleStart)
	if err != nil {
		return nil, fmt.Errorf("list stale endpoints: %w", err)
	}

	byHost := make(map[string][]models.Endpoint)
	seen := make(map[string]bool)
	for _, e := range append(unlinked, stale...) {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		byHost[e.Host] = append(byHost[e.Host], e)
	}
	return byHost, nil
}

// generateHost folds every selected endpoint of host into its document and
// commits the document together with the endpoint links.
//
// Endpoints that are not linked to the document are folded over their whole
// history. For an endpoint that was linked before (a user document that was
// later deleted, or a template promoted since the last cycle) this merges
// traces at or before the watermark a second time, which the schema join
// absorbs. Operations no longer backed by a linked or selected endpoint are
// removed first, so a promoted template does not leave its old path behind.
func (g *Generator) generateHost(ctx context.Context, host string, endpoints []models.Endpoint, cycleStart time.Time) error {
	name := SpecName(host)
	existing, err := g.store.GetSpec(ctx, name)
	if err != nil {
		return fmt.Errorf("load spec %s: %w", name, err)
	}

	spec := &models.Spec{
		Name:            name,
		IsAutoGenerated: true,
		Hosts:           []string{host},
		CreatedAt:       g.now(),
	}
	doc := openapi.New(host)
	var watermark *time.Time

	switch existing.State() {
	case models.SpecUserProvided:
		return fmt.Errorf("spec %s is user provided", name)
	case models.SpecAutoGenerated:
		doc, err = openapi.Parse(existing.Spec)
		if err != nil {
			return err
		}
		watermark = existing.SpecUpdatedAt
		spec.CreatedAt = existing.CreatedAt
		if len(existing.Hosts) > 0 {
			spec.Hosts = existing.Hosts
		}
		linked, err := g.store.LinkedEndpoints(ctx, name)
		if err != nil {
			return fmt.Errorf("list endpoints of %s: %w", name, err)
		}
		if removed := prune(doc, append(linked, endpoints...)); removed > 0 {
			g.logger.Info("removed stale operations", logging.Spec(name), logging.Count(removed))
		}
	}

	ids := make([]string, 0, len(endpoints))
	for i := range endpoints {
		e := &endpoints[i]

		// Unlinked endpoints are folded over their whole history.
		after := watermark
		if e.SpecName == nil {
			after = nil
		}
		traces, err := g.store.Traces(ctx, e.ID, after, cycleStart)
		if err != nil {
			return fmt.Errorf("load traces for endpoint %s: %w", e.ID, err)
		}
		for j := range traces {
			Fold(doc, e, &traces[j])
		}
		ids = append(ids, e.ID)
	}

	encoded, err := doc.Encode()
	if err != nil {
		return err
	}
	spec.Spec = encoded
	spec.UpdatedAt = g.now()
	spec.SpecUpdatedAt = &cycleStart

	if err := g.store.CommitSpec(ctx, spec, ids); err != nil {
		return fmt.Errorf("commit spec %s: %w", name, err)
	}
	return nil
}

// prune drops operations of doc that none of endpoints describes and
// returns how many were dropped.
func prune(doc *openapi.Document, endpoints []models.Endpoint) int {
	keep := make(map[string]map[string]bool)
	for _, e := range endpoints {
		if keep[e.Path] == nil {
			keep[e.Path] = make(map[string]bool)
		}
		keep[e.Path][strings.ToLower(e.Method)] = true
	}

	removed := 0
	for path, item := range doc.Paths {
		for method := range item {
			if !keep[path][method] {
				doc.RemoveOperation(path, method)
				removed++
			}
		}
	}
	return removed
}
