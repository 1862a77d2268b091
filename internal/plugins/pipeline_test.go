package plugins

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/events"
	"github.com/rsclarke/tracescope/internal/models"
)

type mockStore struct {
	createCalled bool
	createErr    error
	lastTrace    *models.Trace
}

func (m *mockStore) CreateTrace(_ context.Context, t *models.Trace) error {
	m.createCalled = true
	m.lastTrace = t
	if m.createErr != nil {
		return m.createErr
	}
	t.ID = "trace-1"
	return nil
}

func (m *mockStore) FindEndpointCandidates(_ context.Context, _, _ string, _ int) ([]models.Endpoint, error) {
	return nil, nil
}

func (m *mockStore) CreateEndpoint(_ context.Context, _ *models.Endpoint, _ int) error {
	return nil
}

func (m *mockStore) TouchEndpoint(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (m *mockStore) UpdateEndpointPath(_ context.Context, _, _ string, _ int) error {
	return nil
}

func (m *mockStore) UpsertDataField(_ context.Context, f *models.DataField) (*models.DataField, error) {
	return f, nil
}

func (m *mockStore) DataClasses(_ context.Context, _ string) ([]models.DataClass, error) {
	return nil, nil
}

type callRecord struct {
	pluginID string
	phase    string
}

type mockPlugin struct {
	id      string
	preErr  error
	postErr error
	initErr error
	drop    bool
	core    bool
	calls   *[]callRecord
	store   Store
}

func (m *mockPlugin) ID() string { return m.id }

func (m *mockPlugin) Init(ctx InitContext) error {
	m.store = ctx.Store
	return m.initErr
}

func (m *mockPlugin) IsCore() bool { return m.core }

func (m *mockPlugin) OnPreStore(_ context.Context, e *events.TraceEvent) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, callRecord{m.id, "prestore"})
	}
	if m.drop {
		e.Drop = true
		e.DropReason = "test"
	}
	return m.preErr
}

func (m *mockPlugin) OnPostStore(_ context.Context, _ *events.TraceEvent) error {
	if m.calls != nil {
		*m.calls = append(*m.calls, callRecord{m.id, "poststore"})
	}
	return m.postErr
}

func newEvent() *events.TraceEvent {
	return &events.TraceEvent{
		Tenant: "default",
		Trace:  &models.Trace{Host: "api.x.com", Path: "/users/42", Method: "GET"},
	}
}

func TestNewPipeline(t *testing.T) {
	logger := zap.NewNop()
	p := NewPipeline(logger)
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.logger != logger {
		t.Error("expected logger to be set")
	}
}

func TestRegisterDetectsCapabilities(t *testing.T) {
	p := NewPipeline(zap.NewNop())
	plugin := &mockPlugin{id: "test"}

	p.Register(plugin)

	if len(p.preStore) != 1 {
		t.Errorf("expected 1 prestore hook, got %d", len(p.preStore))
	}
	if len(p.postStore) != 1 {
		t.Errorf("expected 1 poststore hook, got %d", len(p.postStore))
	}
}

func TestInitPassesStore(t *testing.T) {
	p := NewPipeline(zap.NewNop())
	store := &mockStore{}
	p.SetStore(store)
	plugin := &mockPlugin{id: "test"}
	p.Register(plugin)

	if err := p.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if plugin.store != store {
		t.Error("expected plugin to receive the pipeline store")
	}
}

func TestInitError(t *testing.T) {
	p := NewPipeline(zap.NewNop())
	p.Register(&mockPlugin{id: "broken", initErr: errors.New("bad config")})

	if err := p.Init(); err == nil {
		t.Fatal("expected init error")
	}
}

func TestProcessHookOrdering(t *testing.T) {
	var calls []callRecord
	p := NewPipeline(zap.NewNop())
	store := &mockStore{}
	p.SetStore(store)

	p.Register(&mockPlugin{id: "p1", calls: &calls})
	p.Register(&mockPlugin{id: "p2", calls: &calls})

	e := newEvent()
	if err := p.Process(context.Background(), e); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	expected := []callRecord{
		{"p1", "prestore"},
		{"p2", "prestore"},
		{"p1", "poststore"},
		{"p2", "poststore"},
	}

	if len(calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(calls), calls)
	}
	for i, exp := range expected {
		if calls[i] != exp {
			t.Errorf("call %d: expected %v, got %v", i, exp, calls[i])
		}
	}

	if !store.createCalled {
		t.Error("expected trace to be stored")
	}
	if !e.Stored() {
		t.Error("expected event to report the trace as stored")
	}
}

func TestProcessStampsCreatedAt(t *testing.T) {
	p := NewPipeline(zap.NewNop())
	p.SetStore(&mockStore{})

	e := newEvent()
	if err := p.Process(context.Background(), e); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if e.Trace.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e = newEvent()
	e.Trace.CreatedAt = at
	if err := p.Process(context.Background(), e); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !e.Trace.CreatedAt.Equal(at) {
		t.Errorf("expected CreatedAt to be kept, got %v", e.Trace.CreatedAt)
	}
}

func TestDropSkipsStorage(t *testing.T) {
	var calls []callRecord
	p := NewPipeline(zap.NewNop())
	store := &mockStore{}
	p.SetStore(store)

	p.Register(&mockPlugin{id: "p1", calls: &calls, drop: true})

	e := newEvent()
	if err := p.Process(context.Background(), e); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if store.createCalled {
		t.Error("expected storage to be skipped when Drop is true")
	}
	if e.Stored() {
		t.Error("dropped trace should not report as stored")
	}

	expected := []callRecord{{"p1", "prestore"}}
	if len(calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(calls), calls)
	}
}

func TestHookErrorsAreLoggedButDontStopPipeline(t *testing.T) {
	var calls []callRecord
	p := NewPipeline(zap.NewNop())
	p.SetStore(&mockStore{})

	p.Register(&mockPlugin{id: "p1", calls: &calls, preErr: errors.New("pre error")})
	p.Register(&mockPlugin{id: "p2", calls: &calls, postErr: errors.New("post error")})

	if err := p.Process(context.Background(), newEvent()); err != nil {
		t.Fatalf("Process should not fail on hook error: %v", err)
	}

	if len(calls) != 4 {
		t.Errorf("expected 4 calls despite errors, got %d: %v", len(calls), calls)
	}
}

func TestStorageErrorReturnsError(t *testing.T) {
	var calls []callRecord
	p := NewPipeline(zap.NewNop())
	storageErr := errors.New("storage failed")
	p.SetStore(&mockStore{createErr: storageErr})
	p.Register(&mockPlugin{id: "p1", calls: &calls})

	err := p.Process(context.Background(), newEvent())
	if err == nil {
		t.Fatal("expected error from storage failure")
	}
	if !errors.Is(err, storageErr) {
		t.Errorf("unexpected error: %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("expected poststore hooks to be skipped, got calls %v", calls)
	}
}

func TestListPlugins(t *testing.T) {
	p := NewPipeline(zap.NewNop())
	p.Register(&mockPlugin{id: "endpoints", core: true})
	p.Register(&mockPlugin{id: "extra"})

	infos := p.ListPlugins()
	if len(infos) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(infos))
	}
	if infos[0].Type != PluginTypeCore {
		t.Errorf("expected core type, got %s", infos[0].Type)
	}
	if infos[1].Type != PluginTypeFeature {
		t.Errorf("expected feature type, got %s", infos[1].Type)
	}
}
