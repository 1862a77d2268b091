package classify

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/db"
	"github.com/rsclarke/tracescope/internal/events"
	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/plugins"
	"github.com/rsclarke/tracescope/internal/risk"
)

func setupTestDB(t *testing.T) *sql.DB {
	tmpDB := t.TempDir() + "/test.db"
	database, err := db.Open(tmpDB)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func setupPlugin(t *testing.T, database *sql.DB) *Plugin {
	p := New(4)
	if err := p.Init(plugins.InitContext{Logger: zap.NewNop(), Store: plugins.NewSQLiteStore(database)}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return p
}

// storedEvent persists an endpoint and a trace and returns the event the
// pipeline would hand to PostStore hooks.
func storedEvent(t *testing.T, database *sql.DB, endpointPath string, tr *models.Trace) *events.TraceEvent {
	t.Helper()
	e := &models.Endpoint{Host: "api.x.com", Path: endpointPath, Method: "POST"}
	if err := db.CreateEndpoint(database, e, 2); err != nil {
		t.Fatalf("CreateEndpoint failed: %v", err)
	}
	tr.EndpointID = e.ID
	tr.Host = "api.x.com"
	tr.Method = "POST"
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	if err := db.CreateTrace(database, tr); err != nil {
		t.Fatalf("CreateTrace failed: %v", err)
	}
	return &events.TraceEvent{Tenant: "default", Trace: tr, Endpoint: e}
}

func TestPluginID(t *testing.T) {
	p := New(0)
	if got := p.ID(); got != "classify" {
		t.Errorf("ID() = %q, want %q", got, "classify")
	}
	if p.workers <= 0 {
		t.Errorf("expected a positive worker default, got %d", p.workers)
	}
}

func TestPluginInitRequiresStore(t *testing.T) {
	if err := New(1).Init(plugins.InitContext{Logger: zap.NewNop()}); err == nil {
		t.Error("expected error without a store")
	}
}

func TestOnPostStoreSSNBody(t *testing.T) {
	database := setupTestDB(t)
	p := setupPlugin(t, database)

	body := `{"ssn":"123-45-6789"}`
	e := storedEvent(t, database, "/users/42", &models.Trace{
		Path:           "/users/42",
		RequestHeaders: []models.KeyVal{{Name: "Content-Type", Value: "application/json"}},
		RequestBody:    &body,
	})

	if err := p.OnPostStore(context.Background(), e); err != nil {
		t.Fatalf("OnPostStore failed: %v", err)
	}

	fields, err := db.ListDataFields(database, e.Endpoint.ID)
	if err != nil {
		t.Fatalf("ListDataFields failed: %v", err)
	}

	var ssn *models.DataField
	for i := range fields {
		if fields[i].Section == models.SectionRequestBody && fields[i].DataPath == "ssn" {
			ssn = &fields[i]
		}
	}
	if ssn == nil {
		t.Fatalf("expected a request body field at ssn, got %+v", fields)
	}
	if !reflect.DeepEqual(ssn.DataClasses, []string{"SSN"}) {
		t.Errorf("expected [SSN], got %v", ssn.DataClasses)
	}
	if ssn.ContentType != "application/json" {
		t.Errorf("expected content type application/json, got %q", ssn.ContentType)
	}
	if ssn.DataType != models.DataTypeString {
		t.Errorf("expected string type, got %s", ssn.DataType)
	}
	if ssn.TraceID == nil || *ssn.TraceID != e.Trace.ID {
		t.Errorf("expected detection linked to trace %s", e.Trace.ID)
	}

	if got := risk.Score(fields); got != models.RiskLow {
		t.Errorf("expected risk LOW, got %s", got)
	}
}

func TestOnPostStoreSections(t *testing.T) {
	database := setupTestDB(t)
	p := setupPlugin(t, database)

	respBody := `{"user":{"email":"a@b.com","tags":["x","y"]},"count":3}`
	e := storedEvent(t, database, "/users/{param1}", &models.Trace{
		Path:            "/users/42",
		QueryParams:     []models.KeyVal{{Name: "ip", Value: "10.1.2.3"}},
		RequestHeaders:  []models.KeyVal{{Name: "X-Phone", Value: "555-123-4567"}},
		ResponseStatus:  200,
		ResponseHeaders: []models.KeyVal{{Name: "Content-Type", Value: "application/json"}},
		ResponseBody:    &respBody,
	})

	if err := p.OnPostStore(context.Background(), e); err != nil {
		t.Fatalf("OnPostStore failed: %v", err)
	}

	got := make(map[string]models.DataField)
	for _, f := range e.DataFields {
		got[string(f.Section)+":"+f.DataPath] = f
	}

	want := map[string][]string{
		"path_params:param1":            nil,
		"query_params:ip":               {"IP_ADDRESS"},
		"request_headers:x-phone":       {"PHONE_NUMBER"},
		"response_headers:content-type": nil,
		"response_body:user.email":      {"EMAIL"},
		"response_body:user.tags[]":     nil,
		"response_body:count":           nil,
	}
	if len(got) != len(want) {
		t.Errorf("expected %d fields, got %d: %v", len(want), len(got), got)
	}
	for key, classes := range want {
		f, ok := got[key]
		if !ok {
			t.Errorf("missing field %s", key)
			continue
		}
		if len(f.DataClasses) != len(classes) || (len(classes) > 0 && !reflect.DeepEqual(f.DataClasses, classes)) {
			t.Errorf("%s: classes = %v, want %v", key, f.DataClasses, classes)
		}
	}

	if f := got["response_body:count"]; f.DataType != models.DataTypeInteger || f.StatusCode != 200 {
		t.Errorf("count: got type %s status %d", f.DataType, f.StatusCode)
	}
	if f := got["path_params:param1"]; f.TraceID != nil {
		t.Error("fields without detections should not link a trace")
	}

	if got := risk.Score(e.DataFields); got != models.RiskHigh {
		t.Errorf("expected risk HIGH, got %s", got)
	}
}

func TestOnPostStoreAccumulatesAcrossTraces(t *testing.T) {
	database := setupTestDB(t)
	p := setupPlugin(t, database)
	ctx := context.Background()

	first := `{"contact":"a@b.com"}`
	e := storedEvent(t, database, "/contacts", &models.Trace{Path: "/contacts", RequestBody: &first})
	if err := p.OnPostStore(ctx, e); err != nil {
		t.Fatalf("OnPostStore failed: %v", err)
	}

	second := `{"contact":"555-123-4567"}`
	tr := &models.Trace{EndpointID: e.Endpoint.ID, Host: "api.x.com", Path: "/contacts", Method: "POST", RequestBody: &second, CreatedAt: time.Now().UTC()}
	if err := db.CreateTrace(database, tr); err != nil {
		t.Fatalf("CreateTrace failed: %v", err)
	}
	if err := p.OnPostStore(ctx, &events.TraceEvent{Tenant: "default", Trace: tr, Endpoint: e.Endpoint}); err != nil {
		t.Fatalf("OnPostStore failed: %v", err)
	}

	fields, err := db.ListDataFields(database, e.Endpoint.ID)
	if err != nil {
		t.Fatalf("ListDataFields failed: %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if !reflect.DeepEqual(fields[0].DataClasses, []string{"EMAIL", "PHONE_NUMBER"}) {
		t.Errorf("expected classes to accumulate, got %v", fields[0].DataClasses)
	}
	if fields[0].TraceID == nil || *fields[0].TraceID != e.Trace.ID {
		t.Error("expected the first detecting trace to stay linked")
	}
}

func TestOnPostStoreCustomClass(t *testing.T) {
	database := setupTestDB(t)
	if err := db.SaveDataClass(database, models.DataClass{Tenant: "acme", Name: "EMPLOYEE_ID", Regex: `^EMP-\d{6}$`, StringOnly: true}); err != nil {
		t.Fatalf("SaveDataClass failed: %v", err)
	}
	p := setupPlugin(t, database)

	body := `{"employee":"EMP-123456"}`
	e := storedEvent(t, database, "/staff", &models.Trace{Path: "/staff", RequestBody: &body})
	e.Tenant = "acme"

	if err := p.OnPostStore(context.Background(), e); err != nil {
		t.Fatalf("OnPostStore failed: %v", err)
	}
	if len(e.DataFields) != 1 || !reflect.DeepEqual(e.DataFields[0].DataClasses, []string{"EMPLOYEE_ID"}) {
		t.Errorf("expected EMPLOYEE_ID, got %+v", e.DataFields)
	}
}

func TestOnPostStoreSkipsUnstoredTrace(t *testing.T) {
	database := setupTestDB(t)
	p := setupPlugin(t, database)

	body := `{"ssn":"123-45-6789"}`
	e := &events.TraceEvent{
		Trace:    &models.Trace{Path: "/x", RequestBody: &body},
		Endpoint: &models.Endpoint{ID: "missing"},
	}
	if err := p.OnPostStore(context.Background(), e); err != nil {
		t.Fatalf("OnPostStore failed: %v", err)
	}
	if len(e.DataFields) != 0 {
		t.Error("expected no data fields for an unstored trace")
	}
}
