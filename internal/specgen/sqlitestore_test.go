package specgen

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/db"
	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/openapi"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func addTrace(t *testing.T, d *sql.DB, endpointID, path, body string, at time.Time) {
	t.Helper()
	tr := &models.Trace{
		EndpointID:      endpointID,
		Host:            "api.x.com",
		Path:            path,
		Method:          "GET",
		ResponseStatus:  200,
		ResponseHeaders: []models.KeyVal{{Name: "Content-Type", Value: "application/json"}},
		ResponseBody:    &body,
		CreatedAt:       at,
	}
	require.NoError(t, db.CreateTrace(d, tr))
}

func TestSQLiteGenerationWatermark(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	e := &models.Endpoint{Host: "api.x.com", Path: "/users/{param1}", Method: "GET", NumberParams: 1}
	require.NoError(t, db.CreateEndpoint(d, e, 2))
	addTrace(t, d, e.ID, "/users/42", `{"id":42}`, base)

	g := NewGenerator(NewSQLiteStore(d), zap.NewNop())
	ctx := context.Background()

	// First cycle creates the document.
	first := base.Add(time.Minute)
	g.now = fixedClock(first)
	res, err := g.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Hosts: 1, Endpoints: 1}, res)

	spec, err := db.GetSpec(d, "api.x.com-generated")
	require.NoError(t, err)
	require.NotNil(t, spec)
	require.NotNil(t, spec.SpecUpdatedAt)
	assert.True(t, first.Equal(*spec.SpecUpdatedAt))
	firstContent := spec.Spec

	linked, err := db.GetEndpoint(d, e.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.SpecName)
	assert.Equal(t, "api.x.com-generated", *linked.SpecName)

	doc, err := openapi.Parse(spec.Spec)
	require.NoError(t, err)
	op := doc.Paths["/users/{param1}"]["get"]
	require.NotNil(t, op)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, openapi.InPath, op.Parameters[0].In)

	// No new traces: nothing is selected and the document is untouched.
	g.now = fixedClock(base.Add(2 * time.Minute))
	res, err = g.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	spec, err = db.GetSpec(d, "api.x.com-generated")
	require.NoError(t, err)
	assert.Equal(t, firstContent, spec.Spec)
	assert.True(t, first.Equal(*spec.SpecUpdatedAt))

	// One trace inside the next window, one after it.
	third := base.Add(3 * time.Minute)
	addTrace(t, d, e.ID, "/users/77", `{"id":77,"name":"bob"}`, base.Add(150*time.Second))
	addTrace(t, d, e.ID, "/users/78", `{"id":78,"late":true}`, base.Add(4*time.Minute))

	g.now = fixedClock(third)
	res, err = g.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Hosts: 1, Endpoints: 1}, res)

	spec, err = db.GetSpec(d, "api.x.com-generated")
	require.NoError(t, err)
	assert.True(t, third.Equal(*spec.SpecUpdatedAt))
	assert.Contains(t, spec.Spec, `"name"`)
	assert.NotContains(t, spec.Spec, `"late"`, "trace after cycle start belongs to the next cycle")
}

func TestSQLiteGenerationLeavesUserSpecsAlone(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveSpec(d, &models.Spec{
		Name:      "petstore",
		Spec:      `{"openapi":"3.0.0"}`,
		Hosts:     []string{"api.x.com"},
		CreatedAt: base,
		UpdatedAt: base,
	}))
	name := "petstore"
	e := &models.Endpoint{Host: "api.x.com", Path: "/pets", Method: "GET", SpecName: &name}
	require.NoError(t, db.CreateEndpoint(d, e, 1))
	addTrace(t, d, e.ID, "/pets", `[]`, base)

	g := NewGenerator(NewSQLiteStore(d), zap.NewNop())
	g.now = fixedClock(base.Add(time.Minute))

	res, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	spec, err := db.GetSpec(d, "petstore")
	require.NoError(t, err)
	assert.Equal(t, `{"openapi":"3.0.0"}`, spec.Spec)

	generated, err := db.GetSpec(d, "api.x.com-generated")
	require.NoError(t, err)
	assert.Nil(t, generated)
}

func TestSQLiteGenerationRefoldsPromotedTemplate(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	e := &models.Endpoint{Host: "api.x.com", Path: "/users/42", Method: "GET"}
	require.NoError(t, db.CreateEndpoint(d, e, 2))
	addTrace(t, d, e.ID, "/users/42", `{"id":42}`, base)

	g := NewGenerator(NewSQLiteStore(d), zap.NewNop())
	ctx := context.Background()

	g.now = fixedClock(base.Add(time.Minute))
	_, err := g.Run(ctx)
	require.NoError(t, err)

	// A second value at the same position turns the literal into a parameter.
	addTrace(t, d, e.ID, "/users/77", `{"id":77,"name":"bob"}`, base.Add(90*time.Second))
	require.NoError(t, db.UpdateEndpointPath(d, e.ID, "/users/{param1}", 1))

	unlinked, err := db.GetEndpoint(d, e.ID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.SpecName, "promotion clears the generated link")

	g.now = fixedClock(base.Add(2 * time.Minute))
	res, err := g.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Hosts: 1, Endpoints: 1}, res)

	spec, err := db.GetSpec(d, "api.x.com-generated")
	require.NoError(t, err)
	doc, err := openapi.Parse(spec.Spec)
	require.NoError(t, err)

	assert.NotContains(t, doc.Paths, "/users/42")
	op := doc.Paths["/users/{param1}"]["get"]
	require.NotNil(t, op)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, "param1", op.Parameters[0].Name)
	assert.Contains(t, spec.Spec, `"name"`)
}

func TestSQLiteGenerationDropsDeletedEndpoint(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	kept := &models.Endpoint{Host: "api.x.com", Path: "/orders", Method: "GET"}
	gone := &models.Endpoint{Host: "api.x.com", Path: "/legacy", Method: "GET"}
	require.NoError(t, db.CreateEndpoint(d, kept, 1))
	require.NoError(t, db.CreateEndpoint(d, gone, 1))
	addTrace(t, d, kept.ID, "/orders", `[]`, base)
	addTrace(t, d, gone.ID, "/legacy", `[]`, base)

	g := NewGenerator(NewSQLiteStore(d), zap.NewNop())
	ctx := context.Background()

	g.now = fixedClock(base.Add(time.Minute))
	_, err := g.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, db.DeleteEndpoint(d, gone.ID))
	addTrace(t, d, kept.ID, "/orders", `[{"id":1}]`, base.Add(90*time.Second))

	g.now = fixedClock(base.Add(2 * time.Minute))
	_, err = g.Run(ctx)
	require.NoError(t, err)

	spec, err := db.GetSpec(d, "api.x.com-generated")
	require.NoError(t, err)
	doc, err := openapi.Parse(spec.Spec)
	require.NoError(t, err)
	assert.Contains(t, doc.Paths, "/orders")
	assert.NotContains(t, doc.Paths, "/legacy")
}
