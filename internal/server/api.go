// Package server implements the tracescope REST API and the lifecycle of
// its HTTP listener.
package server

import (
	"bytes"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/db"
	"github.com/rsclarke/tracescope/internal/events"
	"github.com/rsclarke/tracescope/internal/logging"
	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/openapi"
	"github.com/rsclarke/tracescope/internal/plugins"
	"github.com/rsclarke/tracescope/internal/risk"
	"github.com/rsclarke/tracescope/internal/specgen"
	"github.com/rsclarke/tracescope/internal/types"
)

const (
	maxTraceBody = 8 << 20
	maxBatchBody = 64 << 20
)

// APIServer handles the REST API for trace ingestion, the endpoint
// inventory and generated documents.
type APIServer struct {
	DB        *sql.DB
	Pipeline  *plugins.Pipeline
	Generator *specgen.Generator
	// Tenant applies to traces that do not name one.
	Tenant string
	// APIToken, when set, is required as a bearer token on every request.
	APIToken string
	Logger   *zap.Logger
}

// AuthMiddleware rejects requests without the configured bearer token.
func (s *APIServer) AuthMiddleware(next http.Handler) http.Handler {
	if s.APIToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.APIToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP handler for the API server.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/traces", s.handleIngestTrace)
	mux.HandleFunc("POST /v1/traces/batch", s.handleIngestBatch)
	mux.HandleFunc("GET /v1/endpoints", s.handleListEndpoints)
	mux.HandleFunc("GET /v1/traces/{id}", s.handleGetTrace)
	mux.HandleFunc("GET /v1/endpoints/{id}", s.handleGetEndpoint)
	mux.HandleFunc("DELETE /v1/endpoints/{id}", s.handleDeleteEndpoint)
	mux.HandleFunc("GET /v1/specs/{name}", s.handleGetSpec)
	mux.HandleFunc("PUT /v1/specs/{name}", s.handlePutSpec)
	mux.HandleFunc("DELETE /v1/specs/{name}", s.handleDeleteSpec)
	mux.HandleFunc("POST /v1/specs/generate", s.handleGenerate)
	mux.HandleFunc("GET /v1/data-classes", s.handleListDataClasses)
	mux.HandleFunc("PUT /v1/data-classes/{name}", s.handlePutDataClass)
	mux.HandleFunc("DELETE /v1/data-classes/{name}", s.handleDeleteDataClass)
	mux.HandleFunc("GET /v1/plugins", s.handleListPlugins)

	return s.AuthMiddleware(mux)
}

func (s *APIServer) handleIngestTrace(w http.ResponseWriter, r *http.Request) {
	var req types.TraceRequest
	if !decodeBody(w, r, maxTraceBody, &req) {
		return
	}

	e, err := s.newEvent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Pipeline.Process(r.Context(), e); err != nil {
		s.Logger.Error("failed to process trace",
			logging.Host(e.Trace.Host),
			logging.Path(e.Trace.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store trace")
		return
	}

	resp := ingestResponse(e)
	if resp.Dropped {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *APIServer) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req types.BatchRequest
	if !decodeBody(w, r, maxBatchBody, &req) {
		return
	}

	var resp types.BatchResponse
	for i, tr := range req.Traces {
		e, err := s.newEvent(tr)
		if err != nil {
			resp.Invalid++
			resp.Errors = append(resp.Errors, types.BatchError{Index: i, Error: err.Error()})
			continue
		}
		if err := s.Pipeline.Process(r.Context(), e); err != nil {
			s.Logger.Error("failed to process trace",
				logging.Host(e.Trace.Host),
				logging.Path(e.Trace.Path),
				zap.Error(err))
			resp.Failed++
			resp.Errors = append(resp.Errors, types.BatchError{Index: i, Error: "failed to store trace"})
			continue
		}
		if e.Drop {
			resp.Dropped++
			resp.Errors = append(resp.Errors, types.BatchError{Index: i, Error: e.DropReason})
			continue
		}
		resp.Accepted++
	}

	s.Logger.Debug("batch ingested",
		logging.Count(len(req.Traces)),
		zap.Int("accepted", resp.Accepted),
		zap.Int("invalid", resp.Invalid))
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := db.ListEndpoints(s.DB)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := types.ListEndpointsResponse{
		Endpoints: make([]types.EndpointInfo, 0, len(endpoints)),
	}
	for _, e := range endpoints {
		fields, err := db.ListDataFields(s.DB, e.ID)
		if err != nil {
			s.Logger.Error("failed to list data fields", logging.EndpointID(e.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		resp.Endpoints = append(resp.Endpoints, endpointInfo(e, fields))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	e, err := db.GetEndpoint(s.DB, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	fields, err := db.ListDataFields(s.DB, e.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	count, err := db.CountTraces(s.DB, e.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := types.EndpointDetailResponse{
		EndpointInfo: endpointInfo(*e, fields),
		TraceCount:   count,
		DataFields:   make([]types.DataFieldInfo, 0, len(fields)),
	}
	for _, f := range fields {
		classes := f.DataClasses
		if classes == nil {
			classes = []string{}
		}
		resp.DataFields = append(resp.DataFields, types.DataFieldInfo{
			Section:     string(f.Section),
			ContentType: f.ContentType,
			StatusCode:  f.StatusCode,
			DataPath:    f.DataPath,
			DataType:    string(f.DataType),
			DataClasses: classes,
			TraceID:     f.TraceID,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleGetSpec(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	spec, err := db.GetSpec(s.DB, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if spec == nil {
		writeError(w, http.StatusNotFound, "spec not found")
		return
	}

	writeJSON(w, http.StatusOK, specResponse(spec))
}

func (s *APIServer) handlePutSpec(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req types.SpecUpload
	if !decodeBody(w, r, maxTraceBody, &req) {
		return
	}
	if len(req.Document) == 0 {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}
	if _, err := openapi.Parse(string(req.Document)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document")
		return
	}

	existing, err := db.GetSpec(s.DB, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing.State() == models.SpecAutoGenerated {
		writeError(w, http.StatusConflict, "spec is auto-generated")
		return
	}

	for _, id := range req.Endpoints {
		e, err := db.GetEndpoint(s.DB, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if e == nil {
			writeError(w, http.StatusBadRequest, "unknown endpoint "+id)
			return
		}
	}

	now := time.Now().UTC()
	spec := &models.Spec{
		Name:      name,
		Spec:      string(req.Document),
		Hosts:     req.Hosts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		spec.CreatedAt = existing.CreatedAt
	}
	if err := db.CommitSpec(s.DB, spec, req.Endpoints); err != nil {
		s.Logger.Error("failed to store spec", logging.Spec(name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store spec")
		return
	}

	s.Logger.Info("user spec stored", logging.Spec(name), logging.Count(len(req.Endpoints)))
	writeJSON(w, http.StatusOK, specResponse(spec))
}

func (s *APIServer) handleDeleteSpec(w http.ResponseWriter, r *http.Request) {
	deleted, err := db.DeleteSpec(s.DB, r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "spec not found")
		return
	}
	writeJSON(w, http.StatusOK, types.DeleteResponse{Deleted: true})
}

func (s *APIServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.Generator.Run(r.Context())
	if err != nil {
		s.Logger.Error("spec generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "spec generation failed")
		return
	}
	writeJSON(w, http.StatusOK, types.GenerateResponse{
		Hosts:     res.Hosts,
		Failed:    res.Failed,
		Endpoints: res.Endpoints,
	})
}

func (s *APIServer) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Pipeline.ListPlugins())
}

func (s *APIServer) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	t, err := db.GetTrace(s.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}

	writeJSON(w, http.StatusOK, types.TraceInfo{
		ID:              t.ID,
		EndpointID:      t.EndpointID,
		Host:            t.Host,
		Path:            t.Path,
		Method:          t.Method,
		QueryParams:     apiKeyVals(t.QueryParams),
		RequestHeaders:  apiKeyVals(t.RequestHeaders),
		RequestBody:     t.RequestBody,
		ResponseStatus:  t.ResponseStatus,
		ResponseHeaders: apiKeyVals(t.ResponseHeaders),
		ResponseBody:    t.ResponseBody,
		CreatedAt:       formatTime(t.CreatedAt),
	})
}

func (s *APIServer) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	e, err := db.GetEndpoint(s.DB, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	if err := db.DeleteEndpoint(s.DB, id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete endpoint")
		return
	}

	s.Logger.Info("endpoint deleted", logging.EndpointID(id), logging.Host(e.Host), logging.Path(e.Path))
	writeJSON(w, http.StatusOK, types.DeleteResponse{Deleted: true})
}

func (s *APIServer) handleListDataClasses(w http.ResponseWriter, r *http.Request) {
	tenant := s.tenant(r)
	classes, err := db.ListDataClasses(s.DB, tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := types.ListDataClassesResponse{
		Tenant:      tenant,
		DataClasses: make([]types.DataClassInfo, 0, len(classes)),
	}
	for _, c := range classes {
		resp.DataClasses = append(resp.DataClasses, types.DataClassInfo{Name: c.Name, Regex: c.Regex, StringOnly: c.StringOnly})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handlePutDataClass(w http.ResponseWriter, r *http.Request) {
	var req types.DataClassInfo
	if !decodeBody(w, r, 1<<16, &req) {
		return
	}
	req.Name = r.PathValue("name")
	if _, err := regexp.Compile(req.Regex); err != nil {
		writeError(w, http.StatusBadRequest, "invalid regex: "+err.Error())
		return
	}

	tenant := s.tenant(r)
	c := models.DataClass{Tenant: tenant, Name: req.Name, Regex: req.Regex, StringOnly: req.StringOnly}
	if err := db.SaveDataClass(s.DB, c); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save data class")
		return
	}

	s.Logger.Info("data class saved", logging.Tenant(tenant), logging.DataClass(req.Name))
	writeJSON(w, http.StatusOK, req)
}

func (s *APIServer) handleDeleteDataClass(w http.ResponseWriter, r *http.Request) {
	if err := db.DeleteDataClass(s.DB, s.tenant(r), r.PathValue("name")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete data class")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tenant returns the tenant named by the request's query, or the default.
func (s *APIServer) tenant(r *http.Request) string {
	if t := r.URL.Query().Get("tenant"); t != "" {
		return t
	}
	return s.Tenant
}

// newEvent validates a submitted trace and wraps it for the pipeline.
func (s *APIServer) newEvent(req types.TraceRequest) (*events.TraceEvent, error) {
	if req.Host == "" {
		return nil, errors.New("host required")
	}
	if req.Method == "" {
		return nil, errors.New("method required")
	}
	if req.Path == "" {
		return nil, errors.New("path required")
	}
	if req.ResponseStatus < 0 || req.ResponseStatus > 999 {
		return nil, fmt.Errorf("invalid response status %d", req.ResponseStatus)
	}

	t := &models.Trace{
		Host:            strings.ToLower(req.Host),
		Path:            req.Path,
		Method:          strings.ToUpper(req.Method),
		QueryParams:     keyVals(req.QueryParams),
		RequestHeaders:  keyVals(req.RequestHeaders),
		RequestBody:     req.RequestBody,
		ResponseStatus:  req.ResponseStatus,
		ResponseHeaders: keyVals(req.ResponseHeaders),
		ResponseBody:    req.ResponseBody,
	}
	if req.CreatedAt != "" {
		at, err := time.Parse(time.RFC3339Nano, req.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at: %w", err)
		}
		t.CreatedAt = at.UTC()
	}

	tenant := req.Tenant
	if tenant == "" {
		tenant = s.Tenant
	}
	return &events.TraceEvent{Tenant: tenant, Trace: t}, nil
}

func keyVals(in []types.KeyVal) []models.KeyVal {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.KeyVal, len(in))
	for i, kv := range in {
		out[i] = models.KeyVal{Name: kv.Name, Value: kv.Value}
	}
	return out
}

func apiKeyVals(in []models.KeyVal) []types.KeyVal {
	out := make([]types.KeyVal, len(in))
	for i, kv := range in {
		out[i] = types.KeyVal{Name: kv.Name, Value: kv.Value}
	}
	return out
}

func specResponse(spec *models.Spec) types.SpecResponse {
	resp := types.SpecResponse{
		Name:          spec.Name,
		AutoGenerated: spec.IsAutoGenerated,
		Hosts:         spec.Hosts,
		CreatedAt:     formatTime(spec.CreatedAt),
		UpdatedAt:     formatTime(spec.UpdatedAt),
		Document:      json.RawMessage(spec.Spec),
	}
	if resp.Hosts == nil {
		resp.Hosts = []string{}
	}
	if spec.SpecUpdatedAt != nil {
		wm := formatTime(*spec.SpecUpdatedAt)
		resp.Watermark = &wm
	}
	return resp
}

func ingestResponse(e *events.TraceEvent) types.IngestResponse {
	resp := types.IngestResponse{
		Dropped:    e.Drop,
		Reason:     e.DropReason,
		TraceID:    e.Trace.ID,
		DataFields: len(e.DataFields),
		Classes:    distinctClasses(e.DataFields),
	}
	if e.Endpoint != nil {
		resp.EndpointID = e.Endpoint.ID
	}
	return resp
}

func endpointInfo(e models.Endpoint, fields []models.DataField) types.EndpointInfo {
	classes := distinctClasses(fields)
	if classes == nil {
		classes = []string{}
	}
	return types.EndpointInfo{
		ID:            e.ID,
		Host:          e.Host,
		Method:        e.Method,
		Path:          e.Path,
		NumberParams:  e.NumberParams,
		FirstDetected: formatTime(e.FirstDetected),
		LastActive:    formatTime(e.LastActive),
		SpecName:      e.SpecName,
		Risk:          string(risk.Score(fields)),
		DataClasses:   classes,
	}
}

func distinctClasses(fields []models.DataField) []string {
	set := make(map[string]struct{})
	for _, f := range fields {
		for _, c := range f.DataClasses {
			set[c] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeBody reads a size-limited JSON body into v, writing the error
// response itself when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
