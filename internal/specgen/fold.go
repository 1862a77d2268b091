package specgen

import (
	"strings"

	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/openapi"
	"github.com/rsclarke/tracescope/internal/paths"
	"github.com/rsclarke/tracescope/internal/schema"
)

// ignoredHeaderParams are described elsewhere in an OpenAPI operation and
// may not appear as header parameters.
var ignoredHeaderParams = map[string]bool{
	"accept":        true,
	"content-type":  true,
	"authorization": true,
}

// Fold merges one trace into the operation of its endpoint.
func Fold(doc *openapi.Document, e *models.Endpoint, t *models.Trace) {
	op := doc.Operation(e.Path, e.Method)

	template := paths.Tokenize(e.Path)
	observed := paths.Tokenize(t.Path)
	if len(template) == len(observed) {
		for i, token := range template {
			if !paths.IsTemplateToken(token) {
				continue
			}
			p := op.Parameter(paths.TemplateName(token), openapi.InPath)
			p.Schema = schema.MergeValue(p.Schema, schema.ParseParamValue(observed[i]))
		}
	}

	for _, q := range t.QueryParams {
		p := op.Parameter(q.Name, openapi.InQuery)
		p.Schema = schema.MergeValue(p.Schema, schema.ParseParamValue(q.Value))
	}

	for _, h := range t.RequestHeaders {
		name := strings.ToLower(h.Name)
		if ignoredHeaderParams[name] {
			continue
		}
		p := op.Parameter(name, openapi.InHeader)
		p.Schema = schema.MergeValue(p.Schema, schema.ParseParamValue(h.Value))
	}

	if t.RequestBody != nil && *t.RequestBody != "" {
		body := op.Body()
		body.Content = schema.MergeContent(body.Content, *t.RequestBody, HeaderValue(t.RequestHeaders, "content-type"))
	}

	resp := op.Response(t.ResponseStatus)
	for _, h := range t.ResponseHeaders {
		header := resp.Header(strings.ToLower(h.Name))
		header.Schema = schema.MergeValue(header.Schema, schema.ParseParamValue(h.Value))
	}
	if t.ResponseBody != nil {
		resp.Content = schema.MergeContent(resp.Content, *t.ResponseBody, HeaderValue(t.ResponseHeaders, "content-type"))
	}
}

// HeaderValue returns the first value of the named header, matched
// case-insensitively.
func HeaderValue(headers []models.KeyVal, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
