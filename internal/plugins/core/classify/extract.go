package classify

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/paths"
	"github.com/rsclarke/tracescope/internal/schema"
)

// location identifies a data field under an endpoint.
type location struct {
	section     models.DataSection
	contentType string
	statusCode  int
	dataPath    string
}

// observation is one scalar value seen at a location.
type observation struct {
	location
	value any
}

// extract lists every scalar value of a trace with its location. Nested
// object keys are joined with "." and array elements are marked "[]".
func extract(e *models.Endpoint, t *models.Trace) []observation {
	var out []observation

	template := paths.Tokenize(e.Path)
	observed := paths.Tokenize(t.Path)
	if len(template) == len(observed) {
		for i, token := range template {
			if paths.IsTemplateToken(token) {
				out = append(out, observation{
					location: location{section: models.SectionPathParams, dataPath: paths.TemplateName(token)},
					value:    observed[i],
				})
			}
		}
	}

	for _, q := range t.QueryParams {
		out = walk(out, location{section: models.SectionQueryParams}, q.Name, schema.ParseParamValue(q.Value))
	}
	for _, h := range t.RequestHeaders {
		out = walk(out, location{section: models.SectionRequestHeaders}, strings.ToLower(h.Name), schema.ParseParamValue(h.Value))
	}
	if t.RequestBody != nil && *t.RequestBody != "" {
		base := location{
			section:     models.SectionRequestBody,
			contentType: contentKey(t.RequestHeaders),
		}
		out = walk(out, base, "", parseBody(*t.RequestBody))
	}

	for _, h := range t.ResponseHeaders {
		base := location{section: models.SectionResponseHeaders, statusCode: t.ResponseStatus}
		out = walk(out, base, strings.ToLower(h.Name), schema.ParseParamValue(h.Value))
	}
	if t.ResponseBody != nil && *t.ResponseBody != "" {
		base := location{
			section:     models.SectionResponseBody,
			contentType: contentKey(t.ResponseHeaders),
			statusCode:  t.ResponseStatus,
		}
		out = walk(out, base, "", parseBody(*t.ResponseBody))
	}

	return out
}

func walk(out []observation, base location, path string, value any) []observation {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			out = walk(out, base, child, v[k])
		}
	case []any:
		for _, item := range v {
			out = walk(out, base, path+"[]", item)
		}
	default:
		loc := base
		loc.dataPath = path
		out = append(out, observation{location: loc, value: value})
	}
	return out
}

func parseBody(raw string) any {
	if v, ok := schema.ParseStructured(raw); ok {
		return v
	}
	return raw
}

func contentKey(headers []models.KeyVal) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, "content-type") {
			return schema.ContentKey(h.Value)
		}
	}
	return schema.UnknownContentType
}

// dataType returns the primitive type of a scalar value.
func dataType(value any) models.DataType {
	switch v := value.(type) {
	case string:
		return models.DataTypeString
	case bool:
		return models.DataTypeBoolean
	case json.Number:
		if strings.ContainsAny(v.String(), ".eE") {
			return models.DataTypeNumber
		}
		return models.DataTypeInteger
	case float64:
		return models.DataTypeNumber
	default:
		return models.DataTypeUnknown
	}
}
