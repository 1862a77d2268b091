package schema

import (
	"strings"

	"github.com/goccy/go-json"
)

// UnknownContentType keys content whose type was not declared.
const UnknownContentType = "unknown"

// MediaType is the schema of one content type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// ContentKey normalizes a declared content type into a content map key.
func ContentKey(contentType string) string {
	key := strings.ToLower(strings.TrimSpace(contentType))
	if key == "" {
		return UnknownContentType
	}
	return key
}

// MergeContent folds a raw body into the schema stored under its content
// type and returns the (possibly newly allocated) content map. JSON objects
// and arrays are merged structurally; any other body is an opaque string.
// An empty body contributes nothing.
func MergeContent(content map[string]*MediaType, raw, contentType string) map[string]*MediaType {
	if raw == "" {
		return content
	}
	if content == nil {
		content = make(map[string]*MediaType)
	}

	observed := &Schema{String: &String{}}
	if v, ok := ParseStructured(raw); ok {
		observed = FromValue(v)
	}

	key := ContentKey(contentType)
	mt := content[key]
	if mt == nil {
		mt = &MediaType{}
		content[key] = mt
	}
	mt.Schema = Join(mt.Schema, observed)
	return content
}

// ParseStructured decodes raw when it holds a single JSON object or array.
// Numbers are kept as json.Number so integer literals stay exact.
func ParseStructured(raw string) (any, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, false
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// ParseParamValue returns the structured form of a parameter or header
// value: decoded JSON when it holds an object or array, else the string.
func ParseParamValue(value string) any {
	if v, ok := ParseStructured(value); ok {
		return v
	}
	return value
}
