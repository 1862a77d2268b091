// Package openapi models the subset of an OpenAPI 3.0 document that
// generated specs populate.
package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rsclarke/tracescope/internal/schema"
)

// Version is the OpenAPI version written into generated documents.
const Version = "3.0.0"

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
)

// DefaultResponse keys a response whose status code is unknown.
const DefaultResponse = "default"

// Document is an OpenAPI document.
type Document struct {
	OpenAPI string              `json:"openapi"`
	Info    Info                `json:"info"`
	Servers []Server            `json:"servers"`
	Paths   map[string]PathItem `json:"paths"`
}

// Info is the document metadata block.
type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Server is one base URL the API is served from.
type Server struct {
	URL string `json:"url"`
}

// PathItem maps a lowercase HTTP method to its operation.
type PathItem map[string]*Operation

// Operation describes one path and method.
type Operation struct {
	Parameters  []*Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody         `json:"requestBody,omitempty"`
	Responses   map[string]*Response `json:"responses"`
}

// Parameter is a path, query or header parameter.
type Parameter struct {
	Name     string         `json:"name"`
	In       string         `json:"in"`
	Required bool           `json:"required,omitempty"`
	Schema   *schema.Schema `json:"schema,omitempty"`
}

// RequestBody holds request body schemas by content type.
type RequestBody struct {
	Content map[string]*schema.MediaType `json:"content"`
}

// Response holds the headers and body schemas of one status code.
type Response struct {
	Description string                       `json:"description"`
	Headers     map[string]*Header           `json:"headers,omitempty"`
	Content     map[string]*schema.MediaType `json:"content,omitempty"`
}

// Header is a response header.
type Header struct {
	Schema *schema.Schema `json:"schema,omitempty"`
}

// New returns the skeleton document for host.
func New(host string) *Document {
	return &Document{
		OpenAPI: Version,
		Info: Info{
			Title:       "OpenAPI 3.0 Spec",
			Version:     "1.0.0",
			Description: "An auto-generated OpenAPI 3.0 specification.",
		},
		Servers: []Server{{URL: host}},
		Paths:   map[string]PathItem{},
	}
}

// Parse decodes a stored document.
func Parse(data string) (*Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if doc.Paths == nil {
		doc.Paths = map[string]PathItem{}
	}
	return &doc, nil
}

// Encode renders doc as indented JSON. Parameters are sorted by location
// and name and map keys are sorted, so equal documents encode identically.
func (d *Document) Encode() (string, error) {
	for _, item := range d.Paths {
		for _, op := range item {
			op.sortParameters()
		}
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode openapi document: %w", err)
	}
	return string(b), nil
}

// RemoveOperation deletes the operation for path and method. A path left
// without operations is removed too.
func (d *Document) RemoveOperation(path, method string) {
	item, ok := d.Paths[path]
	if !ok {
		return
	}
	delete(item, strings.ToLower(method))
	if len(item) == 0 {
		delete(d.Paths, path)
	}
}

// Operation returns the operation for path and method, creating it when
// missing.
func (d *Document) Operation(path, method string) *Operation {
	item, ok := d.Paths[path]
	if !ok {
		item = PathItem{}
		d.Paths[path] = item
	}
	method = strings.ToLower(method)
	op, ok := item[method]
	if !ok {
		op = &Operation{Responses: map[string]*Response{}}
		item[method] = op
	}
	if op.Responses == nil {
		op.Responses = map[string]*Response{}
	}
	return op
}

// Parameter returns the parameter named name at location in, creating it
// when missing. Path parameters are always required.
func (o *Operation) Parameter(name, in string) *Parameter {
	for _, p := range o.Parameters {
		if p.Name == name && p.In == in {
			return p
		}
	}
	p := &Parameter{Name: name, In: in, Required: in == InPath}
	o.Parameters = append(o.Parameters, p)
	return p
}

// Body returns the request body, creating it when missing.
func (o *Operation) Body() *RequestBody {
	if o.RequestBody == nil {
		o.RequestBody = &RequestBody{}
	}
	return o.RequestBody
}

// Response returns the response for status, creating it when missing.
// A zero status is keyed as "default".
func (o *Operation) Response(status int) *Response {
	key := DefaultResponse
	if status > 0 {
		key = fmt.Sprint(status)
	}
	r, ok := o.Responses[key]
	if !ok {
		r = &Response{Description: describe(status)}
		o.Responses[key] = r
	}
	return r
}

// Header returns the response header named name, creating it when missing.
func (r *Response) Header(name string) *Header {
	if r.Headers == nil {
		r.Headers = map[string]*Header{}
	}
	h, ok := r.Headers[name]
	if !ok {
		h = &Header{}
		r.Headers[name] = h
	}
	return h
}

func (o *Operation) sortParameters() {
	sort.SliceStable(o.Parameters, func(i, j int) bool {
		a, b := o.Parameters[i], o.Parameters[j]
		if a.In != b.In {
			return a.In < b.In
		}
		return a.Name < b.Name
	})
}

func describe(status int) string {
	if status <= 0 {
		return "Default response"
	}
	return fmt.Sprintf("Response with status %d", status)
}
