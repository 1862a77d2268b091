package schema

import (
	"github.com/goccy/go-json"
)

// wireSchema is the OpenAPI 3.0 rendering of a single alternative, or of a
// oneOf group when a schema has several.
type wireSchema struct {
	Type       Type               `json:"type,omitempty"`
	Format     string             `json:"format,omitempty"`
	Nullable   bool               `json:"nullable,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	OneOf      []*Schema          `json:"oneOf,omitempty"`
}

// MarshalJSON renders s as an OpenAPI schema object. Map keys are emitted
// sorted, so equal schemas always encode to identical bytes.
func (s Schema) MarshalJSON() ([]byte, error) {
	types := s.Types()
	switch len(types) {
	case 0:
		return json.Marshal(wireSchema{Nullable: s.Nullable})
	case 1:
		w := s.alternative(types[0])
		w.Nullable = s.Nullable
		return json.Marshal(w)
	}

	w := wireSchema{Nullable: s.Nullable}
	for _, t := range types {
		alt := s.alternative(t)
		w.OneOf = append(w.OneOf, alt.toSchema())
	}
	return json.Marshal(w)
}

// alternative renders the alternative tagged t.
func (s *Schema) alternative(t Type) wireSchema {
	w := wireSchema{Type: t}
	switch t {
	case TypeObject:
		w.Properties = s.Object.Properties
		if w.Properties == nil {
			w.Properties = map[string]*Schema{}
		}
	case TypeArray:
		w.Items = s.Array.Items
		if w.Items == nil {
			w.Items = &Schema{}
		}
	case TypeString:
		w.Format = s.String.Format
	}
	return w
}

// toSchema converts a single-alternative rendering back into a Schema.
func (w wireSchema) toSchema() *Schema {
	s := &Schema{Nullable: w.Nullable}
	switch w.Type {
	case TypeObject:
		props := make(map[string]*Schema, len(w.Properties))
		for k, v := range w.Properties {
			if v == nil {
				v = &Schema{}
			}
			props[k] = v
		}
		s.Object = &Object{Properties: props}
	case TypeArray:
		items := w.Items
		if items.IsEmpty() {
			items = nil
		}
		s.Array = &Array{Items: items}
	case TypeString:
		s.String = &String{Format: w.Format}
	case TypeInteger:
		s.Integer = true
	case TypeNumber:
		s.Number = true
	case TypeBoolean:
		s.Boolean = true
	}
	return s
}

// UnmarshalJSON reads an OpenAPI schema object. Alternatives listed under
// oneOf are joined; unknown type tags admit nothing.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var w wireSchema
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := w.toSchema()
	for _, alt := range w.OneOf {
		out = Join(out, alt)
	}
	*s = *out
	return nil
}
