// Package schema infers structural schemas from observed values and widens
// them as more values arrive.
//
// A Schema holds at most one alternative per type tag plus a nullable flag.
// Joining two schemas unions their alternatives and recursively joins
// alternatives of the same tag, so the result of folding a set of values is
// the same whatever order they arrive in.
package schema

// Type is a schema type tag.
type Type string

// Type tags, in the order alternatives are emitted.
const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Schema is a structural description of every value observed at one
// location.
type Schema struct {
	Nullable bool
	Object   *Object
	Array    *Array
	String   *String
	Integer  bool
	// Number absorbs Integer: both are never set together.
	Number  bool
	Boolean bool
}

// Object is the object alternative.
type Object struct {
	Properties map[string]*Schema
}

// Array is the array alternative. Items is nil until an element is seen.
type Array struct {
	Items *Schema
}

// String is the string alternative. Format is empty unless every observed
// string shared one detected format.
type String struct {
	Format string
}

// Types returns the tags of s's alternatives in emission order.
func (s *Schema) Types() []Type {
	if s == nil {
		return nil
	}
	var types []Type
	if s.Object != nil {
		types = append(types, TypeObject)
	}
	if s.Array != nil {
		types = append(types, TypeArray)
	}
	if s.String != nil {
		types = append(types, TypeString)
	}
	if s.Integer {
		types = append(types, TypeInteger)
	}
	if s.Number {
		types = append(types, TypeNumber)
	}
	if s.Boolean {
		types = append(types, TypeBoolean)
	}
	return types
}

// IsEmpty reports whether s admits nothing yet.
func (s *Schema) IsEmpty() bool {
	return s == nil || (!s.Nullable && len(s.Types()) == 0)
}

// Join returns the least schema admitting everything a or b admits. Neither
// argument is modified; either may be nil.
func Join(a, b *Schema) *Schema {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		a = &Schema{}
	}
	if b == nil {
		b = &Schema{}
	}

	out := &Schema{
		Nullable: a.Nullable || b.Nullable,
		Object:   joinObject(a.Object, b.Object),
		Array:    joinArray(a.Array, b.Array),
		String:   joinString(a.String, b.String),
		Integer:  a.Integer || b.Integer,
		Number:   a.Number || b.Number,
		Boolean:  a.Boolean || b.Boolean,
	}
	if out.Number {
		out.Integer = false
	}
	return out
}

func joinObject(a, b *Object) *Object {
	if a == nil && b == nil {
		return nil
	}
	props := make(map[string]*Schema)
	if a != nil {
		for k, v := range a.Properties {
			props[k] = v
		}
	}
	if b != nil {
		for k, v := range b.Properties {
			props[k] = Join(props[k], v)
		}
	}
	return &Object{Properties: props}
}

func joinArray(a, b *Array) *Array {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return &Array{Items: b.Items}
	case b == nil:
		return &Array{Items: a.Items}
	default:
		return &Array{Items: Join(a.Items, b.Items)}
	}
}

func joinString(a, b *String) *String {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return &String{Format: b.Format}
	case b == nil:
		return &String{Format: a.Format}
	case a.Format == b.Format:
		return &String{Format: a.Format}
	default:
		return &String{}
	}
}

// MergeValue widens existing so that it also admits value.
func MergeValue(existing *Schema, value any) *Schema {
	return Join(existing, FromValue(value))
}
