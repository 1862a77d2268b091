package schema

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	v, ok := ParseStructured(raw)
	require.True(t, ok, "expected structured JSON: %s", raw)
	return v
}

func encode(t *testing.T, s *Schema) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func TestMergeValueScalars(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "hello", `{"type":"string"}`},
		{"integer", json.Number("42"), `{"type":"integer"}`},
		{"number", json.Number("4.2"), `{"type":"number"}`},
		{"whole float", float64(3), `{"type":"integer"}`},
		{"boolean", true, `{"type":"boolean"}`},
		{"null", nil, `{"nullable":true}`},
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", `{"type":"string","format":"uuid"}`},
		{"date", "2024-01-31", `{"type":"string","format":"date"}`},
		{"date-time", "2024-01-31T10:00:00Z", `{"type":"string","format":"date-time"}`},
		{"ipv4", "10.0.0.1", `{"type":"string","format":"ipv4"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encode(t, MergeValue(nil, tt.value)))
		})
	}
}

func TestMergeValueObject(t *testing.T) {
	s := MergeValue(nil, decode(t, `{"id":1,"name":"a","tags":["x"],"meta":{"ok":true}}`))

	assert.Equal(t,
		`{"type":"object","properties":{"id":{"type":"integer"},"meta":{"type":"object","properties":{"ok":{"type":"boolean"}}},"name":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}}}}`,
		encode(t, s))
}

func TestMergeValueAddsUnseenKeys(t *testing.T) {
	s := MergeValue(nil, decode(t, `{"a":1}`))
	s = MergeValue(s, decode(t, `{"b":"x"}`))

	require.NotNil(t, s.Object)
	assert.Len(t, s.Object.Properties, 2)
	assert.True(t, s.Object.Properties["a"].Integer)
	require.NotNil(t, s.Object.Properties["b"].String)
}

func TestMergeValueIdempotent(t *testing.T) {
	values := []any{
		"hello",
		json.Number("7"),
		nil,
		decode(t, `{"user":{"email":"a@b.com","age":30},"items":[1,2.5,"x"]}`),
		decode(t, `[]`),
	}

	for _, v := range values {
		once := MergeValue(nil, v)
		twice := MergeValue(once, v)
		assert.Equal(t, once, twice)
		assert.Equal(t, encode(t, once), encode(t, twice))
	}
}

func TestMergeValueOrderInsensitive(t *testing.T) {
	pairs := [][2]any{
		{json.Number("1"), "one"},
		{json.Number("1"), json.Number("1.5")},
		{"2024-01-31", "plain"},
		{nil, true},
		{decode(t, `{"a":1,"b":{"c":"x"}}`), decode(t, `{"b":{"c":2,"d":null},"e":[true]}`)},
		{decode(t, `[1,"a"]`), decode(t, `[{"k":1}]`)},
		{decode(t, `{"a":1}`), decode(t, `[1]`)},
	}

	for _, p := range pairs {
		ab := MergeValue(MergeValue(nil, p[0]), p[1])
		ba := MergeValue(MergeValue(nil, p[1]), p[0])
		assert.Equal(t, encode(t, ab), encode(t, ba))
	}
}

func TestJoinAssociative(t *testing.T) {
	a := FromValue(decode(t, `{"x":1,"y":["a"]}`))
	b := FromValue(decode(t, `{"x":"s","y":[]}`))
	c := FromValue(decode(t, `{"x":2.5,"z":null}`))

	left := Join(Join(a, b), c)
	right := Join(a, Join(b, c))
	assert.Equal(t, encode(t, left), encode(t, right))
}

func TestMergeValueTypeConflictKeepsBoth(t *testing.T) {
	s := MergeValue(nil, json.Number("1"))
	s = MergeValue(s, "one")

	assert.Equal(t, []Type{TypeString, TypeInteger}, s.Types())
	assert.Equal(t, `{"oneOf":[{"type":"string"},{"type":"integer"}]}`, encode(t, s))
}

func TestMergeValueIntegerWidensToNumber(t *testing.T) {
	s := MergeValue(nil, json.Number("1"))
	s = MergeValue(s, json.Number("1.5"))
	assert.Equal(t, `{"type":"number"}`, encode(t, s))

	s = MergeValue(s, json.Number("2"))
	assert.Equal(t, `{"type":"number"}`, encode(t, s))
}

func TestMergeValueDifferingFormatsDropFormat(t *testing.T) {
	s := MergeValue(nil, "2024-01-31")
	s = MergeValue(s, "2024-02-01")
	assert.Equal(t, FormatDate, s.String.Format)

	s = MergeValue(s, "not a date")
	assert.Equal(t, "", s.String.Format)
}

func TestMergeValueNullable(t *testing.T) {
	s := MergeValue(nil, "x")
	s = MergeValue(s, nil)
	assert.Equal(t, `{"type":"string","nullable":true}`, encode(t, s))
}

func TestSchemaJSONRoundTrip(t *testing.T) {
	s := MergeValue(nil, decode(t, `{"a":[1,"x"],"b":null,"c":{"d":"2024-01-31"},"e":[]}`))
	s = MergeValue(s, decode(t, `[true]`))
	encoded := encode(t, s)

	var decoded Schema
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	assert.Equal(t, encoded, encode(t, &decoded))

	// Merging into a decoded schema behaves like merging into the original.
	v := decode(t, `{"a":[false]}`)
	assert.Equal(t, encode(t, MergeValue(s, v)), encode(t, MergeValue(&decoded, v)))
}

func TestMergeContent(t *testing.T) {
	var content map[string]*MediaType

	content = MergeContent(content, "", "application/json")
	assert.Nil(t, content, "empty body contributes nothing")

	content = MergeContent(content, `{"ssn":"123-45-6789"}`, "Application/JSON ")
	require.Contains(t, content, "application/json")
	assert.Equal(t,
		`{"type":"object","properties":{"ssn":{"type":"string"}}}`,
		encode(t, content["application/json"].Schema))

	content = MergeContent(content, "plain text body", "")
	require.Contains(t, content, UnknownContentType)
	assert.Equal(t, `{"type":"string"}`, encode(t, content[UnknownContentType].Schema))
}

func TestMergeContentNonJSONIsOpaque(t *testing.T) {
	content := MergeContent(nil, "2024-01-31", "text/plain")
	assert.Equal(t, `{"type":"string"}`, encode(t, content["text/plain"].Schema))

	content = MergeContent(nil, `{"broken":`, "application/json")
	assert.Equal(t, `{"type":"string"}`, encode(t, content["application/json"].Schema))
}

func TestParseParamValue(t *testing.T) {
	assert.Equal(t, "42", ParseParamValue("42"))
	assert.Equal(t, "plain", ParseParamValue("plain"))
	assert.Equal(t, map[string]any{"a": json.Number("1")}, ParseParamValue(`{"a":1}`))
}

func TestContentKey(t *testing.T) {
	assert.Equal(t, UnknownContentType, ContentKey(""))
	assert.Equal(t, UnknownContentType, ContentKey("   "))
	assert.Equal(t, "application/json; charset=utf-8", ContentKey(" Application/JSON; charset=UTF-8"))
}
