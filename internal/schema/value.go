package schema

import (
	"math"
	"net/netip"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// String formats recognised on observed values.
const (
	FormatDateTime = "date-time"
	FormatDate     = "date"
	FormatUUID     = "uuid"
	FormatIPv4     = "ipv4"
	FormatIPv6     = "ipv6"
)

// FromValue returns the schema admitting exactly the shape of one decoded
// value. Values outside the JSON data model contribute nothing.
func FromValue(value any) *Schema {
	switch v := value.(type) {
	case nil:
		return &Schema{Nullable: true}
	case string:
		return &Schema{String: &String{Format: DetectFormat(v)}}
	case bool:
		return &Schema{Boolean: true}
	case json.Number:
		if isIntegerLiteral(v.String()) {
			return &Schema{Integer: true}
		}
		return &Schema{Number: true}
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return &Schema{Integer: true}
		}
		return &Schema{Number: true}
	case int, int64:
		return &Schema{Integer: true}
	case map[string]any:
		props := make(map[string]*Schema, len(v))
		for k, child := range v {
			props[k] = FromValue(child)
		}
		return &Schema{Object: &Object{Properties: props}}
	case []any:
		var items *Schema
		for _, child := range v {
			items = Join(items, FromValue(child))
		}
		return &Schema{Array: &Array{Items: items}}
	default:
		return &Schema{}
	}
}

func isIntegerLiteral(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".eE")
}

// DetectFormat returns the well-known format of s, or "".
func DetectFormat(s string) string {
	switch {
	case len(s) == 36 && isUUID(s):
		return FormatUUID
	case isDateTime(s):
		return FormatDateTime
	case isDate(s):
		return FormatDate
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		if addr.Is4() {
			return FormatIPv4
		}
		return FormatIPv6
	}
	return ""
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func isDateTime(s string) bool {
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}

func isDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
