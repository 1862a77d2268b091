// Package paths tokenizes URL paths and judges whether an observed path
// segment is a fixed route word or a dynamic parameter value.
package paths

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// invalidChars may never appear in an endpoint path.
const invalidChars = `\?<>&=`

// Validation is the outcome of ValidatePath.
type Validation struct {
	Valid bool
	// Path is the normalized path when Valid is true.
	Path string
	// Err explains why the path was rejected.
	Err string
}

// Tokenize splits path on "/" and drops the empty segments produced by
// leading, trailing and repeated slashes.
func Tokenize(path string) []string {
	parts := strings.Split(path, "/")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// IsTemplateToken reports whether token is a "{name}" placeholder.
func IsTemplateToken(token string) bool {
	return len(token) >= 2 && strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}")
}

// TemplateName returns the placeholder name of a template token.
func TemplateName(token string) string {
	if !IsTemplateToken(token) {
		return ""
	}
	return token[1 : len(token)-1]
}

// CountParameters counts the placeholder tokens of a path template.
func CountParameters(template string) int {
	n := 0
	for _, t := range Tokenize(template) {
		if IsTemplateToken(t) {
			n++
		}
	}
	return n
}

// LooksLikeParameterValue guesses whether a literal segment is data rather
// than a route word: numbers and UUIDs are data, and so is any segment with
// a "-" or "_" separated fragment missing from the dictionary.
func LooksLikeParameterValue(token string) bool {
	f, err := strconv.ParseFloat(token, 64)
	if (err == nil && !math.IsNaN(f)) || errors.Is(err, strconv.ErrRange) {
		return true
	}
	if isUUID(token) {
		return true
	}
	for _, fragment := range strings.Split(strings.ReplaceAll(token, "_", "-"), "-") {
		if !IsWord(fragment) {
			return true
		}
	}
	return false
}

// isUUID accepts only the canonical 8-4-4-4-12 textual form.
func isUUID(token string) bool {
	if len(token) != 36 {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}

// ValidatePath checks that path is a usable endpoint path and returns its
// normalized form. When requiredTokens is non-nil the normalized path must
// have exactly that many tokens.
func ValidatePath(path string, requiredTokens *int) Validation {
	if path == "" {
		return Validation{Err: "path is empty"}
	}
	if !strings.HasPrefix(path, "/") {
		return Validation{Err: "path must start with /"}
	}
	if i := strings.IndexAny(path, invalidChars); i != -1 {
		return Validation{Err: "path contains invalid character " + strconv.Quote(path[i:i+1])}
	}

	empty := 0
	for _, p := range strings.Split(path, "/") {
		if p == "" {
			empty++
		}
	}
	if empty > 2 {
		return Validation{Err: "path contains too many empty segments"}
	}

	tokens := Tokenize(path)
	if requiredTokens != nil && len(tokens) != *requiredTokens {
		return Validation{Err: "path must have " + strconv.Itoa(*requiredTokens) + " segments, got " + strconv.Itoa(len(tokens))}
	}

	return Validation{Valid: true, Path: "/" + strings.Join(tokens, "/")}
}

// Join rebuilds a path from tokens.
func Join(tokens []string) string {
	return "/" + strings.Join(tokens, "/")
}
