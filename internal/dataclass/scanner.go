// Package dataclass tests observed values against a registry of
// sensitive-data detectors.
package dataclass

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/logging"
	"github.com/rsclarke/tracescope/internal/models"
)

// Class is the detection capability of one named data class.
type Class struct {
	Pattern    string
	StringOnly bool
}

// ClassSource fetches a tenant's custom data classes.
type ClassSource interface {
	DataClasses(ctx context.Context, tenant string) ([]models.DataClass, error)
}

// Scanner classifies values for a tenant. It is safe for concurrent use.
type Scanner struct {
	source ClassSource
	logger *zap.Logger

	// compiled caches patterns by source text; a malformed pattern is
	// stored as a nil *regexp.Regexp.
	compiled sync.Map
}

// NewScanner creates a Scanner. source may be nil when only built-in
// classes are wanted.
func NewScanner(source ClassSource, logger *zap.Logger) *Scanner {
	return &Scanner{source: source, logger: logger.Named("dataclass")}
}

// Registry returns the effective registry of tenant: the built-ins merged
// with the tenant's custom classes, which replace a built-in of the same
// name.
func (s *Scanner) Registry(ctx context.Context, tenant string) map[string]Class {
	registry := Builtins()
	if s.source == nil {
		return registry
	}
	custom, err := s.source.DataClasses(ctx, tenant)
	if err != nil {
		s.logger.Warn("failed to load custom data classes", logging.Tenant(tenant), zap.Error(err))
		return registry
	}
	for _, c := range custom {
		registry[c.Name] = Class{Pattern: c.Regex, StringOnly: c.StringOnly}
	}
	return registry
}

// Classify returns the sorted names of the classes value matches. Values
// that have no string form match nothing.
func (s *Scanner) Classify(ctx context.Context, tenant string, value any) []string {
	return s.ClassifyWith(s.Registry(ctx, tenant), value)
}

// ClassifyWith classifies value against an already loaded registry.
func (s *Scanner) ClassifyWith(registry map[string]Class, value any) []string {
	text, ok := Stringify(value)
	if !ok {
		return nil
	}
	_, isString := value.(string)

	var matched []string
	for name, c := range registry {
		if c.StringOnly && !isString {
			continue
		}
		re := s.compile(name, c.Pattern)
		if re == nil {
			continue
		}
		if re.MatchString(text) {
			matched = append(matched, name)
		}
	}
	sort.Strings(matched)
	return matched
}

func (s *Scanner) compile(name, pattern string) *regexp.Regexp {
	if v, ok := s.compiled.Load(pattern); ok {
		return v.(*regexp.Regexp)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		s.logger.Warn("skipping data class with invalid pattern",
			logging.DataClass(name),
			zap.String("pattern", pattern),
			zap.Error(err))
		re = nil
	}
	s.compiled.Store(pattern, re)
	return re
}

// Stringify converts a scalar observed value to the text detectors run
// against. Objects, arrays and null have no string form.
func Stringify(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
