// Package matcher decides whether an observed trace path belongs to an
// existing endpoint template or should seed a new endpoint.
package matcher

import (
	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/paths"
)

// Match reports whether tracePath may be folded into e. The caller
// guarantees that both have the same token count.
//
// Endpoints governed by a user-provided document always accept: their
// templates are authoritative.
func Match(e *models.Endpoint, tracePath string) bool {
	if e.UserSpecified() {
		return true
	}

	suspected := 0
	for _, token := range paths.Tokenize(tracePath) {
		if paths.LooksLikeParameterValue(token) {
			suspected++
		}
	}

	if suspected < e.NumberParams {
		return false
	}
	if suspected == 0 && tracePath != e.Path {
		return false
	}
	return true
}

// Compatible reports whether the template of e could describe tracePath at
// all: every position is a placeholder, an identical literal, or two values
// that both look like parameters.
func Compatible(e *models.Endpoint, tracePath string) bool {
	template := paths.Tokenize(e.Path)
	observed := paths.Tokenize(tracePath)
	if len(template) != len(observed) {
		return false
	}
	for i, t := range template {
		switch {
		case paths.IsTemplateToken(t):
		case t == observed[i]:
		case paths.LooksLikeParameterValue(t) && paths.LooksLikeParameterValue(observed[i]):
		default:
			return false
		}
	}
	return true
}

// Find returns the first candidate that accepts tracePath, or nil when a new
// endpoint is needed. Candidates are expected most specific first.
func Find(candidates []models.Endpoint, tracePath string) *models.Endpoint {
	for i := range candidates {
		e := &candidates[i]
		if !Compatible(e, tracePath) {
			continue
		}
		if Match(e, tracePath) {
			return e
		}
	}
	return nil
}

// NewEndpoint builds the endpoint seeded by an unmatched trace: its template
// is the normalized literal path and no parameters are asserted yet.
func NewEndpoint(host, method, normalizedPath string) *models.Endpoint {
	return &models.Endpoint{
		Host:         host,
		Path:         normalizedPath,
		Method:       method,
		NumberParams: 0,
	}
}
