package matcher

import (
	"strconv"

	"github.com/rsclarke/tracescope/internal/models"
	"github.com/rsclarke/tracescope/internal/paths"
)

// Promoter decides whether an accepted trace turns literal segments of an
// endpoint template into placeholders. It returns the new template and true
// when the template changes.
type Promoter interface {
	Promote(e *models.Endpoint, tracePath string) (string, bool)
}

// NoPromotion keeps every template as first observed.
type NoPromotion struct{}

// Promote never changes the template.
func (NoPromotion) Promote(*models.Endpoint, string) (string, bool) {
	return "", false
}

// DifferingSegmentPromoter replaces a literal template segment with a
// "{paramN}" placeholder once a trace shows a different value at that
// position and both values look like parameters.
type DifferingSegmentPromoter struct{}

// Promote rewrites e's template against tracePath.
func (DifferingSegmentPromoter) Promote(e *models.Endpoint, tracePath string) (string, bool) {
	if e.UserSpecified() {
		return "", false
	}
	template := paths.Tokenize(e.Path)
	observed := paths.Tokenize(tracePath)
	if len(template) != len(observed) {
		return "", false
	}

	taken := make(map[string]bool)
	for _, t := range template {
		if paths.IsTemplateToken(t) {
			taken[paths.TemplateName(t)] = true
		}
	}

	changed := false
	next := 1
	for i, t := range template {
		if paths.IsTemplateToken(t) || t == observed[i] {
			continue
		}
		if !paths.LooksLikeParameterValue(t) || !paths.LooksLikeParameterValue(observed[i]) {
			continue
		}
		for taken["param"+strconv.Itoa(next)] {
			next++
		}
		name := "param" + strconv.Itoa(next)
		taken[name] = true
		template[i] = "{" + name + "}"
		changed = true
	}

	if !changed {
		return "", false
	}
	return paths.Join(template), true
}

// ForConfig returns the promotion policy selected by configuration.
func ForConfig(promoteSegments bool) Promoter {
	if promoteSegments {
		return DifferingSegmentPromoter{}
	}
	return NoPromotion{}
}
