package response

import (
	"regexp"
	"strings"

	"fiche-livre/backend/internal/agent/prompt"
	"fiche-livre/backend/internal/model"
)

// section pairs a marker with the regex that finds it at the start of a line.
// Markdown decoration ("**META:**", "## META :") is tolerated because models
// add it often enough.
type section struct {
	marker  string
	pattern *regexp.Regexp
}

var productSheetSections = newSections(prompt.Markers())

func newSections(markers []string) []section {
	out := make([]section, 0, len(markers))
	for _, m := range markers {
		name := regexp.QuoteMeta(strings.TrimSuffix(m, ":"))
		out = append(out, section{
			marker:  m,
			pattern: regexp.MustCompile(`(?mi)^[\t ]*[*#]*[\t ]*` + name + `[\t ]*\**[\t ]*:[\t ]*\**`),
		})
	}
	return out
}

// Parse shapes a raw completion into a GenerationResult for mode. Critique
// and translation take the whole trimmed completion. Product-sheet output is
// split on its markers; a section whose marker is missing comes back empty.
func Parse(mode model.Mode, completion string) model.GenerationResult {
	switch mode {
	case model.ModeCritique:
		return model.GenerationResult{CritiqueText: strings.TrimSpace(completion)}
	case model.ModeTranslation:
		return model.GenerationResult{TranslationText: strings.TrimSpace(completion)}
	}

	bodies := splitSections(completion)
	return model.GenerationResult{
		FicheText:      bodies[prompt.MarkerFiche],
		MetaText:       bodies[prompt.MarkerMeta],
		NewsletterText: bodies[prompt.MarkerNewsletter],
	}
}

// splitSections extracts every product-sheet section body keyed by marker. Each
// body runs from the end of its marker to the start of the next marker found
// after it, or to the end of the text.
func splitSections(text string) map[string]string {
	type hit struct {
		marker     string
		start, end int
	}

	var hits []hit
	for _, s := range productSheetSections {
		if loc := s.pattern.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{marker: s.marker, start: loc[0], end: loc[1]})
		}
	}

	bodies := make(map[string]string, len(productSheetSections))
	for _, s := range productSheetSections {
		bodies[s.marker] = ""
	}
	for _, h := range hits {
		stop := len(text)
		for _, other := range hits {
			if other.start >= h.end && other.start < stop {
				stop = other.start
			}
		}
		bodies[h.marker] = strings.TrimSpace(text[h.end:stop])
	}
	return bodies
}
