package sanitize

import (
	"regexp"
	"strings"
)

// quoteFence is the delimiter the prompt templates put around source text.
const quoteFence = `"""`

// PromptSource neutralizes user-provided text before it is embedded in a
// prompt. A fence inside the text is broken up so it cannot close the quoted
// block, and any line that starts like one of markers is wrapped in 【】 so
// the model cannot be tricked into echoing a forged section.
func PromptSource(text string, markers ...string) string {
	result := strings.ReplaceAll(text, quoteFence, `" " "`)
	for _, pattern := range markerPatterns(markers) {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			trimmed := strings.TrimLeft(match, " \t")
			return match[:len(match)-len(trimmed)] + "【" + trimmed + "】"
		})
	}
	return result
}

func markerPatterns(markers []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(markers))
	for _, m := range markers {
		name := regexp.QuoteMeta(strings.TrimSuffix(m, ":"))
		patterns = append(patterns, regexp.MustCompile(`(?mi)^[\t ]*[*#]*[\t ]*`+name+`[\t ]*\**[\t ]*:`))
	}
	return patterns
}
