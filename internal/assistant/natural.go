package assistant

import (
	"regexp"
	"strings"

	"github.com/mistakeknot/stride/internal/command"
)

// Local heuristic parsing for sentences like "put buy a 2 liter container
// of milk on my tasks". Used when no translator is configured, and as the
// fallback when translation fails.

const leadVerbs = `^(?:please\s+)?(?:put|add|please put|please add|remind me to|remind me|create|i want to|i'd like to|i want|add to my list)\s+`

var (
	spaceRE    = regexp.MustCompile(`\s+`)
	leadTaskRE = regexp.MustCompile(leadVerbs + `(.+?)\s+(?:to|on)\s+(?:my\s+)?tasks\b`)
	leadRE     = regexp.MustCompile(leadVerbs + `(.+)$`)
	trailerRE  = regexp.MustCompile(`\s+(?:to|on)\s+(?:my\s+)?tasks\b`)
	quantityRE = regexp.MustCompile(`(\d+\s*(?:liters|liter|l|ml|grams|g|kg|oz|ounce|ounces|packs|pack))`)
	articleRE  = regexp.MustCompile(`^(?:a |an |the )`)
	tailPunct  = regexp.MustCompile(`[,;:\s]+$`)
)

// ParseNatural extracts a task title and optional description from a
// natural-language sentence. Best effort: if nothing matches, the whole
// sentence becomes the title.
func ParseNatural(text string) (title, description string) {
	s := spaceRE.ReplaceAllString(strings.TrimSpace(text), " ")
	lower := strings.ToLower(s)

	var content string
	if m := leadTaskRE.FindStringSubmatch(lower); m != nil {
		content = strings.TrimSpace(m[1])
	} else if m := leadRE.FindStringSubmatch(lower); m != nil {
		content = strings.TrimSpace(m[1])
	} else {
		content = strings.TrimSpace(trailerRE.ReplaceAllString(lower, ""))
	}

	// Quantity phrases ("2 liters") become the description.
	if m := quantityRE.FindStringSubmatchIndex(content); m != nil {
		description = content[m[2]:m[3]]
		content = strings.TrimSpace(content[:m[0]] + content[m[1]:])
		content = tailPunct.ReplaceAllString(content, "")
	}

	// A comma-separated tail is a short description.
	if description == "" {
		if before, after, ok := strings.Cut(content, ","); ok {
			if tail := strings.TrimSpace(after); tail != "" {
				content, description = strings.TrimSpace(before), tail
			}
		}
	}

	content = strings.TrimSpace(articleRE.ReplaceAllString(content, ""))

	title = command.FormatTitle(content)
	if title == "" {
		title = capitalize(s)
	}
	return title, description
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
