package router

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nidhogg/courier/internal/skill"
)

var (
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	mediaRe = regexp.MustCompile(`(?i)\b(?:play|watch|listen to)\s+(.+?)(?:\s+on\s+\w+)?$`)
)

// ExtractEntities pulls lightweight hints out of raw input: URLs, a media
// title after play/watch verbs, and capitalized tokens that look like proper
// nouns. Skills are free to ignore them.
func ExtractEntities(input string) []skill.Entity {
	var out []skill.Entity

	for _, u := range urlRe.FindAllString(input, -1) {
		out = append(out, skill.Entity{Type: "url", Value: strings.TrimRight(u, ".,!?")})
	}

	if m := mediaRe.FindStringSubmatch(strings.TrimSpace(input)); m != nil {
		title := strings.TrimSpace(strings.Trim(m[1], ".,!?\""))
		if title != "" {
			out = append(out, skill.Entity{Type: "media", Value: title})
		}
	}

	words := strings.Fields(input)
	for i, w := range words {
		if i == 0 {
			// A capitalized first word is usually just sentence case.
			continue
		}
		trimmed := strings.Trim(w, ".,!?\"'")
		if trimmed == "" {
			continue
		}
		r := []rune(trimmed)
		if unicode.IsUpper(r[0]) && !urlRe.MatchString(trimmed) {
			out = append(out, skill.Entity{Type: "proper_noun", Value: trimmed})
		}
	}

	return out
}
