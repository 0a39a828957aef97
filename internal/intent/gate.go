package intent

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// defaultImperativeVerbs is the small fixed verb list that lets a command
// like "open the door" through the gate even when no keyword matched.
var defaultImperativeVerbs = []string{
	"open", "launch", "start", "play",
	"search", "watch", "stream", "show",
	"set", "list", "type", "move",
	"delete", "rename", "copy", "check",
}

// Gate is the cheap pre-filter applied before semantic scoring. It matches
// the registered vocabulary with an Aho-Corasick automaton, so a pass/fail
// answer costs one scan of the input regardless of vocabulary size.
type Gate struct {
	matcher *ahocorasick.Matcher
	verbs   map[string]struct{}
}

// NewGate builds a gate from the skill keyword vocabulary, the catalog's
// single-word phrases, and the imperative verb list. A nil or empty verb
// list falls back to the default set.
func NewGate(keywords []string, cat *Catalog, verbs []string) *Gate {
	if len(verbs) == 0 {
		verbs = defaultImperativeVerbs
	}

	verbSet := make(map[string]struct{}, len(verbs))
	for _, v := range verbs {
		verbSet[strings.ToLower(v)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var patterns []string
	add := func(p string) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		patterns = append(patterns, p)
	}

	for _, k := range keywords {
		add(k)
	}
	if cat != nil {
		for _, intent := range cat.Intents() {
			for _, phrase := range cat.Phrases(intent) {
				// Single-word phrases double as gate keywords, as do the
				// individual words of longer phrases.
				for _, w := range strings.Fields(phrase) {
					if len(w) > 2 {
						add(w)
					}
				}
			}
		}
	}
	for v := range verbSet {
		add(v)
	}

	return &Gate{
		matcher: ahocorasick.NewStringMatcher(patterns),
		verbs:   verbSet,
	}
}

// Pass reports whether the input deserves semantic scoring: either the
// automaton found a vocabulary hit, or the first word is an imperative verb.
func (g *Gate) Pass(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	if hits := g.matcher.Match([]byte(text)); len(hits) > 0 {
		return true
	}
	first := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	})
	if len(first) == 0 {
		return false
	}
	_, ok := g.verbs[first[0]]
	return ok
}
