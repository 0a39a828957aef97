package skill

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Skill is the capability interface every registered skill implements.
// A skill may additionally expose named periodic hooks that the background
// monitor invokes between requests.
type Skill interface {
	// CheckReady reports whether the skill can run right now. The second
	// return value carries the reason when it cannot (missing credentials,
	// unreachable backend).
	CheckReady() (bool, string)
	// Run executes the capability. An empty result with a nil error means
	// the skill declined the input and the next candidate should be tried.
	Run(ctx context.Context, inv *Invocation) (string, error)
	// Hooks returns the skill's periodic hooks. Most skills return nil.
	Hooks() []Hook
}

// Hook is a named periodic maintenance function.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Invocation carries the matched intent context into a skill run.
type Invocation struct {
	Input      string
	Intent     string
	Confidence float64
	Entities   []Entity
}

// Entity is a lightweight extraction from the raw input (URL, media name,
// capitalized token). Skills may ignore it.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Descriptor binds a registered skill to its routing metadata. Descriptors
// are immutable after registration; only the skill's own internal state may
// change, and all access to that state is serialized through the descriptor
// so a monitor hook and a concurrent Run never race on the same instance.
type Descriptor struct {
	Name     string
	Keywords []string
	Intents  []string

	keywordRe *regexp.Regexp
	impl      Skill
	mu        sync.Mutex
}

// compileKeywordMatcher builds one word-boundary pattern covering every
// keyword, compiled once at registration. Returns nil for an empty set.
func compileKeywordMatcher(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// MatchesKeyword reports whether any registered keyword appears as a whole
// word in the input. The input must already be lowercased.
func (d *Descriptor) MatchesKeyword(input string) bool {
	return d.keywordRe != nil && d.keywordRe.MatchString(input)
}

// CheckReady reports the underlying skill's readiness.
func (d *Descriptor) CheckReady() (bool, string) {
	return d.impl.CheckReady()
}

// Run invokes the skill under the descriptor's lock. A panic inside the
// skill is converted to an error so the dispatcher can fall through to the
// next candidate.
func (d *Descriptor) Run(ctx context.Context, inv *Invocation) (out string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("skill %s panicked: %v", d.Name, r)
		}
	}()
	return d.impl.Run(ctx, inv)
}

// Hooks returns the skill's periodic hooks.
func (d *Descriptor) Hooks() []Hook {
	return d.impl.Hooks()
}

// RunHook invokes one periodic hook under the descriptor's lock, converting
// panics to errors so one misbehaving hook cannot take down the monitor.
func (d *Descriptor) RunHook(ctx context.Context, h Hook) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s/%s panicked: %v", d.Name, h.Name, r)
		}
	}()
	return h.Fn(ctx)
}
