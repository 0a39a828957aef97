package arbiter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/courier/internal/skill"
	"go.uber.org/zap"
)

// Classifier picks one candidate skill name for an input. Implementations
// usually wrap a language model; the returned text only has to mention the
// chosen skill's name somewhere.
type Classifier interface {
	Classify(ctx context.Context, input string, candidates []string) (string, error)
}

// ErrChoiceNotFound is returned when resolving an unknown or expired choice.
var ErrChoiceNotFound = errors.New("arbiter: choice not found or expired")

// ErrChoiceAborted is returned when the user picks an out-of-range option.
// The pending choice is discarded and nothing executes.
var ErrChoiceAborted = errors.New("arbiter: choice aborted")

// Decision is the arbitrator's answer for one input. Exactly one of
// SkillName or Prompt is set: either a skill was selected, or the user must
// pick from a numbered list tracked under ChoiceID.
type Decision struct {
	SkillName string
	Prompt    string
	ChoiceID  string
}

// Selection is a consumed pending choice: the picked skill plus the input
// that originally triggered the escalation, so the skill runs against the
// user's actual request.
type Selection struct {
	SkillName string
	Input     string
}

type pendingChoice struct {
	input      string
	candidates []string
	expires    time.Time
}

// Arbitrator resolves inputs the scorer could not decide. It narrows the
// registry to keyword-overlap candidates, asks the classifier to pick one,
// and escalates to an explicit user choice when classification fails.
type Arbitrator struct {
	registry   *skill.Registry
	classifier Classifier
	ttl        time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[string]pendingChoice
}

// New creates an arbitrator. classifier may be nil, in which case every
// multi-candidate input escalates straight to a user choice. ttl bounds how
// long a pending choice stays resolvable; zero means 2 minutes.
func New(registry *skill.Registry, classifier Classifier, ttl time.Duration, logger *zap.Logger) *Arbitrator {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Arbitrator{
		registry:   registry,
		classifier: classifier,
		ttl:        ttl,
		logger:     logger,
		pending:    make(map[string]pendingChoice),
	}
}

// SelectSkill arbitrates one undecided input. It returns nil when no skill
// has any keyword overlap with the input, meaning the caller should hand the
// input to the generative fallback instead.
func (a *Arbitrator) SelectSkill(ctx context.Context, input string) *Decision {
	candidates := a.candidates(input)
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return &Decision{SkillName: candidates[0]}
	}

	if a.classifier != nil {
		if name, ok := a.classify(ctx, input, candidates); ok {
			return &Decision{SkillName: name}
		}
	}

	return a.escalate(input, candidates)
}

// candidates scores every registered skill by how many of its keywords
// appear as words in the input, and returns the names of all skills with a
// positive score, best first. Ties keep registration order.
func (a *Arbitrator) candidates(input string) []string {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(input)) {
		words[strings.Trim(w, ".,!?;:'\"")] = struct{}{}
	}

	type scored struct {
		name  string
		score int
		order int
	}
	var hits []scored
	for i, d := range a.registry.All() {
		n := 0
		for _, kw := range d.Keywords {
			if _, ok := words[kw]; ok {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{name: d.Name, score: n, order: i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

// classify asks the model to pick a candidate and matches its answer by
// case-insensitive substring against the candidate names. A failed call or
// an answer naming none of the candidates reports ok=false.
func (a *Arbitrator) classify(ctx context.Context, input string, candidates []string) (string, bool) {
	answer, err := a.classifier.Classify(ctx, input, candidates)
	if err != nil {
		a.logger.Warn("arbitration classify failed, escalating to user",
			zap.Error(err))
		return "", false
	}
	lower := strings.ToLower(answer)
	for _, c := range candidates {
		if strings.Contains(lower, strings.ToLower(c)) {
			return c, true
		}
	}
	a.logger.Warn("classifier answer matched no candidate",
		zap.String("answer", answer),
		zap.Strings("candidates", candidates))
	return "", false
}

// escalate records a pending choice and builds the numbered prompt.
func (a *Arbitrator) escalate(input string, candidates []string) *Decision {
	id := uuid.NewString()

	a.mu.Lock()
	a.prune(time.Now())
	a.pending[id] = pendingChoice{
		input:      input,
		candidates: candidates,
		expires:    time.Now().Add(a.ttl),
	}
	a.mu.Unlock()

	var b strings.Builder
	b.WriteString("I'm not sure which action you meant:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, c)
	}
	b.WriteString("Reply with a number to pick one.")

	return &Decision{Prompt: b.String(), ChoiceID: id}
}

// Resolve consumes a pending choice. choice is 1-based, as presented in the
// prompt. An unknown or expired id yields ErrChoiceNotFound; an out-of-range
// choice discards the pending entry and yields ErrChoiceAborted.
func (a *Arbitrator) Resolve(id string, choice int) (Selection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[id]
	if !ok || time.Now().After(p.expires) {
		delete(a.pending, id)
		return Selection{}, ErrChoiceNotFound
	}
	delete(a.pending, id)

	if choice < 1 || choice > len(p.candidates) {
		return Selection{}, ErrChoiceAborted
	}
	return Selection{SkillName: p.candidates[choice-1], Input: p.input}, nil
}

// prune drops expired pending choices. Caller holds the lock.
func (a *Arbitrator) prune(now time.Time) {
	for id, p := range a.pending {
		if now.After(p.expires) {
			delete(a.pending, id)
		}
	}
}

// PendingCount reports how many unanswered choices are outstanding.
func (a *Arbitrator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prune(time.Now())
	return len(a.pending)
}
