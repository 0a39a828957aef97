package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/nidhogg/courier/internal/arbiter"
	"github.com/nidhogg/courier/internal/dispatch"
	"github.com/nidhogg/courier/internal/intent"
	"github.com/nidhogg/courier/internal/provider"
	"github.com/nidhogg/courier/internal/skill"
	"github.com/nidhogg/courier/internal/store"
	"go.uber.org/zap"
)

type echoSkill struct {
	reply     string
	runs      int
	lastInput string
}

func (s *echoSkill) CheckReady() (bool, string) { return true, "" }
func (s *echoSkill) Run(_ context.Context, inv *skill.Invocation) (string, error) {
	s.runs++
	s.lastInput = inv.Input
	return s.reply, nil
}
func (s *echoSkill) Hooks() []skill.Hook { return nil }

type stubScorer struct {
	ranked []intent.Score
}

func (s *stubScorer) Score(context.Context, string) []intent.Score { return s.ranked }

type stubSelector struct {
	decision *arbiter.Decision
	resolved arbiter.Selection
	err      error
}

func (s *stubSelector) SelectSkill(context.Context, string) *arbiter.Decision { return s.decision }
func (s *stubSelector) Resolve(string, int) (arbiter.Selection, error)        { return s.resolved, s.err }

type stubGenerator struct {
	reply   string
	err     error
	history []provider.Message
	calls   int
}

func (g *stubGenerator) Generate(_ context.Context, history []provider.Message, _ string) (string, error) {
	g.calls++
	g.history = history
	return g.reply, g.err
}

type memHistory struct {
	sessions map[string]string
	messages map[string][]store.Message
}

func newMemHistory() *memHistory {
	return &memHistory{
		sessions: make(map[string]string),
		messages: make(map[string][]store.Message),
	}
}

func (h *memHistory) FindOrCreateSession(_ context.Context, platform, channelID string) (string, error) {
	key := platform + "/" + channelID
	if id, ok := h.sessions[key]; ok {
		return id, nil
	}
	id := fmt.Sprintf("session-%d", len(h.sessions)+1)
	h.sessions[key] = id
	return id, nil
}

func (h *memHistory) AppendMessage(_ context.Context, sessionID, role, content string) error {
	h.messages[sessionID] = append(h.messages[sessionID], store.Message{Role: role, Content: content})
	return nil
}

func (h *memHistory) RecentContext(_ context.Context, sessionID string, n int) ([]store.Message, error) {
	msgs := h.messages[sessionID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

func newPipeline(t *testing.T, opts Options, regs ...skill.Registration) *Pipeline {
	t.Helper()
	reg := skill.NewRegistry(zap.NewNop())
	reg.Load(regs)
	opts.Dispatcher = dispatch.New(reg, 0, zap.NewNop())
	if opts.Scorer == nil {
		opts.Scorer = &stubScorer{}
	}
	if opts.Policy == (intent.Policy{}) {
		opts.Policy = intent.DefaultPolicy()
	}
	opts.Logger = zap.NewNop()
	return New(opts)
}

func reg(name string, intents, keywords []string, s skill.Skill) skill.Registration {
	return skill.Registration{
		Name:     name,
		Intents:  intents,
		Keywords: keywords,
		New:      func() (skill.Skill, error) { return s, nil },
	}
}

func TestHandleHighConfidenceExecutes(t *testing.T) {
	clock := &echoSkill{reply: "It's noon."}
	p := newPipeline(t, Options{
		Scorer: &stubScorer{ranked: []intent.Score{{Intent: "clock", Confidence: 0.92}}},
	}, reg("clock", []string{"clock"}, nil, clock))

	r := p.Handle(context.Background(), "rest", "c1", "what time is it")
	if r.Source != SourceSkill || r.Text != "It's noon." || r.Skill != "clock" {
		t.Fatalf("got %+v, want the clock skill's reply", r)
	}
}

func TestHandleConfirmTierPrompts(t *testing.T) {
	clock := &echoSkill{reply: "It's noon."}
	p := newPipeline(t, Options{
		Scorer: &stubScorer{ranked: []intent.Score{{Intent: "clock", Confidence: 0.55}}},
	}, reg("clock", []string{"clock"}, nil, clock))

	r := p.Handle(context.Background(), "rest", "c1", "clock something maybe")
	if r.Source != SourcePrompt {
		t.Fatalf("got %+v, want a confirmation prompt", r)
	}
	if clock.runs != 0 {
		t.Errorf("skill ran %d times on a confirm tier, want 0", clock.runs)
	}
}

func TestHandleAliasBypassesScoring(t *testing.T) {
	status := &echoSkill{reply: "all good"}
	p := newPipeline(t, Options{
		Aliases: map[string]string{"!status": "system"},
	}, reg("system", []string{"system_status"}, nil, status))

	r := p.Handle(context.Background(), "rest", "c1", "!status")
	if r.Source != SourceSkill || r.Text != "all good" {
		t.Fatalf("got %+v, want the alias target's reply", r)
	}
}

func TestHandleUndecidedFallsToArbitration(t *testing.T) {
	music := &echoSkill{reply: "playing"}
	p := newPipeline(t, Options{
		Selector: &stubSelector{decision: &arbiter.Decision{SkillName: "music"}},
	}, reg("music", []string{"play_music"}, nil, music))

	r := p.Handle(context.Background(), "rest", "c1", "something ambiguous")
	if r.Source != SourceSkill || r.Text != "playing" {
		t.Fatalf("got %+v, want arbitrated skill execution", r)
	}
}

func TestHandleEscalationReturnsChoice(t *testing.T) {
	p := newPipeline(t, Options{
		Selector: &stubSelector{decision: &arbiter.Decision{
			Prompt:   "pick one",
			ChoiceID: "abc-123",
		}},
	})

	r := p.Handle(context.Background(), "rest", "c1", "something ambiguous")
	if r.Source != SourcePrompt || r.ChoiceID != "abc-123" {
		t.Fatalf("got %+v, want a choice prompt carrying the id", r)
	}
}

// arbitratedPipeline wires a pipeline to a real arbitrator over a shared
// registry, so keyword-candidate routing is exercised end to end.
func arbitratedPipeline(t *testing.T, regs ...skill.Registration) *Pipeline {
	t.Helper()
	registry := skill.NewRegistry(zap.NewNop())
	registry.Load(regs)
	return New(Options{
		Scorer:     &stubScorer{},
		Policy:     intent.DefaultPolicy(),
		Dispatcher: dispatch.New(registry, 0, zap.NewNop()),
		Selector:   arbiter.New(registry, nil, 0, zap.NewNop()),
		Logger:     zap.NewNop(),
	})
}

func TestHandleAmbiguousKeywordsEscalate(t *testing.T) {
	alpha := &echoSkill{reply: "alpha ran"}
	beta := &echoSkill{reply: "beta ran"}
	p := arbitratedPipeline(t,
		reg("alpha", []string{"alpha_things"}, []string{"play"}, alpha),
		reg("beta", []string{"beta_things"}, []string{"play"}, beta),
	)

	r := p.Handle(context.Background(), "rest", "c1", "play something by Miles Davis")
	if r.Source != SourcePrompt || r.ChoiceID == "" {
		t.Fatalf("got %+v, want a numbered choice prompt", r)
	}
	if alpha.runs != 0 || beta.runs != 0 {
		t.Fatalf("skills ran %d/%d times before disambiguation, want 0/0", alpha.runs, beta.runs)
	}

	resolved := p.ResolveChoice(context.Background(), "rest", "c1", r.ChoiceID, 2)
	if resolved.Source != SourceSkill || resolved.Skill != "beta" {
		t.Fatalf("got %+v, want the second candidate's reply", resolved)
	}
	if beta.lastInput != "play something by Miles Davis" {
		t.Errorf("chosen skill ran with input %q, want the original request", beta.lastInput)
	}
}

func TestHandleSingleKeywordCandidateExecutes(t *testing.T) {
	music := &echoSkill{reply: "playing"}
	p := arbitratedPipeline(t,
		reg("music", []string{"play_music"}, []string{"play"}, music),
		reg("weather", []string{"weather"}, []string{"forecast"}, &echoSkill{reply: "sunny"}),
	)

	r := p.Handle(context.Background(), "rest", "c1", "play something upbeat")
	if r.Source != SourceSkill || r.Skill != "music" {
		t.Fatalf("got %+v, want direct execution for a single candidate", r)
	}
	if music.lastInput != "play something upbeat" {
		t.Errorf("skill ran with input %q, want the full request", music.lastInput)
	}
}

func TestHandleMultiWordKeywordReachesKeywordScan(t *testing.T) {
	// The arbitrator's word-set overlap cannot see a two-word keyword; the
	// dispatcher's word-boundary scan still has to catch it.
	greet := &echoSkill{reply: "good morning to you"}
	p := arbitratedPipeline(t,
		reg("greet", []string{"greeting"}, []string{"good morning"}, greet),
	)

	r := p.Handle(context.Background(), "rest", "c1", "good morning everyone")
	if r.Source != SourceSkill || r.Skill != "greet" {
		t.Fatalf("got %+v, want the keyword scan to execute greet", r)
	}
}

func TestHandleGenerativeFallbackThreadsHistory(t *testing.T) {
	gen := &stubGenerator{reply: "chatting"}
	hist := newMemHistory()
	p := newPipeline(t, Options{Generator: gen, History: hist})

	p.Handle(context.Background(), "rest", "c1", "first message")
	r := p.Handle(context.Background(), "rest", "c1", "second message")
	if r.Source != SourceFallback || r.Text != "chatting" {
		t.Fatalf("got %+v, want generated reply", r)
	}
	// History holds the first exchange plus the just-persisted second input.
	if len(gen.history) != 3 {
		t.Errorf("generator saw %d history messages, want 3", len(gen.history))
	}
}

func TestHandleNoGeneratorApologizes(t *testing.T) {
	p := newPipeline(t, Options{})
	r := p.Handle(context.Background(), "rest", "c1", "mystery input")
	if r.Source != SourceNone || r.Text == "" {
		t.Fatalf("got %+v, want a canned no-match reply", r)
	}
}

func TestHandleEmptyInput(t *testing.T) {
	gen := &stubGenerator{reply: "should not run"}
	p := newPipeline(t, Options{Generator: gen})
	r := p.Handle(context.Background(), "rest", "c1", "   ")
	if r.Source != SourceNone {
		t.Fatalf("got %+v, want none", r)
	}
	if gen.calls != 0 {
		t.Errorf("generator ran %d times on empty input, want 0", gen.calls)
	}
}

func TestResolveChoiceRunsSkill(t *testing.T) {
	music := &echoSkill{reply: "playing now"}
	p := newPipeline(t, Options{
		Selector: &stubSelector{resolved: arbiter.Selection{
			SkillName: "music",
			Input:     "play some jazz",
		}},
	}, reg("music", []string{"play_music"}, nil, music))

	r := p.ResolveChoice(context.Background(), "rest", "c1", "id", 1)
	if r.Source != SourceSkill || r.Text != "playing now" {
		t.Fatalf("got %+v, want the chosen skill's reply", r)
	}
	if music.lastInput != "play some jazz" {
		t.Errorf("skill ran with input %q, want the original request", music.lastInput)
	}
}

func TestResolveChoiceAborted(t *testing.T) {
	p := newPipeline(t, Options{
		Selector: &stubSelector{err: arbiter.ErrChoiceAborted},
	})
	r := p.ResolveChoice(context.Background(), "rest", "c1", "id", 7)
	if r.Source != SourceNone {
		t.Fatalf("got %+v, want an abort reply", r)
	}
}

func TestResolveChoiceExpired(t *testing.T) {
	p := newPipeline(t, Options{
		Selector: &stubSelector{err: arbiter.ErrChoiceNotFound},
	})
	r := p.ResolveChoice(context.Background(), "rest", "c1", "id", 1)
	if r.Source != SourceNone || r.Text == "" {
		t.Fatalf("got %+v, want an expiry reply", r)
	}
}

func TestHandlePersistsTurns(t *testing.T) {
	clock := &echoSkill{reply: "It's noon."}
	hist := newMemHistory()
	p := newPipeline(t, Options{
		Scorer:  &stubScorer{ranked: []intent.Score{{Intent: "clock", Confidence: 0.92}}},
		History: hist,
	}, reg("clock", []string{"clock"}, nil, clock))

	p.Handle(context.Background(), "rest", "c1", "what time is it")

	msgs := hist.messages["session-1"]
	if len(msgs) != 2 {
		t.Fatalf("stored %d messages, want user turn plus reply", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("stored roles %s/%s, want user/assistant", msgs[0].Role, msgs[1].Role)
	}
}
