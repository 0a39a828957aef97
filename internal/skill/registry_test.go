package skill

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

type stubSkill struct {
	ready  bool
	reason string
	out    string
	err    error
	runs   int
	hooks  []Hook
}

func (s *stubSkill) CheckReady() (bool, string) { return s.ready, s.reason }

func (s *stubSkill) Run(_ context.Context, _ *Invocation) (string, error) {
	s.runs++
	return s.out, s.err
}

func (s *stubSkill) Hooks() []Hook { return s.hooks }

func reg(name string, intents []string, impl Skill) Registration {
	return Registration{
		Name:    name,
		Intents: intents,
		New:     func() (Skill, error) { return impl, nil },
	}
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	loaded := r.Load([]Registration{
		reg("clock", []string{"clock"}, &stubSkill{ready: true}),
		{Name: "no-intents", New: func() (Skill, error) { return &stubSkill{}, nil }},
		{Name: "", Intents: []string{"x"}, New: func() (Skill, error) { return &stubSkill{}, nil }},
		{Name: "boom", Intents: []string{"x"}, New: func() (Skill, error) { return nil, fmt.Errorf("nope") }},
		reg("clock", []string{"clock"}, &stubSkill{}), // duplicate
		reg("weather", []string{"weather"}, &stubSkill{ready: true}),
	})

	if loaded != 2 {
		t.Fatalf("got %d loaded, want 2", loaded)
	}
	if len(r.All()) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(r.All()))
	}
}

func TestLookupPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Load([]Registration{
		reg("first", []string{"play_music"}, &stubSkill{}),
		reg("second", []string{"play_music", "pause"}, &stubSkill{}),
		reg("other", []string{"weather"}, &stubSkill{}),
	})

	got := r.Lookup("play_music")
	if len(got) != 2 {
		t.Fatalf("got %d skills, want 2", len(got))
	}
	if got[0].Name != "first" || got[1].Name != "second" {
		t.Errorf("lookup order = [%s, %s], want [first, second]", got[0].Name, got[1].Name)
	}
	if len(r.Lookup("unknown")) != 0 {
		t.Error("expected no skills for unknown intent")
	}
}

func TestLookupByNameCaseInsensitive(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Load([]Registration{reg("Clock", []string{"clock"}, &stubSkill{})})

	if _, ok := r.LookupByName("clock"); !ok {
		t.Error("expected lowercase lookup to match")
	}
	if _, ok := r.LookupByName("  CLOCK "); !ok {
		t.Error("expected trimmed uppercase lookup to match")
	}
	if _, ok := r.LookupByName("clocks"); ok {
		t.Error("expected partial name not to match")
	}
}

func TestDescriptorMatchesKeyword(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Load([]Registration{{
		Name:     "music",
		Intents:  []string{"play_music"},
		Keywords: []string{"Song", "play"},
		New:      func() (Skill, error) { return &stubSkill{}, nil },
	}})

	d, _ := r.LookupByName("music")
	if d.keywordRe == nil {
		t.Fatal("keyword matcher not compiled at registration")
	}
	if !d.MatchesKeyword("play that song again") {
		t.Error("expected whole-word keyword to match")
	}
	// A keyword inside a longer token must not match.
	if d.MatchesKeyword("i like songbirds") {
		t.Error("matched a non-boundary occurrence")
	}

	r.Load([]Registration{reg("plain", []string{"x"}, &stubSkill{})})
	p, _ := r.LookupByName("plain")
	if p.MatchesKeyword("anything") {
		t.Error("descriptor without keywords must never match")
	}
}

func TestDescriptorRunRecoversPanic(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	panicky := Registration{
		Name:    "panicky",
		Intents: []string{"x"},
		New: func() (Skill, error) {
			return &panicSkill{}, nil
		},
	}
	r.Load([]Registration{panicky})

	d, _ := r.LookupByName("panicky")
	_, err := d.Run(context.Background(), &Invocation{Input: "boom"})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

type panicSkill struct{}

func (p *panicSkill) CheckReady() (bool, string) { return true, "" }
func (p *panicSkill) Run(context.Context, *Invocation) (string, error) {
	panic("kaboom")
}
func (p *panicSkill) Hooks() []Hook { return nil }
