package intent

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	fail    bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]CatalogEntry{
		{Intent: "play_music", Phrases: []string{"play music", "play song"}},
		{Intent: "weather", Phrases: []string{"weather forecast"}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func newTestScorer(t *testing.T, emb *fakeEmbedder) *Scorer {
	t.Helper()
	cat := testCatalog(t)
	gate := NewGate([]string{"music", "song", "weather"}, cat, nil)
	s := NewScorer(emb, NewMemoryIndex(), gate, cat, 0, zap.NewNop())
	if err := s.Build(context.Background()); err != nil {
		t.Fatalf("build index: %v", err)
	}
	return s
}

func TestScoreRanksByMaxPhraseSimilarity(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		// One music phrase is orthogonal to the input, the other identical.
		// Max (not average) must keep play_music at 1.0.
		"play music":       {1, 0, 0},
		"play song":        {0, 1, 0},
		"weather forecast": {0.5, 0.5, 0},
		"play some song":   {0, 1, 0},
	}}
	s := newTestScorer(t, emb)

	scores := s.Score(context.Background(), "play some song")
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0].Intent != "play_music" {
		t.Fatalf("top intent %q, want play_music", scores[0].Intent)
	}
	if scores[0].Confidence < 0.999 {
		t.Errorf("max similarity should win: got %v, want ~1.0", scores[0].Confidence)
	}
}

func TestScoreGateShortCircuitsConversationalInput(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	s := newTestScorer(t, emb)

	// No keyword, first word not an imperative verb.
	if got := s.Score(context.Background(), "how was your day"); got != nil {
		t.Fatalf("expected empty result for gated input, got %v", got)
	}
	if got := s.Score(context.Background(), ""); got != nil {
		t.Fatalf("expected empty result for blank input, got %v", got)
	}
}

func TestScoreImperativeVerbPassesGate(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"play music":       {1, 0, 0},
		"play song":        {1, 0, 0},
		"weather forecast": {0, 1, 0},
	}}
	s := newTestScorer(t, emb)

	// "launch" is a verb, not a registered keyword.
	scores := s.Score(context.Background(), "launch something")
	if len(scores) == 0 {
		t.Fatal("imperative first word should pass the gate")
	}
}

func TestScoreEmbedderFailureReturnsEmpty(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"play music":       {1, 0, 0},
		"play song":        {1, 0, 0},
		"weather forecast": {0, 1, 0},
	}}
	s := newTestScorer(t, emb)

	emb.fail = true
	if got := s.Score(context.Background(), "play music"); got != nil {
		t.Fatalf("expected empty ranking when embedding fails, got %v", got)
	}
}

func TestScoreTieBrokenByCatalogOrder(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"play music":       {1, 0, 0},
		"play song":        {1, 0, 0},
		"weather forecast": {1, 0, 0},
	}}
	s := newTestScorer(t, emb)

	scores := s.Score(context.Background(), "play music")
	if scores[0].Intent != "play_music" || scores[1].Intent != "weather" {
		t.Fatalf("tie should preserve catalog order, got %v", scores)
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); got != 1 {
		t.Errorf("identical vectors: got %v, want 1", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}
	// Opposed vectors clamp to zero, keeping confidence in [0,1].
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); got != 0 {
		t.Errorf("opposed vectors: got %v, want 0", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 0}); got != 0 {
		t.Errorf("mismatched lengths: got %v, want 0", got)
	}
}
