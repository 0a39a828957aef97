package intent

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/nidhogg/courier/internal/embedding"
	"go.uber.org/zap"
)

// Scorer ranks intents against free-text input: a cheap keyword/verb gate
// first, then max-similarity semantic scoring over the phrase index.
type Scorer struct {
	embedder embedding.Provider
	index    PhraseIndex
	gate     *Gate
	catalog  *Catalog
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScorer wires a scorer. timeout bounds each embedding call; zero means
// a 10s default.
func NewScorer(embedder embedding.Provider, index PhraseIndex, gate *Gate, cat *Catalog, timeout time.Duration, logger *zap.Logger) *Scorer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scorer{
		embedder: embedder,
		index:    index,
		gate:     gate,
		catalog:  cat,
		timeout:  timeout,
		logger:   logger,
	}
}

// Build precomputes the reference phrase embeddings. Called once at startup.
func (s *Scorer) Build(ctx context.Context) error {
	return s.index.Build(ctx, s.embedder, s.catalog)
}

// Intents returns the catalog's intents in order.
func (s *Scorer) Intents() []string { return s.catalog.Intents() }

// Score returns the ranked (intent, confidence) list for the input, sorted
// descending with catalog order breaking ties. An empty result means the
// gate rejected the input or scoring was unavailable; the policy turns that
// into action=none, so unscored input is never executed.
func (s *Scorer) Score(ctx context.Context, text string) []Score {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	if !s.gate.Pass(text) {
		return nil
	}

	ectx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vecs, err := s.embedder.Embed(ectx, []string{text})
	if err != nil || len(vecs) == 0 {
		s.logger.Warn("embedding unavailable, skipping semantic scoring", zap.Error(err))
		return nil
	}

	scores, err := s.index.Scores(ectx, vecs[0])
	if err != nil {
		s.logger.Warn("phrase index unavailable, skipping semantic scoring", zap.Error(err))
		return nil
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Confidence != scores[j].Confidence {
			return scores[i].Confidence > scores[j].Confidence
		}
		return s.catalog.Rank(scores[i].Intent) < s.catalog.Rank(scores[j].Intent)
	})
	return scores
}
