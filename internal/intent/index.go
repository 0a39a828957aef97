package intent

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/nidhogg/courier/internal/embedding"
	"github.com/nidhogg/courier/internal/vectorstore"
	"go.uber.org/zap"
)

// PhraseIndex answers "how similar is this input vector to each intent's
// best reference phrase". An intent's score is the MAXIMUM similarity across
// its phrases, never the average — one canonical phrasing matching well is
// enough.
type PhraseIndex interface {
	Build(ctx context.Context, embedder embedding.Provider, cat *Catalog) error
	Scores(ctx context.Context, vec []float32) ([]Score, error)
}

// MemoryIndex keeps the reference embeddings in process memory. This is the
// default backend and plenty for catalogs of a few hundred phrases.
type MemoryIndex struct {
	intents []string
	vecs    map[string][][]float32
}

// NewMemoryIndex creates an empty in-memory phrase index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vecs: make(map[string][][]float32)}
}

// Build embeds every catalog phrase once. Called at startup.
func (m *MemoryIndex) Build(ctx context.Context, embedder embedding.Provider, cat *Catalog) error {
	for _, intent := range cat.Intents() {
		phrases := cat.Phrases(intent)
		vecs, err := embedder.Embed(ctx, phrases)
		if err != nil {
			return fmt.Errorf("embed phrases for %s: %w", intent, err)
		}
		if len(vecs) != len(phrases) {
			return fmt.Errorf("embed phrases for %s: got %d vectors for %d phrases", intent, len(vecs), len(phrases))
		}
		m.intents = append(m.intents, intent)
		m.vecs[intent] = vecs
	}
	return nil
}

// Scores computes the per-intent max cosine similarity against vec.
func (m *MemoryIndex) Scores(_ context.Context, vec []float32) ([]Score, error) {
	out := make([]Score, 0, len(m.intents))
	for _, intent := range m.intents {
		best := 0.0
		for _, ref := range m.vecs[intent] {
			if s := Cosine(vec, ref); s > best {
				best = s
			}
		}
		out = append(out, Score{Intent: intent, Confidence: best})
	}
	return out, nil
}

// QdrantIndex keeps the reference embeddings in a Qdrant collection. Large
// catalogs get sub-linear nearest-neighbor lookups; the per-intent max falls
// out of grouping the hits by their intent payload.
type QdrantIndex struct {
	client     *vectorstore.Client
	collection string
	intents    []string
	phrases    int
	logger     *zap.Logger
}

// NewQdrantIndex creates a phrase index backed by the given collection.
func NewQdrantIndex(client *vectorstore.Client, collection string, logger *zap.Logger) *QdrantIndex {
	return &QdrantIndex{client: client, collection: collection, logger: logger}
}

// Build recreates the collection and upserts one point per reference phrase
// with the owning intent in the payload.
func (q *QdrantIndex) Build(ctx context.Context, embedder embedding.Provider, cat *Catalog) error {
	dim := uint64(embedder.Dimension())
	if dim == 0 {
		return fmt.Errorf("embedding dimension unknown, cannot build index")
	}
	if err := q.client.ResetCollection(ctx, q.collection, dim); err != nil {
		return fmt.Errorf("reset collection %s: %w", q.collection, err)
	}

	var points []vectorstore.Point
	n := 0
	for _, intent := range cat.Intents() {
		phrases := cat.Phrases(intent)
		vecs, err := embedder.Embed(ctx, phrases)
		if err != nil {
			return fmt.Errorf("embed phrases for %s: %w", intent, err)
		}
		q.intents = append(q.intents, intent)
		for i, v := range vecs {
			points = append(points, vectorstore.Point{
				ID:     deterministicPhraseID(intent, i),
				Vector: v,
				Payload: map[string]string{
					"intent": intent,
					"phrase": phrases[i],
				},
			})
			n++
		}
	}
	q.phrases = n
	if err := q.client.UpsertBatch(ctx, q.collection, points); err != nil {
		return fmt.Errorf("upsert %d phrase points: %w", n, err)
	}
	q.logger.Info("phrase index built",
		zap.String("collection", q.collection),
		zap.Int("phrases", n))
	return nil
}

// Scores searches the whole phrase set and keeps the best hit per intent.
// Intents with no returned hit score zero, keeping the ranking complete.
func (q *QdrantIndex) Scores(ctx context.Context, vec []float32) ([]Score, error) {
	hits, err := q.client.Search(ctx, q.collection, vec, uint64(q.phrases))
	if err != nil {
		return nil, fmt.Errorf("search phrase index: %w", err)
	}
	best := make(map[string]float64, len(q.intents))
	for _, h := range hits {
		intent := h.Payload["intent"]
		s := clamp01(float64(h.Score))
		if s > best[intent] {
			best[intent] = s
		}
	}
	out := make([]Score, 0, len(q.intents))
	for _, intent := range q.intents {
		out = append(out, Score{Intent: intent, Confidence: best[intent]})
	}
	return out, nil
}

// deterministicPhraseID derives a stable pseudo-UUID from an FNV hash of
// intent+index, so rebuilding the index overwrites rather than duplicates.
func deterministicPhraseID(intent string, i int) string {
	h := uint64(14695981039346656037)
	for _, b := range []byte(intent + "#" + strconv.Itoa(i)) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uint32(h>>32), uint16(h>>16), uint16(h)&0x0fff|0x4000, uint16(h>>48)&0x3fff|0x8000, h&0xffffffffffff)
}

// Cosine returns the cosine similarity of two vectors clamped to [0,1].
// Mismatched or zero-length vectors score zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
