package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embeddingsServer(t *testing.T, vectors ...[]float32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		type item struct {
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(vectors))
		for i, v := range vectors {
			data[i] = item{Embedding: v}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIProviderEmbed(t *testing.T) {
	srv := embeddingsServer(t, []float32{0.1, 0.2, 0.3})
	p := NewAPIProvider(Config{Endpoint: srv.URL, Model: "test-model"})

	vectors, err := p.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Fatalf("got %d vectors of width %d, want 1 of width 3", len(vectors), len(vectors[0]))
	}
	if p.Dimension() != 3 {
		t.Errorf("got dimension %d, want the observed 3", p.Dimension())
	}
}

func TestAPIProviderEmbedCountMismatch(t *testing.T) {
	srv := embeddingsServer(t, []float32{0.1})
	p := NewAPIProvider(Config{Endpoint: srv.URL, Model: "test-model"})

	if _, err := p.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error when response count differs from input count")
	}
}

func TestAPIProviderEmbedEmptyInput(t *testing.T) {
	p := NewAPIProvider(Config{Endpoint: "http://unused", Model: "test-model"})

	vectors, err := p.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil for empty input, got %v", vectors)
	}
}

func TestAPIProviderDimensionFallback(t *testing.T) {
	p := NewAPIProvider(Config{Endpoint: "http://unused", Dimension: 256})
	if d := p.Dimension(); d != 256 {
		t.Errorf("got dimension %d, want configured default 256", d)
	}
}

func TestLocalProviderEmbed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{float32(len(req.Prompt)), 1},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL, Model: "test-model"})
	vectors, err := p.Embed(context.Background(), []string{"ab", "abcd"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	if vectors[0][0] != 2 || vectors[1][0] != 4 {
		t.Errorf("vectors %v, want one request per text", vectors)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	if _, err := New(Config{Provider: "local"}); err != nil {
		t.Errorf("local: unexpected error %v", err)
	}
	if _, err := New(Config{Provider: "api"}); err != nil {
		t.Errorf("api: unexpected error %v", err)
	}
	if _, err := New(Config{Provider: "unknown"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
