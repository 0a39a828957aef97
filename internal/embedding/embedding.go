package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider generates vector embeddings from text. The scorer consumes it as
// a pure function; a failing provider degrades scoring, never the process.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
	TimeoutMS int    `json:"timeout_ms"`
}

// New builds a provider from config.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return NewLocalProvider(cfg), nil
	case "api", "":
		return NewAPIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func httpClient(cfg Config) *http.Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
