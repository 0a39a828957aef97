package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Arbitration ArbitrationConfig `json:"arbitration"`
	Scorer      ScorerConfig      `json:"scorer"`
	Monitor     MonitorConfig     `json:"monitor"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	Providers   []ProviderConfig  `json:"providers"`
	Bindings    BindingsConfig    `json:"bindings"`
	Database    DatabaseConfig    `json:"database"`
	Gateway     GatewayConfig     `json:"gateway"`
	Commands    map[string]string `json:"commands,omitempty"` // alias trigger -> skill name
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// ArbitrationConfig holds the confidence tiers for intent decisions.
type ArbitrationConfig struct {
	High            float64 `json:"high"`
	Medium          float64 `json:"medium"`
	AmbiguityMargin float64 `json:"ambiguity_margin"`
}

type ScorerConfig struct {
	CatalogPath     string   `json:"catalog_path,omitempty"`
	ImperativeVerbs []string `json:"imperative_verbs,omitempty"`
	TimeoutMS       int      `json:"timeout_ms,omitempty"`
	ContextLen      int      `json:"context_len,omitempty"`
}

type MonitorConfig struct {
	Enabled          bool    `json:"enabled"`
	IntervalSec      int     `json:"interval_sec"`
	BackoffSec       int     `json:"backoff_sec"`
	LoadThresholdPct float64 `json:"load_threshold_pct"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// BindingsConfig routes model purposes onto provider IDs.
type BindingsConfig struct {
	Conversation string   `json:"conversation,omitempty"`
	Arbitration  string   `json:"arbitration,omitempty"`
	Fallbacks    []string `json:"fallbacks,omitempty"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN           string `json:"dsn"`
	MigrationsDir string `json:"migrations_dir,omitempty"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Collection string `json:"collection,omitempty"`
}

type GatewayConfig struct {
	Discord DiscordGatewayConfig `json:"discord"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Arbitration.High == 0 {
		c.Arbitration.High = 0.70
	}
	if c.Arbitration.Medium == 0 {
		c.Arbitration.Medium = 0.50
	}
	if c.Arbitration.AmbiguityMargin == 0 {
		c.Arbitration.AmbiguityMargin = 0.07
	}
	if c.Monitor.IntervalSec == 0 {
		c.Monitor.IntervalSec = 5
	}
	if c.Monitor.BackoffSec == 0 {
		c.Monitor.BackoffSec = 2 * c.Monitor.IntervalSec
	}
	if c.Monitor.LoadThresholdPct == 0 {
		c.Monitor.LoadThresholdPct = 80
	}
	if c.Database.Postgres.MigrationsDir == "" {
		c.Database.Postgres.MigrationsDir = "migrations"
	}
	if c.Database.Qdrant.Collection == "" {
		c.Database.Qdrant.Collection = "courier_intents"
	}
}
