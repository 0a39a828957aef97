package intent

import (
	"encoding/json"
	"fmt"
	"os"
)

// Catalog holds the reference phrases for every known intent, in a stable
// order. Order matters: it breaks ties when two intents score identically.
type Catalog struct {
	intents []string
	phrases map[string][]string
}

// NewCatalog builds a catalog from an ordered list of entries.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	c := &Catalog{phrases: make(map[string][]string)}
	for _, e := range entries {
		if e.Intent == "" {
			return nil, fmt.Errorf("catalog entry with empty intent")
		}
		if len(e.Phrases) == 0 {
			return nil, fmt.Errorf("intent %s has no reference phrases", e.Intent)
		}
		if _, dup := c.phrases[e.Intent]; dup {
			return nil, fmt.Errorf("duplicate intent %s", e.Intent)
		}
		c.intents = append(c.intents, e.Intent)
		c.phrases[e.Intent] = e.Phrases
	}
	return c, nil
}

// CatalogEntry is one intent with its canonical phrasings.
type CatalogEntry struct {
	Intent  string   `json:"intent"`
	Phrases []string `json:"phrases"`
}

// LoadCatalog reads an ordered JSON array of catalog entries from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return NewCatalog(entries)
}

// Intents returns all intents in catalog order.
func (c *Catalog) Intents() []string { return c.intents }

// Phrases returns the reference phrases for one intent.
func (c *Catalog) Phrases(intent string) []string { return c.phrases[intent] }

// Rank returns the catalog position of an intent, used as a stable
// tie-breaker. Unknown intents sort last.
func (c *Catalog) Rank(intent string) int {
	for i, it := range c.intents {
		if it == intent {
			return i
		}
	}
	return len(c.intents)
}

// PhraseCount returns the total number of reference phrases.
func (c *Catalog) PhraseCount() int {
	n := 0
	for _, p := range c.phrases {
		n += len(p)
	}
	return n
}

// DefaultCatalog returns the built-in intent catalog covering the shipped
// skills. Deployments normally override it with a catalog file.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]CatalogEntry{
		{Intent: "clock", Phrases: []string{
			"what time is it", "current time", "tell me the time", "what is the date today",
		}},
		{Intent: "greet", Phrases: []string{
			"hello", "hi there", "good morning", "wake up",
		}},
		{Intent: "set_reminder", Phrases: []string{
			"set reminder", "remind me", "create task", "add a todo",
		}},
		{Intent: "list_reminders", Phrases: []string{
			"show reminders", "list my reminders", "what are my tasks",
		}},
		{Intent: "system_status", Phrases: []string{
			"system status", "cpu usage", "memory usage", "system health",
		}},
	})
	return c
}
