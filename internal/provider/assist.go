package provider

import (
	"context"
	"fmt"
	"strings"
)

// Classifier adapts the router's arbitration binding to the single-call
// shape the fallback arbitrator wants.
type Classifier struct {
	router *Router
}

// NewClassifier wraps a router for arbitration calls.
func NewClassifier(r *Router) *Classifier {
	return &Classifier{router: r}
}

// Classify asks the arbitration model which candidate skill fits the input.
// The answer is free text; callers match candidate names against it.
func (c *Classifier) Classify(ctx context.Context, input string, candidates []string) (string, error) {
	prompt := fmt.Sprintf(
		"A user said: %q\n\nWhich of these skills best handles that request?\n%s\n\nAnswer with the single best skill name, nothing else.",
		input, strings.Join(candidates, "\n"))

	resp, err := c.router.Route(ctx, PurposeArbitration, &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "You classify user requests onto named skills. Answer with exactly one skill name from the list."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   32,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// Generator adapts the router's conversation binding for free-form replies
// when no skill matched.
type Generator struct {
	router *Router
	system string
}

// NewGenerator wraps a router for conversational calls. system may be empty.
func NewGenerator(r *Router, system string) *Generator {
	if system == "" {
		system = "You are a concise, helpful voice assistant. Answer in one or two sentences."
	}
	return &Generator{router: r, system: system}
}

// Generate produces a conversational reply, threading recent history in.
func (g *Generator) Generate(ctx context.Context, history []Message, input string) (string, error) {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: g.system})
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: input})

	resp, err := g.router.Route(ctx, PurposeConversation, &ChatRequest{
		Messages:    msgs,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
