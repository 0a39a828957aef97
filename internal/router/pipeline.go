package router

import (
	"context"
	"errors"
	"strings"

	"github.com/nidhogg/courier/internal/arbiter"
	"github.com/nidhogg/courier/internal/dispatch"
	"github.com/nidhogg/courier/internal/intent"
	"github.com/nidhogg/courier/internal/provider"
	"github.com/nidhogg/courier/internal/store"
	"go.uber.org/zap"
)

// Scorer ranks input against the intent catalog.
type Scorer interface {
	Score(ctx context.Context, text string) []intent.Score
}

// Selector arbitrates inputs the scorer could not decide.
type Selector interface {
	SelectSkill(ctx context.Context, input string) *arbiter.Decision
	Resolve(id string, choice int) (arbiter.Selection, error)
}

// Generator produces a conversational reply when no skill matches.
type Generator interface {
	Generate(ctx context.Context, history []provider.Message, input string) (string, error)
}

// History persists conversation turns per channel.
type History interface {
	FindOrCreateSession(ctx context.Context, platform, channelID string) (string, error)
	AppendMessage(ctx context.Context, sessionID, role, content string) error
	RecentContext(ctx context.Context, sessionID string, n int) ([]store.Message, error)
}

// Reply sources, reported so callers and tests can tell which stage of the
// pipeline answered.
const (
	SourceSkill    = "skill"
	SourcePrompt   = "prompt"
	SourceFallback = "fallback"
	SourceNone     = "none"
)

// Reply is the pipeline's answer to one inbound message.
type Reply struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Skill    string `json:"skill,omitempty"`
	ChoiceID string `json:"choice_id,omitempty"`
}

// Pipeline wires the full routing chain for one inbound message: history,
// command aliases, intent scoring, dispatch, arbitration, and the
// generative fallback.
type Pipeline struct {
	scorer     Scorer
	policy     intent.Policy
	dispatcher *dispatch.Dispatcher
	selector   Selector
	generator  Generator
	history    History
	aliases    map[string]string // trigger -> skill name
	contextLen int
	logger     *zap.Logger
}

// Options carries the pipeline's collaborators. Selector, Generator and
// History may be nil; the matching stage is skipped.
type Options struct {
	Scorer     Scorer
	Policy     intent.Policy
	Dispatcher *dispatch.Dispatcher
	Selector   Selector
	Generator  Generator
	History    History
	Aliases    map[string]string
	ContextLen int
	Logger     *zap.Logger
}

// New creates a routing pipeline.
func New(opts Options) *Pipeline {
	aliases := make(map[string]string, len(opts.Aliases))
	for trigger, name := range opts.Aliases {
		aliases[strings.ToLower(strings.TrimSpace(trigger))] = name
	}
	contextLen := opts.ContextLen
	if contextLen <= 0 {
		contextLen = 10
	}
	return &Pipeline{
		scorer:     opts.Scorer,
		policy:     opts.Policy,
		dispatcher: opts.Dispatcher,
		selector:   opts.Selector,
		generator:  opts.Generator,
		history:    opts.History,
		aliases:    aliases,
		contextLen: contextLen,
		logger:     opts.Logger,
	}
}

// Handle routes one inbound message and returns the reply to send back.
func (p *Pipeline) Handle(ctx context.Context, platform, channelID, input string) *Reply {
	input = strings.TrimSpace(input)
	if input == "" {
		return &Reply{Source: SourceNone}
	}

	sessionID := p.openSession(ctx, platform, channelID)
	p.persist(ctx, sessionID, "user", input)

	reply := p.route(ctx, sessionID, input)
	if reply.Text != "" {
		p.persist(ctx, sessionID, "assistant", reply.Text)
	}
	return reply
}

func (p *Pipeline) route(ctx context.Context, sessionID, input string) *Reply {
	entities := ExtractEntities(input)

	// Custom command aliases map a verbatim trigger straight onto a skill.
	if name, ok := p.aliases[strings.ToLower(input)]; ok {
		out := p.dispatcher.DispatchNamed(ctx, name, input, entities)
		if out.Status == dispatch.StatusExecuted {
			return &Reply{Text: out.Reply, Source: SourceSkill, Skill: out.SkillName}
		}
		p.logger.Warn("alias target did not execute",
			zap.String("alias", input), zap.String("skill", name))
	}

	ranked := p.scorer.Score(ctx, input)
	res := p.policy.Decide(ranked)

	out := p.dispatcher.Dispatch(ctx, &res, input, entities)
	switch out.Status {
	case dispatch.StatusExecuted:
		return &Reply{Text: out.Reply, Source: SourceSkill, Skill: out.SkillName}
	case dispatch.StatusPrompt:
		return &Reply{Text: out.Reply, Source: SourcePrompt}
	case dispatch.StatusNoSkill:
		p.logger.Info("intent decided but no skill could run",
			zap.String("intent", out.Intent))
		return p.fallback(ctx, sessionID, input)
	}

	// No intent decision: an input naming a skill exactly still dispatches.
	out = p.dispatcher.DispatchExact(ctx, input, entities)
	if out.Status == dispatch.StatusExecuted {
		return &Reply{Text: out.Reply, Source: SourceSkill, Skill: out.SkillName}
	}

	// Arbitration owns input with several keyword candidates; running the
	// blind keyword scan first would silently pick whichever matching skill
	// registered first.
	if p.selector != nil {
		if dec := p.selector.SelectSkill(ctx, input); dec != nil {
			if dec.SkillName != "" {
				out = p.dispatcher.DispatchNamed(ctx, dec.SkillName, input, entities)
				if out.Status == dispatch.StatusExecuted {
					return &Reply{Text: out.Reply, Source: SourceSkill, Skill: out.SkillName}
				}
				return p.fallback(ctx, sessionID, input)
			}
			return &Reply{Text: dec.Prompt, Source: SourcePrompt, ChoiceID: dec.ChoiceID}
		}
	}

	// The word-boundary scan still catches what the arbitrator's word-set
	// overlap cannot, such as multi-word keywords.
	out = p.dispatcher.DispatchKeyword(ctx, input, entities)
	if out.Status == dispatch.StatusExecuted {
		return &Reply{Text: out.Reply, Source: SourceSkill, Skill: out.SkillName}
	}

	return p.fallback(ctx, sessionID, input)
}

// ResolveChoice answers a numbered prompt from a previous escalation.
func (p *Pipeline) ResolveChoice(ctx context.Context, platform, channelID, choiceID string, choice int) *Reply {
	if p.selector == nil {
		return &Reply{Text: "There's nothing to choose from.", Source: SourceNone}
	}

	sel, err := p.selector.Resolve(choiceID, choice)
	switch {
	case errors.Is(err, arbiter.ErrChoiceAborted):
		return &Reply{Text: "Okay, I won't run anything.", Source: SourceNone}
	case errors.Is(err, arbiter.ErrChoiceNotFound):
		return &Reply{Text: "That choice has expired. Ask me again.", Source: SourceNone}
	case err != nil:
		p.logger.Warn("resolve choice failed", zap.Error(err))
		return &Reply{Text: "Something went wrong resolving that choice.", Source: SourceNone}
	}

	// The skill runs against the request that triggered the escalation, not
	// the choice itself.
	sessionID := p.openSession(ctx, platform, channelID)
	out := p.dispatcher.DispatchNamed(ctx, sel.SkillName, sel.Input, ExtractEntities(sel.Input))
	if out.Status != dispatch.StatusExecuted {
		return &Reply{Text: "I couldn't run " + sel.SkillName + " right now.", Source: SourceNone}
	}
	p.persist(ctx, sessionID, "assistant", out.Reply)
	return &Reply{Text: out.Reply, Source: SourceSkill, Skill: out.SkillName}
}

// fallback hands the input to the conversation model, threading in recent
// history when a session exists.
func (p *Pipeline) fallback(ctx context.Context, sessionID, input string) *Reply {
	if p.generator == nil {
		return &Reply{Text: "I'm not sure how to help with that.", Source: SourceNone}
	}

	var history []provider.Message
	if p.history != nil && sessionID != "" {
		msgs, err := p.history.RecentContext(ctx, sessionID, p.contextLen)
		if err != nil {
			p.logger.Warn("load history failed", zap.Error(err))
		}
		for _, m := range msgs {
			history = append(history, provider.Message{Role: m.Role, Content: m.Content})
		}
	}

	text, err := p.generator.Generate(ctx, history, input)
	if err != nil {
		p.logger.Error("generative fallback failed", zap.Error(err))
		return &Reply{Text: "Sorry, I'm having trouble answering right now.", Source: SourceNone}
	}
	return &Reply{Text: text, Source: SourceFallback}
}

func (p *Pipeline) openSession(ctx context.Context, platform, channelID string) string {
	if p.history == nil {
		return ""
	}
	sid, err := p.history.FindOrCreateSession(ctx, platform, channelID)
	if err != nil {
		p.logger.Error("find/create session failed", zap.Error(err))
		return ""
	}
	return sid
}

func (p *Pipeline) persist(ctx context.Context, sessionID, role, content string) {
	if p.history == nil || sessionID == "" {
		return
	}
	if err := p.history.AppendMessage(ctx, sessionID, role, content); err != nil {
		p.logger.Warn("append message failed", zap.Error(err))
	}
}
