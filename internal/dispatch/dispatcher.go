package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/courier/internal/intent"
	"github.com/nidhogg/courier/internal/skill"
	"go.uber.org/zap"
)

// Status classifies a dispatch outcome.
type Status int

const (
	// StatusExecuted means a skill ran and produced a result.
	StatusExecuted Status = iota
	// StatusPrompt means the user must answer first (clarify or confirm).
	StatusPrompt
	// StatusNoDecision means no intent was decided; the caller may invoke
	// the generative fallback.
	StatusNoDecision
	// StatusNoSkill means an intent was decided but no registered skill
	// could execute it. The caller decides what to do with that; the
	// dispatcher never falls through to the generator on its own.
	StatusNoSkill
)

// Outcome is the structured result of one dispatch.
type Outcome struct {
	Status    Status
	Reply     string
	Intent    string
	SkillName string
}

// Dispatcher locates and executes skills for decided intents.
type Dispatcher struct {
	registry   *skill.Registry
	runTimeout time.Duration
	logger     *zap.Logger
}

// New creates a dispatcher. runTimeout bounds each individual skill run;
// zero means a 30s default.
func New(registry *skill.Registry, runTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if runTimeout <= 0 {
		runTimeout = 30 * time.Second
	}
	return &Dispatcher{registry: registry, runTimeout: runTimeout, logger: logger}
}

// Dispatch routes a decided intent result. A nil result falls back to the
// exact-name and legacy keyword paths; those paths never override a real
// intent decision.
func (d *Dispatcher) Dispatch(ctx context.Context, res *intent.Result, input string, entities []skill.Entity) *Outcome {
	if res == nil {
		return d.dispatchUnscored(ctx, input, entities)
	}

	switch res.Action {
	case intent.ActionNone:
		return &Outcome{Status: StatusNoDecision}

	case intent.ActionClarify:
		return &Outcome{
			Status: StatusPrompt,
			Intent: res.Intent,
			Reply: fmt.Sprintf("I found multiple possible actions: %s. Which one should I run?",
				strings.Join(res.Candidates, ", ")),
		}

	case intent.ActionConfirm:
		return &Outcome{
			Status: StatusPrompt,
			Intent: res.Intent,
			Reply: fmt.Sprintf("Do you want me to run '%s'? (yes / no)",
				strings.ReplaceAll(res.Intent, "_", " ")),
		}

	case intent.ActionExecute:
		return d.execute(ctx, res, input, entities)
	}

	return &Outcome{Status: StatusNoDecision}
}

// execute tries every skill registered for the intent, in registration
// order, until one ready skill returns a non-empty result.
func (d *Dispatcher) execute(ctx context.Context, res *intent.Result, input string, entities []skill.Entity) *Outcome {
	candidates := d.registry.Lookup(res.Intent)
	if len(candidates) == 0 {
		d.logger.Warn("intent has no mapped skills", zap.String("intent", res.Intent))
		return &Outcome{Status: StatusNoSkill, Intent: res.Intent}
	}

	inv := &skill.Invocation{
		Input:      input,
		Intent:     res.Intent,
		Confidence: res.Confidence,
		Entities:   entities,
	}

	for _, c := range candidates {
		if ready, reason := c.CheckReady(); !ready {
			d.logger.Debug("skill not ready, trying next",
				zap.String("skill", c.Name),
				zap.String("reason", reason))
			continue
		}

		out, err := d.run(ctx, c, inv)
		if err != nil {
			d.logger.Warn("skill execution failed, trying next",
				zap.String("skill", c.Name),
				zap.String("intent", res.Intent),
				zap.Error(err))
			continue
		}
		if out != "" {
			return &Outcome{Status: StatusExecuted, Reply: out, Intent: res.Intent, SkillName: c.Name}
		}
	}

	return &Outcome{Status: StatusNoSkill, Intent: res.Intent}
}

// run invokes one skill with a bounded, detached context. Detached because
// cancellation is advisory: a caller that gives up must not preempt a skill
// mid-effect (an email half-sent is worse than a late reply).
func (d *Dispatcher) run(ctx context.Context, c *skill.Descriptor, inv *skill.Invocation) (string, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.runTimeout)
	defer cancel()
	return c.Run(rctx, inv)
}

// DispatchNamed executes one specific skill by name, bypassing intent
// scoring. Used for command aliases and resolved user choices.
func (d *Dispatcher) DispatchNamed(ctx context.Context, name, input string, entities []skill.Entity) *Outcome {
	desc, ok := d.registry.LookupByName(name)
	if !ok {
		return &Outcome{Status: StatusNoSkill, SkillName: name}
	}
	if ready, reason := desc.CheckReady(); !ready {
		d.logger.Debug("named skill not ready",
			zap.String("skill", desc.Name),
			zap.String("reason", reason))
		return &Outcome{Status: StatusNoSkill, SkillName: desc.Name}
	}
	out, err := d.run(ctx, desc, &skill.Invocation{Input: input, Entities: entities})
	if err != nil || out == "" {
		if err != nil {
			d.logger.Warn("named skill failed", zap.String("skill", desc.Name), zap.Error(err))
		}
		return &Outcome{Status: StatusNoSkill, SkillName: desc.Name}
	}
	return &Outcome{Status: StatusExecuted, Reply: out, SkillName: desc.Name}
}

// dispatchUnscored handles input that never went through the scorer:
// first the exact-name path, then the legacy keyword fallback.
func (d *Dispatcher) dispatchUnscored(ctx context.Context, input string, entities []skill.Entity) *Outcome {
	if out := d.DispatchExact(ctx, input, entities); out.Status != StatusNoDecision {
		return out
	}
	return d.DispatchKeyword(ctx, input, entities)
}

// DispatchExact runs the skill whose name matches the input exactly, if one
// exists. Any other input yields StatusNoDecision so the caller can keep
// routing.
func (d *Dispatcher) DispatchExact(ctx context.Context, input string, entities []skill.Entity) *Outcome {
	if _, ok := d.registry.LookupByName(input); !ok {
		return &Outcome{Status: StatusNoDecision}
	}
	return d.DispatchNamed(ctx, input, input, entities)
}

// DispatchKeyword scans skill keyword sets with word-boundary matching and
// executes the first ready match. It keeps unscored/simple inputs operable;
// input with several plausible matches belongs to the arbitrator, so callers
// holding one consult it before this path.
func (d *Dispatcher) DispatchKeyword(ctx context.Context, input string, entities []skill.Entity) *Outcome {
	lower := strings.ToLower(input)
	inv := &skill.Invocation{Input: input, Entities: entities}
	for _, desc := range d.registry.All() {
		if !desc.MatchesKeyword(lower) {
			continue
		}
		if ready, _ := desc.CheckReady(); !ready {
			continue
		}
		out, err := d.run(ctx, desc, inv)
		if err != nil {
			d.logger.Warn("keyword fallback skill failed",
				zap.String("skill", desc.Name), zap.Error(err))
			continue
		}
		if out != "" {
			return &Outcome{Status: StatusExecuted, Reply: out, SkillName: desc.Name}
		}
	}
	return &Outcome{Status: StatusNoDecision}
}
