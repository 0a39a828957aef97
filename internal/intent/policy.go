package intent

// Policy maps a ranked score list to an arbitration decision. It is a pure
// value: Decide has no side effects and no hidden state.
type Policy struct {
	High            float64 `json:"high"`
	Medium          float64 `json:"medium"`
	AmbiguityMargin float64 `json:"ambiguity_margin"`
}

// DefaultPolicy returns the standard confidence tiers.
func DefaultPolicy() Policy {
	return Policy{High: 0.70, Medium: 0.50, AmbiguityMargin: 0.07}
}

// Decide applies the confidence-tiered decision rules to a ranked list.
// The ambiguity check runs before the execute tier: a high-confidence top
// score with a near-tied runner-up is clarified, not executed, so we never
// silently pick one of two equally likely actions.
func (p Policy) Decide(ranked []Score) Result {
	if len(ranked) == 0 {
		return Result{Action: ActionNone}
	}

	top := ranked[0]

	var close []string
	for _, s := range ranked[1:] {
		if top.Confidence-s.Confidence <= p.AmbiguityMargin {
			close = append(close, s.Intent)
		}
	}

	if len(close) > 0 && top.Confidence >= p.Medium {
		return Result{
			Action:     ActionClarify,
			Intent:     top.Intent,
			Confidence: top.Confidence,
			Candidates: append([]string{top.Intent}, close...),
		}
	}

	if top.Confidence >= p.High {
		return Result{Action: ActionExecute, Intent: top.Intent, Confidence: top.Confidence}
	}

	if top.Confidence >= p.Medium {
		return Result{Action: ActionConfirm, Intent: top.Intent, Confidence: top.Confidence}
	}

	return Result{Action: ActionNone}
}
