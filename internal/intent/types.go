package intent

// Action is the arbitration outcome for one input.
type Action string

const (
	ActionExecute Action = "execute"
	ActionConfirm Action = "confirm"
	ActionClarify Action = "clarify"
	ActionNone    Action = "none"
)

// Score is one (intent, confidence) pair produced by the scorer.
// Confidence is a similarity in [0,1].
type Score struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Result is the arbitration decision for one input. Candidates is populated
// only when Action is clarify; Confidence is populated whenever Action is
// execute or confirm.
type Result struct {
	Action     Action   `json:"action"`
	Intent     string   `json:"intent,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}
