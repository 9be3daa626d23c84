package coordinator

// State is where a run is in the agent loop.
type State string

const (
	StateAwaitingModel    State = "awaiting_model"
	StateHandlingToolCall State = "handling_tool_call"
	StateDone             State = "done"
	StateBudgetExhausted  State = "budget_exhausted"
)

// IsTerminal returns true once the run produced an answer or ran out of iterations.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateBudgetExhausted
}

func (s State) String() string {
	return string(s)
}

// Outcome records what happened to a single tool call.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeSkippedUnknownTool Outcome = "skipped_unknown_tool"
	OutcomeInvalidArguments   Outcome = "invalid_arguments"
	OutcomeFailed             Outcome = "failed"
)

func (o Outcome) String() string {
	return string(o)
}

// FallbackStatus records the attempt to recover a tool call from plain reply text.
type FallbackStatus string

const (
	// FallbackSkipped means the reply had native tool calls or no text at all.
	FallbackSkipped FallbackStatus = "skipped"
	FallbackParsed  FallbackStatus = "parsed"
	FallbackNotJSON FallbackStatus = "not_json"
	FallbackNoName  FallbackStatus = "no_name"
)

func (f FallbackStatus) String() string {
	return string(f)
}
