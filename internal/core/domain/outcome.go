package domain

type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
	OutcomeIgnored  Outcome = "ignored"
)

// User-facing notification messages. Stock-exceeded is shared by add and update.
const (
	MsgStockExceeded = "requested quantity exceeds stock"
	MsgAddFailed     = "failed to add item"
	MsgRemoveFailed  = "failed to remove item"
	MsgUpdateFailed  = "failed to change item quantity"
)

// Result is what every cart operation returns. Message is set whenever a
// notification was emitted. Err carries the cause for rejected and failed outcomes.
type Result struct {
	Outcome Outcome
	Message string
	Err     error
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeApplied
}
