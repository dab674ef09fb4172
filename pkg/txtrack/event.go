package txtrack

import "time"

// Kind is the lifecycle transition an Event describes.
type Kind int

const (
	KindBegin Kind = iota + 1
	KindCommit
	KindRollback
)

func (k Kind) String() string {
	switch k {
	case KindBegin:
		return "begin"
	case KindCommit:
		return "commit"
	case KindRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// Event is a best-effort diagnostic record of a lifecycle transition.
// Token is empty when the slot held nothing at emission time.
type Event struct {
	Kind   Kind
	Token  Token
	Target string
	Time   time.Time
}
