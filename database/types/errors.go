package types

import "fmt"

// TransitionError reports an attempted illegal intent lifecycle move. Every
// status mutation site validates against the closed transition graph before
// touching the row.
type TransitionError struct {
	IntentID int64
	From     IntentStatus
	To       IntentStatus
}

// Error implements the error interface
func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal intent transition %s -> %s (intent %d)", e.From, e.To, e.IntentID)
}
