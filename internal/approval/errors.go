package approval

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a lifecycle move is not allowed
// from the message's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// DispatchError reports why a reply could not be sent. Reason is written for
// the operator and says what to do next.
type DispatchError struct {
	MessageID string
	Reason    string
	Err       error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dispatch %s: %s", e.MessageID, e.Reason)
	}
	return fmt.Sprintf("dispatch %s: %s: %v", e.MessageID, e.Reason, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
