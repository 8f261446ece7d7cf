package model

// Status is the lifecycle state of a stored message.
type Status string

// Lifecycle states. WAITING_APPROVAL is the entry state for inbound mail that
// needs a reply; IGNORED replaces it when classification says no reply is
// needed. DRAFT belongs to composer-authored messages only.
const (
	StatusWaitingApproval Status = "WAITING_APPROVAL"
	StatusSent            Status = "SENT"
	StatusReplied         Status = "REPLIED"
	StatusCanceled        Status = "CANCELED"
	StatusError           Status = "ERROR"
	StatusIgnored         Status = "IGNORED"
	StatusDraft           Status = "DRAFT"
)

// transitions lists the legal forward edges of the lifecycle.
var transitions = map[Status][]Status{
	StatusWaitingApproval: {StatusSent, StatusReplied, StatusCanceled, StatusError},
	StatusCanceled:        {StatusWaitingApproval},
	StatusDraft:           {StatusSent},
}

// CanTransition reports whether a message may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}
