package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/mail-triage/internal/model"
)

// ConnectionError indicates that a mailbox could not be reached or that
// authentication against it failed. It is scoped to a single account.
type ConnectionError struct {
	Account string
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mailbox %s (%s): %v", e.Account, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// Dialer opens an authenticated mailbox session for an account.
type Dialer interface {
	Dial(ctx context.Context, account model.Account, password string) (Session, error)
}

// Session is a single-threaded view of one account's mailbox. UIDs returned
// by a search are only meaningful to the matching fetch call.
type Session interface {
	// SearchUnseen returns the UIDs of unread inbox messages.
	SearchUnseen(ctx context.Context) ([]uint32, error)

	// Fetch returns the raw RFC 5322 bytes of an inbox message without
	// changing its flags.
	Fetch(ctx context.Context, uid uint32) ([]byte, error)

	// MarkSeen sets the \Seen flag on an inbox message.
	MarkSeen(ctx context.Context, uid uint32) error

	// SearchSent returns the UIDs of sent-folder messages dated on or
	// after since, oldest first.
	SearchSent(ctx context.Context, since time.Time) ([]uint32, error)

	// FetchSent returns the raw bytes of a sent-folder message.
	FetchSent(ctx context.Context, uid uint32) ([]byte, error)

	Close() error
}

// Outgoing is a fully addressed reply ready for transport.
type Outgoing struct {
	From     string
	FromName string
	To       string
	Subject  string
	Body     string

	// MessageID, InReplyTo and References are bare identifiers without
	// angle brackets.
	MessageID  string
	InReplyTo  string
	References []string

	Date time.Time
}

// Sender delivers outbound mail for an account.
type Sender interface {
	Send(ctx context.Context, account model.Account, password string, msg *Outgoing) error
}
