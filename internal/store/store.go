package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/mail-triage/internal/model"
)

var (
	// ErrNotFound is returned when a keyed lookup or update matches no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a row exists but a uniqueness or
	// status guard rejected the write.
	ErrConflict = errors.New("conflict")
)

// MessageFilter controls filtering, sorting, and pagination for message queries.
type MessageFilter struct {
	AccountID         *string
	UserEmail         *string
	Status            *model.Status
	Direction         *model.Direction
	SubjectNormalized *string    // exact thread subject key
	Query             *string    // search subject + body
	Since             *time.Time // created_at >= Since
	SortBy            string     // "created_at", "urgency", "seq"
	SortDesc          bool
	Limit             int
	Offset            int
}

// MessageUpdate describes a partial update of a stored message. Nil fields
// are left untouched.
type MessageUpdate struct {
	// FromStatus guards the update: it only applies while the stored
	// status still equals *FromStatus.
	FromStatus *model.Status

	Status     *model.Status
	Body       *string
	ReplyDraft *string
	Decision   *model.Decision
	Forced     *bool
	HandledAt  *time.Time
	Tags       []string
}

// ContactFilter controls filtering and sorting for contact queries.
type ContactFilter struct {
	AccountID *string
	Query     *string // search email + name
	SortBy    string  // "email", "relationship_score", "mail_count", "last_contact_at"
	SortDesc  bool
	Limit     int
}

// TaskFilter controls filtering for task queries.
type TaskFilter struct {
	AccountID *string
	Status    *model.TaskStatus
	MessageID *string
	Limit     int
}

// Store defines the persistence interface for messages, contacts, tags,
// tasks, and polled accounts.
type Store interface {
	// === Messages ===

	// InsertMessage stores m unless its MessageID already exists. The
	// returned bool is false for a duplicate, which is not an error.
	InsertMessage(ctx context.Context, m model.Message) (bool, error)
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	MessageExists(ctx context.Context, messageID string) (bool, error)
	GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	CountMessages(ctx context.Context, filter MessageFilter) (int, error)
	// GetLinkedMessages returns every message whose id, in-reply-to, or
	// references mention one of ids.
	GetLinkedMessages(ctx context.Context, ids []string) ([]model.Message, error)
	UpdateMessage(ctx context.Context, messageID string, u MessageUpdate) error
	DeleteMessage(ctx context.Context, messageID string) error

	// === Contacts ===

	GetContact(ctx context.Context, email string) (*model.Contact, error)
	UpsertContact(ctx context.Context, c model.Contact) error
	AppendContactNote(ctx context.Context, email, note string) error
	GetContacts(ctx context.Context, filter ContactFilter) ([]model.Contact, error)

	// === Tags ===

	CreateTag(ctx context.Context, tag model.Tag) error
	GetTag(ctx context.Context, slug string) (*model.Tag, error)
	GetTags(ctx context.Context) ([]model.Tag, error)
	DeleteTag(ctx context.Context, slug string) error

	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) error
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status model.TaskStatus, approved bool) error

	// === Accounts ===

	UpsertAccount(ctx context.Context, acct model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccounts(ctx context.Context, activeOnly bool) ([]model.Account, error)
	SetAccountActive(ctx context.Context, id string, active bool) error
}
