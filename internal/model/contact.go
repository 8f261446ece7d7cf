package model

import "time"

// Tone values understood by the drafting stage.
const (
	ToneFormal   = "formal"
	ToneFriendly = "friendly"
)

// Relationship score bounds and the seed given to new contacts.
const (
	ScoreMin  = 0
	ScoreMax  = 100
	ScoreSeed = 50
)

// Contact is a correspondent known to one or more accounts.
type Contact struct {
	// Email is the lowercased address and the contact's key.
	Email string `json:"email" db:"email"`

	Name string `json:"name" db:"name"`

	// DefaultTone is the tone used when drafting replies to this contact.
	DefaultTone string `json:"default_tone" db:"default_tone"`

	// RelationshipScore is a bounded 0-100 heuristic, updated per mail.
	RelationshipScore int `json:"relationship_score" db:"relationship_score"`

	MailCount int `json:"mail_count" db:"mail_count"`

	// AINotes is append-only.
	AINotes []string `json:"ai_notes" db:"-"`

	LastContactAt *time.Time `json:"last_contact_at,omitempty" db:"last_contact_at"`

	// Accounts is the set of account IDs that have exchanged mail with
	// this contact.
	Accounts []string `json:"accounts" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
